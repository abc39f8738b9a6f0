package response

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names accepted by Decode.
const (
	EncodingAuto  = "auto"
	EncodingUTF8  = "utf-8"
	EncodingEUCKR = "euc-kr"
)

// PlatformEncoding returns the encoding the external client writes on this
// platform: the Korean legacy code page on Windows, UTF-8 elsewhere.
func PlatformEncoding() string {
	if runtime.GOOS == "windows" {
		return EncodingEUCKR
	}
	return EncodingUTF8
}

// Decode converts raw process output to text using the named encoding.
func Decode(data []byte, name string) (string, error) {
	if name == "" || name == EncodingAuto {
		name = PlatformEncoding()
	}
	enc, err := lookup(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), nil
}

// DecodeCharset decodes an HTTP body using the charset parameter of its
// Content-Type header. Unknown or missing charsets fall back to UTF-8.
func DecodeCharset(data []byte, contentType string) string {
	charset := charsetOf(contentType)
	if charset == "" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// DecodeFirst tries each encoding in order and returns the first decoding
// for which accept reports true. If none is accepted the UTF-8 reading is
// returned with ok=false.
func DecodeFirst(data []byte, names []string, accept func(string) bool) (string, string, bool) {
	for _, name := range names {
		text, err := Decode(data, name)
		if err != nil {
			continue
		}
		if accept(text) {
			return text, name, true
		}
	}
	return string(data), EncodingUTF8, false
}

// LooksLikeText reports whether s is valid UTF-8 without replacement runes.
func LooksLikeText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, utf8.RuneError)
}

func lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case EncodingUTF8, "utf8":
		return nil, nil
	case EncodingEUCKR, "cp949", "ks_c_5601-1987", "uhc":
		return korean.EUCKR, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

func charsetOf(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "charset") {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}

// TrimBOM drops a leading UTF-8 byte order mark.
func TrimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ormasoftchile/clirun/pkg/response"
)

// Cipher operations understood by the helper binary.
const (
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

var base64Like = regexp.MustCompile(`^[A-Za-z0-9+/=_\-\r\n]+$`)

// CryptoProvider runs the cipher helper with [operation, key, data].
type CryptoProvider struct {
	Path     string
	Executor CommandExecutor
	Timeout  time.Duration
	// DelayMarker, when found in an encrypt result, holds the step for
	// Delay before returning so downstream processing can catch up.
	DelayMarker string
	Delay       time.Duration
	// Encodings are tried in order when reading helper output.
	Encodings []string
	Sleep     func(ctx context.Context, d time.Duration) error
}

// NewCryptoProvider returns a provider that uses a RealExecutor.
func NewCryptoProvider(path string, timeout time.Duration) *CryptoProvider {
	return &CryptoProvider{Path: path, Executor: &RealExecutor{}, Timeout: timeout}
}

// Execute runs one cipher operation. The parsed response holds
// "cipher_result" (the trimmed output), "operation", and the key=value pairs
// of a decrypted payload. "result" mirrors cipher_result unless the payload
// carries its own result key.
func (p *CryptoProvider) Execute(ctx context.Context, req *Request) (*Result, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("cipher helper path is not configured")
	}
	op, _ := req.Arguments.Get("operation")
	key, _ := req.Arguments.Get("key")
	data, _ := req.Arguments.Get("data")
	op = strings.ToLower(strings.TrimSpace(op))
	if op != OpEncrypt && op != OpDecrypt {
		return nil, fmt.Errorf("unknown cipher operation %q", op)
	}
	res := &Result{CommandString: strings.Join([]string{p.Path, op, key, data}, " ")}

	ex := p.Executor
	if ex == nil {
		ex = &RealExecutor{}
	}
	out, err := runWithTimeout(ctx, ex, pick(req.Timeout, p.Timeout), p.Path, []string{op, key, data})
	if err != nil {
		return res, err
	}

	text := p.decode(op, out.Stdout)
	stderr, err := response.Decode(out.Stderr, response.EncodingAuto)
	if err != nil {
		stderr = string(out.Stderr)
	}
	raw := response.New(out.ExitCode, text, stderr, out.Duration)
	raw.Parsed["cipher_result"] = strings.TrimSpace(text)
	if _, ok := raw.Parsed["result"]; !ok {
		raw.Parsed["result"] = raw.Parsed["cipher_result"]
	}
	raw.Parsed["operation"] = op
	res.Response = raw

	if op == OpEncrypt && p.DelayMarker != "" && p.Delay > 0 && strings.Contains(text, p.DelayMarker) {
		if err := p.sleep(ctx, p.Delay); err != nil {
			return res, err
		}
	}
	return res, nil
}

// decode picks the first encoding whose reading looks like the expected
// output: base64-like ASCII for encrypt, key=value text for decrypt.
func (p *CryptoProvider) decode(op string, data []byte) string {
	names := p.Encodings
	if len(names) == 0 {
		names = []string{response.EncodingUTF8, response.EncodingEUCKR}
	}
	accept := func(s string) bool {
		return response.LooksLikeText(s) && base64Like.MatchString(strings.TrimSpace(s))
	}
	if op == OpDecrypt {
		accept = func(s string) bool {
			return response.LooksLikeText(s) && len(response.Parse(s)) > 0
		}
	}
	text, _, _ := response.DecodeFirst(response.TrimBOM(data), names, accept)
	return text
}

func (p *CryptoProvider) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

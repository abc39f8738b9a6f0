package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format names a report renderer.
type Format string

const (
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatJSON, FormatXML, FormatXLSX, FormatMarkdown}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ParseFormats accepts names like "html", "junit" or "md", separately or
// comma-joined, and returns them without duplicates.
func ParseFormats(names ...string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			var f Format
			switch part {
			case "html":
				f = FormatHTML
			case "json":
				f = FormatJSON
			case "xml", "junit":
				f = FormatXML
			case "xlsx", "excel":
				f = FormatXLSX
			case "md", "markdown":
				f = FormatMarkdown
			default:
				return nil, fmt.Errorf("unknown report format %q", part)
			}
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// Render writes rep to w in format f.
func Render(w io.Writer, rep *Report, f Format) error {
	switch f {
	case FormatHTML:
		return RenderHTML(w, rep)
	case FormatJSON:
		return RenderJSON(w, rep)
	case FormatXML:
		return RenderXML(w, rep)
	case FormatXLSX:
		return RenderXLSX(w, rep)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(rep))
		return err
	}
	return fmt.Errorf("unknown report format %q", f)
}

// RenderJSON writes the model as indented JSON.
func RenderJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteFiles renders rep once per format into dir as base.<ext> and
// returns the written paths.
func WriteFiles(rep *Report, dir, base string, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	var paths []string
	for _, f := range formats {
		path := filepath.Join(dir, base+"."+f.Ext())
		if err := writeFile(path, rep, f); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, rep *Report, f Format) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s report: %w", f, err)
	}
	if err := Render(out, rep, f); err != nil {
		out.Close()
		return fmt.Errorf("render %s report: %w", f, err)
	}
	return out.Close()
}

// BaseName derives a file-system friendly report name from a scenario
// name and run id.
func BaseName(name, runID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '/':
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "scenario"
	}
	if runID != "" {
		s += "-" + runID
	}
	return s
}

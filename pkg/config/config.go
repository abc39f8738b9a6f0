// Package config loads clirun settings from layered YAML files, the
// environment and command-line overrides.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/clirun/pkg/redact"
	"github.com/ormasoftchile/clirun/pkg/response"
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"30s\"", node.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the full clirun configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Crypto CryptoConfig `yaml:"crypto"`
	HTTP   HTTPConfig   `yaml:"http"`
	Report ReportConfig `yaml:"report"`
	Log    LogConfig    `yaml:"log"`
	Trace  TraceConfig  `yaml:"trace"`
}

type ClientConfig struct {
	Path    string   `yaml:"path,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	// Encoding is auto, utf-8 or euc-kr.
	Encoding string `yaml:"encoding,omitempty"`
}

type CryptoConfig struct {
	Path        string   `yaml:"path,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	DelayMarker string   `yaml:"delay_marker,omitempty"`
	Delay       Duration `yaml:"delay,omitempty"`
}

type HTTPConfig struct {
	Timeout            Duration `yaml:"timeout,omitempty"`
	InsecureSkipVerify *bool    `yaml:"insecure_skip_verify,omitempty"`
}

type ReportConfig struct {
	Formats   []string      `yaml:"formats,omitempty"`
	OutputDir string        `yaml:"output_dir,omitempty"`
	Redact    []redact.Rule `yaml:"redact,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type TraceConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Client: ClientConfig{Timeout: Duration(30 * time.Second), Encoding: "auto"},
		Crypto: CryptoConfig{Timeout: Duration(10 * time.Second)},
		HTTP:   HTTPConfig{Timeout: Duration(30 * time.Second)},
		Report: ReportConfig{Formats: []string{"html", "json", "xml"}, OutputDir: "reports"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Merge returns base with every field set in overlay applied on top.
// Lists replace rather than append.
func Merge(base, overlay Config) Config {
	out := base
	setString(&out.Client.Path, overlay.Client.Path)
	setDuration(&out.Client.Timeout, overlay.Client.Timeout)
	setString(&out.Client.Encoding, overlay.Client.Encoding)

	setString(&out.Crypto.Path, overlay.Crypto.Path)
	setDuration(&out.Crypto.Timeout, overlay.Crypto.Timeout)
	setString(&out.Crypto.DelayMarker, overlay.Crypto.DelayMarker)
	setDuration(&out.Crypto.Delay, overlay.Crypto.Delay)

	setDuration(&out.HTTP.Timeout, overlay.HTTP.Timeout)
	if overlay.HTTP.InsecureSkipVerify != nil {
		v := *overlay.HTTP.InsecureSkipVerify
		out.HTTP.InsecureSkipVerify = &v
	}

	if len(overlay.Report.Formats) > 0 {
		out.Report.Formats = append([]string(nil), overlay.Report.Formats...)
	}
	setString(&out.Report.OutputDir, overlay.Report.OutputDir)
	if len(overlay.Report.Redact) > 0 {
		out.Report.Redact = append([]redact.Rule(nil), overlay.Report.Redact...)
	}

	setString(&out.Log.Level, overlay.Log.Level)
	setString(&out.Log.Format, overlay.Log.Format)
	setString(&out.Trace.Path, overlay.Trace.Path)
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *Duration, v Duration) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks values that cannot be caught while decoding.
func (c Config) Validate() error {
	if _, err := response.Decode(nil, c.Client.Encoding); err != nil {
		return fmt.Errorf("client.encoding: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: want text or json, got %q", c.Log.Format)
	}
	for name, d := range map[string]Duration{
		"client.timeout": c.Client.Timeout,
		"crypto.timeout": c.Crypto.Timeout,
		"crypto.delay":   c.Crypto.Delay,
		"http.timeout":   c.HTTP.Timeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if _, err := redact.Compile(c.Report.Redact); err != nil {
		return fmt.Errorf("report.redact: %w", err)
	}
	return nil
}

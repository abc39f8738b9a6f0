package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var (
	osUserHomeDir = os.UserHomeDir
	osGetwd       = os.Getwd
	osLookupEnv   = os.LookupEnv
)

const (
	userConfigDir    = ".config/clirun"
	projectConfigDir = ".clirun"
	configFileName   = "config.yaml"
)

// Environment variables that override file settings.
const (
	EnvClientPath     = "CLIRUN_CLIENT_PATH"
	EnvClientEncoding = "CLIRUN_CLIENT_ENCODING"
	EnvCryptoPath     = "CLIRUN_CRYPTO_PATH"
	EnvLogLevel       = "CLIRUN_LOG_LEVEL"
	EnvLogFormat      = "CLIRUN_LOG_FORMAT"
	EnvReportDir      = "CLIRUN_REPORT_DIR"
	// EnvConfig names the explicit config file for binaries without flags.
	EnvConfig         = "CLIRUN_CONFIG"
)

// Load layers defaults, the user file, the project file, the explicit
// file (which must exist when named) and the environment.
func Load(explicit string) (Config, error) {
	cfg := Default()

	for _, locate := range []func() (string, error){getUserConfigPath, getProjectConfigPath} {
		path, err := locate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not determine config path: %v\n", err)
			continue
		}
		overlay, found, err := loadOptional(path)
		if err != nil {
			return Config{}, err
		}
		if found {
			cfg = Merge(cfg, overlay)
		}
	}

	if explicit != "" {
		overlay, err := LoadFile(explicit)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, overlay)
	}

	cfg = Merge(cfg, fromEnv())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var getUserConfigPath = func() (string, error) {
	home, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func loadOptional(path string) (Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Config{}, false, nil
	}
	cfg, err := LoadFile(path)
	return cfg, err == nil, err
}

// LoadFile decodes one config file. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func fromEnv() Config {
	var cfg Config
	get := func(key string) string {
		v, _ := osLookupEnv(key)
		return strings.TrimSpace(v)
	}
	cfg.Client.Path = get(EnvClientPath)
	cfg.Client.Encoding = get(EnvClientEncoding)
	cfg.Crypto.Path = get(EnvCryptoPath)
	cfg.Log.Level = get(EnvLogLevel)
	cfg.Log.Format = get(EnvLogFormat)
	cfg.Report.OutputDir = get(EnvReportDir)
	return cfg
}

// LoadDotEnv reads KEY=VALUE lines from path and sets the variables that
// are not already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if _, set := osLookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
	return scanner.Err()
}

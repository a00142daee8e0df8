package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the YAML overlay read by LoadFile.
//
//	active: staging
//	environments:
//	  staging:
//	    base_url: https://staging.example.com/api
//	    timeout: 20s
//	    use_mocks: false
type File struct {
	Active       string               `yaml:"active"`
	Environments map[string]yaml.Node `yaml:"environments"`
}

// LoadFile builds a Config from the compiled-in defaults overlaid with the
// YAML file at path. Keys missing from an environment keep their default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	defaults := Defaults()
	var opts []Option
	for name, node := range f.Environments {
		env, err := ParseEnvironment(name)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", name, err)
		}
		s := defaults[env]
		if err := node.Decode(&s); err != nil {
			return nil, fmt.Errorf("environment %s: %w", name, err)
		}
		if s.BaseURL == "" {
			return nil, fmt.Errorf("environment %s: base_url is required", name)
		}
		opts = append(opts, WithSettings(env, s))
	}

	active := Development
	if f.Active != "" {
		active, err = ParseEnvironment(f.Active)
		if err != nil {
			return nil, err
		}
	}
	return New(active, opts...), nil
}

// LoadFileOrDefault returns the Config at path, or the defaults with
// Development active when the file cannot be read.
func LoadFileOrDefault(path string) *Config {
	cfg, err := LoadFile(path)
	if err != nil {
		return New(Development)
	}
	return cfg
}

type envOverrides struct {
	Environment string        `env:"SHOP_ENV"`
	BaseURL     string        `env:"SHOP_BASE_URL"`
	Timeout     time.Duration `env:"SHOP_TIMEOUT"`
	UseMocks    string        `env:"SHOP_USE_MOCKS"`
}

// ApplyEnv loads the optional dotenv files and applies SHOP_* variables to
// cfg. SHOP_ENV selects the active environment; the other variables override
// its settings.
func ApplyEnv(cfg *Config, dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	var ov envOverrides
	if err := envdecode.Decode(&ov); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	if ov.Environment != "" {
		env, err := ParseEnvironment(ov.Environment)
		if err != nil {
			return err
		}
		if err := cfg.SetEnvironment(env); err != nil {
			return err
		}
	}

	env, s := cfg.Current()
	changed := false
	if ov.BaseURL != "" {
		s.BaseURL = strings.TrimRight(ov.BaseURL, "/")
		changed = true
	}
	if ov.Timeout > 0 {
		s.Timeout = ov.Timeout
		changed = true
	}
	if ov.UseMocks != "" {
		v, err := strconv.ParseBool(ov.UseMocks)
		if err != nil {
			return fmt.Errorf("SHOP_USE_MOCKS: %w", err)
		}
		s.UseMocks = v
		changed = true
	}
	if changed {
		cfg.Override(env, s)
	}
	return nil
}

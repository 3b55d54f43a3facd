package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the optional TOML config file. Zero values fall through
// to the built-in defaults; environment variables override both.
type fileConfig struct {
	Server struct {
		Port           string   `toml:"port"`
		Env            string   `toml:"env"`
		ReadTimeout    string   `toml:"read_timeout"`
		WriteTimeout   string   `toml:"write_timeout"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"server"`
	Database struct {
		Host      string `toml:"host"`
		Port      string `toml:"port"`
		Namespace string `toml:"namespace"`
		Database  string `toml:"database"`
		User      string `toml:"user"`
		Password  string `toml:"password"`

		ConnectAttempts int   `toml:"connect_attempts"`
		Migrate         *bool `toml:"migrate"`
	} `toml:"database"`
	Broker struct {
		Host           string `toml:"host"`
		Port           int    `toml:"port"`
		Username       string `toml:"username"`
		Password       string `toml:"password"`
		VHost          string `toml:"vhost"`
		OptimizerQueue string `toml:"optimizer_queue"`
		ProgressQueue  string `toml:"progress_queue"`
		ControlQueue   string `toml:"control_queue"`
		PublishTimeout string `toml:"publish_timeout"`
	} `toml:"broker"`
	Cache struct {
		Enabled  *bool  `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		TTL      string `toml:"ttl"`
	} `toml:"cache"`
	Lifecycle struct {
		Enabled  *bool  `toml:"enabled"`
		Interval string `toml:"interval"`
	} `toml:"lifecycle"`
	Consumer struct {
		InProcess    *bool  `toml:"in_process"`
		StoreTimeout string `toml:"store_timeout"`
	} `toml:"consumer"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	errs []error
}

// readFile decodes the TOML file at path. An empty path yields an empty overlay.
func readFile(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// duration parses a duration string from the file, recording parse failures
func (f *fileConfig) duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		f.errs = append(f.errs, fmt.Errorf("config file: invalid duration %q: %w", value, err))
		return fallback
	}
	return d
}

func (f *fileConfig) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return errors.Join(f.errs...)
}

func orString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func orBool(value *bool, fallback bool) bool {
	if value != nil {
		return *value
	}
	return fallback
}

func orSlice(value, fallback []string) []string {
	if len(value) > 0 {
		return value
	}
	return fallback
}

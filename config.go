package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// cardinfo config.toml keys.
type fileConfig struct {
	Transport string `toml:"transport"`
	Interface int    `toml:"interface"`
	Slot      int    `toml:"slot"`
	ChunkSize int    `toml:"chunk_size"`
	ReadSize  int    `toml:"read_size"`
	Trace     bool   `toml:"trace"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

type config struct {
	Transport string
	Interface int
	Slot      int
	ChunkSize int
	ReadSize  int
	Trace     bool
	LogLevel  string
	LogFormat string
}

func defaultConfig() config {
	return config{
		Transport: "pcsc",
		ChunkSize: 255,
		ReadSize:  16,
		LogLevel:  "info",
		LogFormat: "pretty",
	}
}

// loadConfig overlays the keys defined in the TOML file at path on the
// defaults. An empty path yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load cardinfo config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load cardinfo config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("interface") {
		cfg.Interface = raw.Interface
	}
	if meta.IsDefined("slot") {
		cfg.Slot = raw.Slot
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("read_size") {
		cfg.ReadSize = raw.ReadSize
	}
	if meta.IsDefined("trace") {
		cfg.Trace = raw.Trace
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(raw.LogFormat))
	}

	if err := cfg.validate(); err != nil {
		return config{}, fmt.Errorf("load cardinfo config: %w", err)
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.Transport != "pcsc" && c.Transport != "sim" {
		return fmt.Errorf("unsupported transport %q (expected pcsc or sim)", c.Transport)
	}
	if c.Interface < 0 || c.Interface > 0xFFFF {
		return fmt.Errorf("interface %d out of range", c.Interface)
	}
	if c.ReadSize < 0 {
		return fmt.Errorf("read_size must be >= 0, got %d", c.ReadSize)
	}
	if c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported log_format %q (expected pretty or json)", c.LogFormat)
	}
	return nil
}

// Package config loads TOML configuration for the webbundle-server
// command.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config describes the TOML configuration for webbundle-server.
type Config struct {
	Server  serverConf
	Logging logConf
}

// serverConf describes the Server configuration block.
type serverConf struct {
	Address   string `toml:"address"`
	SourceDir string `toml:"source-dir"`
	CacheDir  string `toml:"cache-dir"`
	Version   string `toml:"version"`
}

// logConf describes the Logging configuration block.
type logConf struct {
	Level        string `toml:"level"`
	ReportCaller bool   `toml:"report-caller"`
}

// Default returns a Config with sensible defaults for running against the
// current directory.
func Default() Config {
	return Config{
		Server: serverConf{
			Address:   ":8080",
			SourceDir: ".",
			Version:   "b2",
		},
		Logging: logConf{
			Level: "info",
		},
	}
}

// Load reads and decodes a TOML configuration file.
func Load(filename string) (Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(filename, &conf); err != nil {
		return Config{}, fmt.Errorf("webbundle config: %w", err)
	}
	return conf, nil
}

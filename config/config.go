// Package config loads the transfer library's configuration surface
// from an INI file, layered beneath CLI flag overrides in the cmd/
// programs. Grounded on samsamfire-gocanopen/pkg/od/parser.go's use of
// gopkg.in/ini.v1 to load a mapped struct from a config file.
package config

import (
	"gopkg.in/ini.v1"
)

// Config mirrors every recognized option this module's protocols honor.
type Config struct {
	Xmodem struct {
		Flavor string `ini:"flavor"`
	} `ini:"xmodem"`

	Kermit struct {
		Streaming        bool `ini:"streaming"`
		WindowSize       int  `ini:"windowSize"`
		LongPackets      bool `ini:"longPackets"`
		RobustFilenames  bool `ini:"robustFilenames"`
		ForceBinaryUp    bool `ini:"forceBinary.upload"`
		ForceBinaryDown  bool `ini:"forceBinary.download"`
	} `ini:"kermit"`

	Zmodem struct {
		UseCRC32           bool `ini:"useCrc32"`
		EscapeControlChars bool `ini:"escapeControlChars"`
		IssueZChallenge    bool `ini:"download.issueZChallenge"`
	} `ini:"zmodem"`

	DownloadDirectory string `ini:"downloadDirectory"`
	Overwrite         string `ini:"overwrite"` // "supersede" | "warn" | "append" | "new"
}

// Default returns the configuration this module ships with when no
// file is present.
func Default() *Config {
	c := &Config{}
	c.Xmodem.Flavor = "crc"
	c.Kermit.WindowSize = 1
	c.Zmodem.UseCRC32 = true
	c.Zmodem.EscapeControlChars = false
	c.DownloadDirectory = "."
	c.Overwrite = "warn"
	return c
}

// Load reads path as an INI file into a Config seeded with Default()'s
// values, so a file only needs to mention the options it overrides.
func Load(path string) (*Config, error) {
	c := Default()
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	if err := f.MapTo(c); err != nil {
		return nil, err
	}
	return c, nil
}

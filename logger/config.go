package logger

import (
	"go.uber.org/zap/zapcore"

	"github.com/afdtools/afdstats/toml"
)

type Config struct {
	Format string        `toml:"format"`
	Level  zapcore.Level `toml:"level"`

	// File, when set, routes log output to a size-rotated file instead of
	// standard error.
	File       string    `toml:"file"`
	MaxSize    toml.Size `toml:"max-size"`
	MaxBackups int       `toml:"max-backups"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
	}
}

func (c Config) maxSizeMB() int {
	if c.MaxSize == 0 {
		return 0 // lumberjack default
	}
	mb := int(c.MaxSize >> 20)
	if mb == 0 {
		mb = 1
	}
	return mb
}

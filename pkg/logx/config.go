package logx

import (
	"io"
	"os"
	"strings"
	"time"
)

// Format selects the output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config holds logger configuration.
type Config struct {
	Level           Level
	Format          Format
	EnableColors    bool
	EnableTimestamp bool
	TimeFormat      string
	Output          io.Writer
}

// DefaultConfig returns console output at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		Format:          FormatConsole,
		EnableColors:    true,
		EnableTimestamp: true,
		TimeFormat:      time.RFC3339,
		Output:          os.Stdout,
	}
}

// LoadFromEnv builds a Config from LOG_LEVEL, LOG_FORMAT and LOG_COLOR.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = ParseLevel(level)
	}
	if format := strings.ToLower(os.Getenv("LOG_FORMAT")); format == string(FormatJSON) {
		cfg.Format = FormatJSON
	}
	if color := strings.ToLower(os.Getenv("LOG_COLOR")); color == "false" || color == "0" {
		cfg.EnableColors = false
	}

	return cfg
}

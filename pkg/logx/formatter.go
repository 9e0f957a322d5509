package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Formatter renders a LogEntry into a line of output.
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBold   = "\033[1m"
)

// ConsoleFormatter renders human-readable, optionally colored lines.
type ConsoleFormatter struct {
	config *Config
}

func NewConsoleFormatter(config *Config) *ConsoleFormatter {
	return &ConsoleFormatter{config: config}
}

func (f *ConsoleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var b strings.Builder

	if f.config.EnableTimestamp {
		b.WriteString(entry.Timestamp.Format(f.config.TimeFormat))
		b.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", entry.Level.String())
	if f.config.EnableColors {
		b.WriteString(f.levelColor(entry.Level))
		b.WriteString(level)
		b.WriteString(colorReset)
	} else {
		b.WriteString(level)
	}

	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteByte(' ')
			if f.config.EnableColors {
				b.WriteString(colorGray)
			}
			fmt.Fprintf(&b, "%s=%v", k, entry.Fields[k])
			if f.config.EnableColors {
				b.WriteString(colorReset)
			}
		}
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (f *ConsoleFormatter) levelColor(level Level) string {
	switch level {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorBlue
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	case LevelFatal:
		return colorBold + colorRed
	default:
		return colorReset
	}
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// JSONFormatter renders one JSON object per line.
type JSONFormatter struct {
	config *Config
}

func NewJSONFormatter(config *Config) *JSONFormatter {
	return &JSONFormatter{config: config}
}

func (f *JSONFormatter) Format(entry *LogEntry) ([]byte, error) {
	record := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		record[k] = v
	}
	record["level"] = entry.Level.String()
	record["message"] = entry.Message
	if f.config.EnableTimestamp {
		record["time"] = entry.Timestamp.Format(f.config.TimeFormat)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

package xlog

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewConfig returns the default logging configuration.
func NewConfig() Config {
	return Config{
		Level:        slog.LevelInfo,
		AddSource:    true,
		AttrReplacer: NormalizeSourceAttrReplacer(),
		StdFormat:    "text",
		StdWriter:    os.Stdout,
		Path:         "",
		MaxSize:      30,
		MaxAge:       0,
		MaxBackups:   0,
		Compress:     false,
	}
}

// Config describes how log records are formatted and where they go.
type Config struct {
	// Level is the minimum level emitted, defaults to LevelInfo.
	Level slog.Level
	// AddSource includes the source file and line of the call site.
	AddSource bool
	// AttrReplacer rewrites specific attributes before output, defaults to
	// NormalizeSourceAttrReplacer.
	AttrReplacer AttrReplacer

	// StdFormat is the standard output format, one of ["text", "json"].
	StdFormat string
	// StdWriter is the io.Writer for standard output, defaults to os.Stdout.
	StdWriter io.Writer

	// Path is the log file path, empty means no file output.
	Path string
	// MaxSize is the max size of a single log file in MB before rotation,
	// defaults to 30 MB.
	MaxSize int
	// MaxAge is the max days rotated files are retained, 0 keeps them forever.
	MaxAge int
	// MaxBackups is the max number of rotated files retained, 0 keeps all.
	MaxBackups int
	// Compress enables compression of rotated files.
	Compress bool
}

// BuildHandler creates a new slog.Handler with config.
func (c *Config) BuildHandler() slog.Handler {
	opts := c.buildHandlerOptions()
	if c.StdFormat == "json" {
		writer := c.StdWriter
		if fw := c.buildFileWriter(); fw != nil {
			writer = io.MultiWriter(c.StdWriter, fw)
		}
		return NewLeveledHandlerCreator(JSONHandlerCreator)(writer, opts)
	}

	// console output format as "text"
	handlers := []slog.Handler{}

	stdHandler := NewLeveledHandlerCreator(TextHandlerCreator)(c.StdWriter, opts)
	handlers = append(handlers, stdHandler)

	if fw := c.buildFileWriter(); fw != nil {
		fileHandler := NewLeveledHandlerCreator(JSONHandlerCreator)(fw, opts)
		handlers = append(handlers, fileHandler)
	}
	return MultiHandler(handlers...)
}

func (c *Config) buildFileWriter() io.Writer {
	if c.Path == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   c.Path,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

func (c *Config) buildHandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource:   c.AddSource,
		Level:       c.Level,
		ReplaceAttr: c.AttrReplacer,
	}
}

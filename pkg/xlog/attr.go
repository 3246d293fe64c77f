package xlog

import (
	"log/slog"
	"path/filepath"
)

// Attr is an alias of slog.Attr.
type Attr = slog.Attr

// Aliases of the slog levels so that callers don't need to import log/slog
// for common cases.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// NewLevelVar returns a *slog.LevelVar initialized to lvl.
func NewLevelVar(lvl slog.Level) *slog.LevelVar {
	v := &slog.LevelVar{}
	v.Set(lvl)
	return v
}

// AttrReplacer is called to rewrite each non-group attribute before it is logged.
type AttrReplacer func(groups []string, attr slog.Attr) Attr

// ChainReplacer calls replacers in order.
func ChainReplacer(replacers ...AttrReplacer) AttrReplacer {
	return func(groups []string, attr slog.Attr) Attr {
		rewrite := attr
		for _, repl := range replacers {
			rewrite = repl(groups, rewrite)
		}
		return rewrite
	}
}

// NormalizeSourceAttrReplacer replaces source file path as basename.
func NormalizeSourceAttrReplacer() AttrReplacer {
	return func(groups []string, attr slog.Attr) Attr {
		// Remove the directory from the source's filename.
		if attr.Key == slog.SourceKey {
			if source, ok := attr.Value.Any().(*slog.Source); ok {
				source.File = filepath.Base(source.File)
			}
		}
		return attr
	}
}

// SuppressTimeAttrReplacer removes the top-level time attribute. It is
// intended to make example and test output deterministic.
func SuppressTimeAttrReplacer() AttrReplacer {
	return func(groups []string, attr slog.Attr) Attr {
		if attr.Key == slog.TimeKey && len(groups) == 0 {
			return slog.Attr{}
		}
		return attr
	}
}

const badKey = "!BADKEY"

// argsToAttrSlice converts loosely-typed key-value args to attrs the same
// way slog.Logger.With does.
func argsToAttrSlice(args []any) []slog.Attr {
	var (
		attr  slog.Attr
		attrs []slog.Attr
	)
	for len(args) > 0 {
		attr, args = argsToAttr(args)
		attrs = append(attrs, attr)
	}
	return attrs
}

func argsToAttr(args []any) (slog.Attr, []any) {
	switch x := args[0].(type) {
	case string:
		if len(args) == 1 {
			return slog.String(badKey, x), nil
		}
		return slog.Any(x, args[1]), args[2:]
	case slog.Attr:
		return x, args[1:]
	default:
		return slog.Any(badKey, x), args[1:]
	}
}

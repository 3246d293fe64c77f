// Package cmdhelper provides output helpers shared by the cli commands.
package cmdhelper

import (
	"encoding/json"
	"fmt"
	"io"
)

// Fprintf is a wrapper around fmt.Fprintf to suppress the error check.
func Fprintf(w io.Writer, format string, args ...any) {
	if format[len(format)-1] != '\n' {
		format += "\n"
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

// PrettifyJSON is a helper function to prettify data to json bytes with indents.
func PrettifyJSON(data any) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

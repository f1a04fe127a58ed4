package cli

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
)

// PreflightError is a user-facing failure with guidance on how to recover.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	return e.Message
}

// Render formats the error for the terminal.
func (e *PreflightError) Render() string {
	lines := []string{"Error: " + e.Message}
	if e.Hint != "" {
		lines = append(lines, "Hint: "+e.Hint)
	}
	if e.NextStep != "" {
		lines = append(lines, "Next: "+e.NextStep)
	}
	return strings.Join(lines, "\n")
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// WriteOutput writes v as indented JSON, or as one JSON value per line when
// --jsonl is set and v is a slice.
func WriteOutput(out io.Writer, v any) error {
	if IsJSONLOutput() {
		return writeJSONLines(out, v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONLines(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return enc.Encode(v)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := enc.Encode(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// MustBeJSONLForWatch requires --jsonl when following a stream.
func MustBeJSONLForWatch() error {
	if followMode && !IsJSONLOutput() {
		return errors.New("--follow streams JSON lines; add --jsonl")
	}
	return nil
}

// errorPayload is the machine-readable form of a failed command.
type errorPayload struct {
	Error    string `json:"error"`
	Hint     string `json:"hint,omitempty"`
	NextStep string `json:"next_step,omitempty"`
}

func newErrorPayload(err error) errorPayload {
	var preflight *PreflightError
	if errors.As(err, &preflight) {
		return errorPayload{Error: preflight.Message, Hint: preflight.Hint, NextStep: preflight.NextStep}
	}
	return errorPayload{Error: err.Error()}
}

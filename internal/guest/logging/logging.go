// Package logging forwards guest log records to the host's "log" import.
// Records are JSON objects whose level uses slog numbering.
package logging

import (
	"log/slog"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogMessage represents a structured log message to be sent to the host
type LogMessage struct {
	Level   int32             `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// Encode marshals a record in the form the host expects.
func Encode(level slog.Level, message string, fields map[string]string) ([]byte, error) {
	return json.Marshal(LogMessage{
		Level:   int32(level),
		Message: message,
		Fields:  fields,
	})
}

func sendLogMessage(level slog.Level, message string, fields map[string]string) {
	b, err := Encode(level, message, fields)
	if err != nil {
		// nowhere to report it
		return
	}
	emit(b)
}

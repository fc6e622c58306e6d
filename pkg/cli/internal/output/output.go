// Package output provides common output formatting utilities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSON writes indented JSON to w.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Line writes v as one compact JSON line, for streams of events.
func Line(w io.Writer, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Warn("failed to encode output: %v", err)
	}
}

// Event is one streamed WebSocket event.
type Event struct {
	Direction string `json:"direction,omitempty"`
	Type      string `json:"type"`
	Data      string `json:"data"`
	Index     int    `json:"index,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(direction, typ, data string) Event {
	return Event{Direction: direction, Type: typ, Data: data, Timestamp: time.Now().Format(time.RFC3339)}
}

// Warn prints a warning message to stderr.
func Warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"net/http"
	"strings"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Header builds an http.Header from "key:value" strings. Entries without a
// colon are skipped.
func Header(lines []string) http.Header {
	h := make(http.Header)
	for _, line := range lines {
		if key, value, ok := KeyValue(line, ':'); ok && strings.TrimSpace(key) != "" {
			h.Add(strings.TrimSpace(key), strings.TrimSpace(value))
		}
	}
	return h
}

// SplitTrim splits a string by separator and trims each part.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError is returned when a model response cannot be decoded into the expected shape
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// CleanJSONBlock removes markdown code block wrappers and any chatter around the JSON value.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.ContainsAny(firstLine, "{[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	return trimToJSONValue(text)
}

// trimToJSONValue drops preamble before the first { or [ and trailing text after the matching closer
func trimToJSONValue(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}

// ParseJSON decodes a raw model response into T.
// It is the single place where model output becomes typed data.
func ParseJSON[T any](raw string) (T, error) {
	var out T
	cleaned := CleanJSONBlock(raw)
	if cleaned == "" {
		return out, &ParseError{Message: "empty response"}
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, &ParseError{Message: "invalid JSON in response", Cause: err}
	}
	return out, nil
}

// Truncate shortens text to at most limit characters, appending "..." when anything was cut
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

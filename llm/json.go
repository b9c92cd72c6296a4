package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a reply holds no parseable JSON.
var ErrNoJSON = errors.New("no valid JSON found in response")

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSON pulls the first balanced JSON object or array out of a reply
// that may be wrapped in markdown fences or reasoning tags.
func ExtractJSON(reply string) (string, error) {
	cleaned := thinkBlock.ReplaceAllString(reply, "")

	obj := strings.IndexByte(cleaned, '{')
	arr := strings.IndexByte(cleaned, '[')
	if obj >= 0 && (arr < 0 || obj < arr) {
		if s, ok := balanced(cleaned[obj:], '{', '}'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}
	if arr >= 0 {
		if s, ok := balanced(cleaned[arr:], '[', ']'); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	}
	if trimmed := strings.TrimSpace(cleaned); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", ErrNoJSON
}

// balanced returns the prefix of s (which starts with open) up to its
// matching close, ignoring brackets inside strings.
func balanced(s string, open, close byte) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// CompleteJSON runs a completion and decodes the JSON in the reply into T.
func CompleteJSON[T any](ctx context.Context, c Client, system, prompt string) (T, error) {
	var out T
	reply, err := c.Complete(ctx, system, prompt)
	if err != nil {
		return out, err
	}
	raw, err := ExtractJSON(reply)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode llm json: %w", err)
	}
	return out, nil
}

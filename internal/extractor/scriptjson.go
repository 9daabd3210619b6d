package extractor

import (
	"encoding/json"
	"strings"
)

// ExtractScriptValue pulls a JSON-ish literal out of page-rendered script
// text. It locates anchor, takes the first bracketed literal after it,
// repairs common looseness (single-quoted strings), and unmarshals into out.
// Returns false on any failure; callers degrade to an empty sub-section
// instead of failing the fetch.
func ExtractScriptValue(text, anchor string, out interface{}) bool {
	idx := strings.Index(text, anchor)
	if idx < 0 {
		return false
	}
	rest := text[idx+len(anchor):]

	start := strings.IndexAny(rest, "[{")
	if start < 0 {
		return false
	}
	literal, ok := balancedLiteral(rest[start:])
	if !ok {
		return false
	}

	if json.Unmarshal([]byte(literal), out) == nil {
		return true
	}
	// Loose payloads quote with single quotes; normalize and retry
	repaired := strings.ReplaceAll(literal, "'", `"`)
	return json.Unmarshal([]byte(repaired), out) == nil
}

// balancedLiteral returns the prefix of s covering one balanced [] or {}
// literal, skipping brackets inside string values
func balancedLiteral(s string) (string, bool) {
	open := s[0]
	var close byte
	switch open {
	case '[':
		close = ']'
	case '{':
		close = '}'
	default:
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

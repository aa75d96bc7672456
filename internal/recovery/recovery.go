// Package recovery repairs and extracts JSON objects from LLM completions.
// Models wrap payloads in prose or markdown fences, emit comments, trailing
// commas and single-quoted strings; callers get back something json.Unmarshal
// accepts, or a clear failure they can degrade on.
package recovery

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when no parseable JSON object can be recovered.
var ErrNoObject = errors.New("recovery: no JSON object found")

var (
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingObjRe  = regexp.MustCompile(`,\s*}`)
	trailingArrRe  = regexp.MustCompile(`,\s*]`)
	singleQuoteRe  = regexp.MustCompile(`'([^']*)'`)
	controlRe      = regexp.MustCompile(`[\x00-\x1f]+`)
)

// Repair applies textual fixes for the malformations models actually
// produce: comments, trailing commas, single-quoted strings and raw
// control characters. It never guarantees valid JSON, only a better shot.
func Repair(raw string) string {
	s := lineCommentRe.ReplaceAllString(raw, "")
	s = blockCommentRe.ReplaceAllString(s, "")
	s = trailingObjRe.ReplaceAllString(s, "}")
	s = trailingArrRe.ReplaceAllString(s, "]")
	s = replaceSingleQuotes(s)
	s = controlRe.ReplaceAllString(s, " ")
	return s
}

// replaceSingleQuotes rewrites 'value' as "value" unless the quote sits
// next to a double quote or backslash, which usually means an apostrophe
// inside an already well-formed string.
func replaceSingleQuotes(s string) string {
	idxs := singleQuoteRe.FindAllStringSubmatchIndex(s, -1)
	if len(idxs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range idxs {
		start, end := m[0], m[1]
		if adjacentQuoteOrEscape(s, start, end) {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteByte('"')
		b.WriteString(s[m[2]:m[3]])
		b.WriteByte('"')
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}

func adjacentQuoteOrEscape(s string, start, end int) bool {
	if start > 0 {
		switch s[start-1] {
		case '"', '\\':
			return true
		}
	}
	if end < len(s) {
		switch s[end] {
		case '"', '\\':
			return true
		}
	}
	return false
}

// ExtractObject returns the text of the first JSON object recoverable from
// raw. The ladder is: widest brace span parsed strictly, the same span
// repaired, then every balanced {...} candidate found by depth scan,
// repaired. Later stages only run when earlier ones fail.
func ExtractObject(raw string) (string, error) {
	if span, ok := widestBraceSpan(raw); ok {
		if json.Valid([]byte(span)) {
			return span, nil
		}
		if fixed := Repair(span); json.Valid([]byte(fixed)) {
			return fixed, nil
		}
	}
	for _, cand := range balancedCandidates(raw) {
		if fixed := Repair(cand); json.Valid([]byte(fixed)) {
			return fixed, nil
		}
	}
	return "", ErrNoObject
}

// Decode recovers a JSON object from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	obj, err := ExtractObject(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return err
	}
	return nil
}

// widestBraceSpan is the substring from the first '{' to the last '}'.
func widestBraceSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// balancedCandidates collects every top-level balanced {...} run, tracking
// brace depth while respecting double-quoted strings and escapes.
func balancedCandidates(s string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

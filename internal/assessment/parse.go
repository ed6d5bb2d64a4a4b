// Package assessment recovers and validates the scoring model's reply.
package assessment

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnparseable means no strategy produced JSON from the reply.
var ErrUnparseable = errors.New("could not parse AI response as JSON")

// Strategy is one attempt at recovering JSON from free text. Apply must be pure.
type Strategy struct {
	Name  string
	Apply func(text string) (any, bool)
}

// Strategies run in order; the first that succeeds wins.
var Strategies = []Strategy{
	{Name: "direct", Apply: Direct},
	{Name: "fenced", Apply: Fenced},
	{Name: "braces", Apply: Braces},
	{Name: "repaired", Apply: Repaired},
}

// Parse returns the first successful strategy's value and its name.
func Parse(text string) (any, string, error) {
	for _, s := range Strategies {
		if v, ok := s.Apply(text); ok {
			return v, s.Name, nil
		}
	}
	return nil, "", ErrUnparseable
}

func Direct(text string) (any, bool) {
	return unmarshal(strings.TrimSpace(text))
}

var fence = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\\r?\\n?(.*?)```")

// Fenced parses the body of the first fenced code block that holds valid JSON.
func Fenced(text string) (any, bool) {
	for _, m := range fence.FindAllStringSubmatch(text, -1) {
		if v, ok := unmarshal(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}
	return nil, false
}

// Braces parses the span from the first '{' to the last '}'.
func Braces(text string) (any, bool) {
	span, ok := braceSpan(text)
	if !ok {
		return nil, false
	}
	return unmarshal(span)
}

// Repaired applies Repair to the brace span and parses the result.
func Repaired(text string) (any, bool) {
	span, ok := braceSpan(text)
	if !ok {
		return nil, false
	}
	return unmarshal(Repair(span))
}

func braceSpan(text string) (string, bool) {
	i := strings.Index(text, "{")
	j := strings.LastIndex(text, "}")
	if i < 0 || j <= i {
		return "", false
	}
	return text[i : j+1], true
}

func unmarshal(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// Repair fixes the common ways model output deviates from JSON: trailing commas
// before '}' or ']', bare object keys, and single-quoted strings. Text inside
// double-quoted strings is copied unchanged.
func Repair(s string) string {
	rs := []rune(s)
	var out strings.Builder
	out.Grow(len(s) + 16)
	expectKey := false

	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '"':
			end := stringEnd(rs, i, '"')
			out.WriteString(string(rs[i : end+1]))
			i = end
			expectKey = false
		case c == '\'':
			end := stringEnd(rs, i, '\'')
			out.WriteString(requote(rs[i+1 : end]))
			i = end
			expectKey = false
		case c == ',':
			k := skipSpace(rs, i+1)
			if k < len(rs) && (rs[k] == '}' || rs[k] == ']') {
				continue
			}
			out.WriteRune(c)
			expectKey = true
		case c == '{':
			out.WriteRune(c)
			expectKey = true
		case isSpace(c):
			out.WriteRune(c)
		case expectKey && isIdentStart(c):
			k := i
			for k < len(rs) && isIdent(rs[k]) {
				k++
			}
			ident := string(rs[i:k])
			if n := skipSpace(rs, k); n < len(rs) && rs[n] == ':' {
				out.WriteString(`"` + ident + `"`)
			} else {
				out.WriteString(ident)
			}
			i = k - 1
			expectKey = false
		default:
			out.WriteRune(c)
			expectKey = false
		}
	}
	return out.String()
}

// stringEnd returns the index of the quote closing the string opened at start,
// or the last index if it is unterminated.
func stringEnd(rs []rune, start int, quote rune) int {
	for i := start + 1; i < len(rs); i++ {
		switch rs[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(rs) - 1
}

// requote turns the body of a single-quoted string into a JSON string.
func requote(body []rune) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteRune('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteRune(c)
			b.WriteRune(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && isSpace(rs[i]) {
		i++
	}
	return i
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c rune) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c rune) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

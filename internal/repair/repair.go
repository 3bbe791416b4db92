// Package repair salvages truncated or malformed JSON produced by
// length-limited LLM generation without inventing values.
package repair

import (
	"encoding/json"
	"strings"
)

// boundary is a position where the payload can be cut and still close
// into valid JSON: right after an opening bracket, right before a comma,
// or right after a closing bracket.
type boundary struct {
	pos     int
	stack   []byte
	opening bool
}

// Repair returns text unchanged when it is already valid JSON. Otherwise
// it cuts the payload back to the last complete element and appends the
// closing brackets implied by the open ones. A value that was cut off
// mid-string or mid-literal is dropped, never completed. If no cut point
// yields valid JSON the input is returned as is.
func Repair(text string) string {
	s := strings.TrimSpace(text)
	if s == "" || json.Valid([]byte(s)) {
		return text
	}
	out, _, ok := repairPayload(s)
	if !ok {
		return text
	}
	return out
}

// repairPayload closes s at the best cut point. kept is the number of
// bytes of s that survive in the output before the appended closers.
func repairPayload(s string) (out string, kept int, ok bool) {
	var (
		stack       []byte
		bounds      []boundary
		inString    bool
		escaped     bool
		stringStart = -1
	)
	snapshot := func() []byte { return append([]byte(nil), stack...) }

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			stringStart = i
		case '{', '[':
			stack = append(stack, c)
			bounds = append(bounds, boundary{pos: i + 1, stack: snapshot(), opening: true})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			bounds = append(bounds, boundary{pos: i + 1, stack: snapshot()})
		case ',':
			bounds = append(bounds, boundary{pos: i, stack: snapshot()})
		}
	}

	limit := len(s)
	if inString {
		limit = stringStart
	} else if completeTail(s) {
		if out, kept, ok := closeAt(s, stack); ok {
			return out, kept, true
		}
	}

	// Element boundaries first, then bare opening brackets, which close
	// into empty containers.
	for _, wantOpening := range []bool{false, true} {
		for i := len(bounds) - 1; i >= 0; i-- {
			b := bounds[i]
			if b.pos > limit || b.opening != wantOpening {
				continue
			}
			if out, kept, ok := closeAt(s[:b.pos], b.stack); ok {
				return out, kept, true
			}
		}
	}
	return "", 0, false
}

// completeTail reports whether s ends on a token that cannot be a cut-off
// scalar: a closing bracket, a closing quote or a separator.
func completeTail(s string) bool {
	switch s[len(s)-1] {
	case '}', ']', '"', ',':
		return true
	}
	return false
}

func closeAt(prefix string, stack []byte) (string, int, bool) {
	prefix = trimTail(prefix)
	if prefix == "" {
		return "", 0, false
	}

	var sb strings.Builder
	sb.Grow(len(prefix) + len(stack))
	sb.WriteString(prefix)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	out := sb.String()
	return out, len(prefix), json.Valid([]byte(out))
}

func trimTail(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")
	return strings.TrimRight(s, " \t\r\n")
}

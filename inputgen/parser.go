package inputgen

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed template. Fragment is the smallest piece of
// the template the error could be attributed to.
type ParseError struct {
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid input template %q: %s", e.Fragment, e.Reason)
}

var closers = map[byte]byte{'[': ']', '{': '}', '(': ')'}

// Parse parses a template. The first non-blank character selects the form;
// text that does not start with an opening bracket is a Const and keeps its
// whitespace.
func Parse(template string) (Node, error) {
	if trimmed := strings.TrimSpace(template); trimmed != "" && closers[trimmed[0]] != 0 {
		template = trimmed
	}
	if template == "" {
		return Const{}, nil
	}

	open := template[0]
	closer, isBracket := closers[open]
	if !isBracket {
		return Const{Text: unescapeConst(template)}, nil
	}

	end, err := matchingClose(template)
	if err != nil {
		return nil, err
	}
	if end != len(template)-1 {
		return nil, &ParseError{Fragment: template, Reason: fmt.Sprintf("unexpected text after closing %q", closer)}
	}
	body := template[1:end]

	switch open {
	case '(':
		return parseRange(template, body)
	case '[':
		children, err := parseChildren(body)
		if err != nil {
			return nil, err
		}
		return List{Children: children}, nil
	default:
		if body == "" {
			return nil, &ParseError{Fragment: template, Reason: "set needs at least one element"}
		}
		children, err := parseChildren(body)
		if err != nil {
			return nil, err
		}
		return Set{Children: children}, nil
	}
}

// MustParse is like Parse but panics on error.
func MustParse(template string) Node {
	n, err := Parse(template)
	if err != nil {
		panic(err)
	}
	return n
}

// matchingClose returns the index of the bracket closing s[0].
func matchingClose(s string) (int, error) {
	var stack []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			continue
		}
		if closer, ok := closers[c]; ok {
			stack = append(stack, closer)
			continue
		}
		if !isCloser(c) {
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != c {
			return 0, &ParseError{Fragment: s, Reason: fmt.Sprintf("unbalanced %q at offset %d", c, i)}
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return i, nil
		}
	}
	return 0, &ParseError{Fragment: s, Reason: fmt.Sprintf("missing closing %q", stack[0])}
}

func isCloser(c byte) bool {
	return c == ']' || c == '}' || c == ')'
}

// splitTopLevel splits s on commas that are neither escaped nor nested inside
// any bracket.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts []string
		stack []byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			i++
		case closers[c] != 0:
			stack = append(stack, closers[c])
		case isCloser(c):
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, &ParseError{Fragment: s, Reason: fmt.Sprintf("unbalanced %q at offset %d", c, i)}
			}
			stack = stack[:len(stack)-1]
		case c == ',' && len(stack) == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if len(stack) > 0 {
		return nil, &ParseError{Fragment: s, Reason: fmt.Sprintf("missing closing %q", stack[0])}
	}
	return append(parts, s[start:]), nil
}

func parseChildren(body string) ([]Node, error) {
	if body == "" {
		return nil, nil
	}
	parts, err := splitTopLevel(body)
	if err != nil {
		return nil, err
	}
	children := make([]Node, 0, len(parts))
	for _, part := range parts {
		child, err := Parse(part)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func parseRange(fragment, body string) (Node, error) {
	bounds := strings.Split(body, "-")
	if len(bounds) != 2 {
		return nil, &ParseError{Fragment: fragment, Reason: "range needs exactly one '-' between min and max"}
	}
	lo, err := strconv.ParseInt(strings.TrimSpace(bounds[0]), 10, 64)
	if err != nil {
		return nil, &ParseError{Fragment: fragment, Reason: fmt.Sprintf("invalid lower bound %q", bounds[0])}
	}
	hi, err := strconv.ParseInt(strings.TrimSpace(bounds[1]), 10, 64)
	if err != nil {
		return nil, &ParseError{Fragment: fragment, Reason: fmt.Sprintf("invalid upper bound %q", bounds[1])}
	}
	if lo > hi {
		return nil, &ParseError{Fragment: fragment, Reason: fmt.Sprintf("lower bound %d exceeds upper bound %d", lo, hi)}
	}
	return RandInt{Min: lo, Max: hi}, nil
}

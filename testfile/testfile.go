// Package testfile reads and writes the flat text test-case document.
//
// A document is a sequence of records. Each record starts with a line
// beginning with '|', the rest of that line being the record name. Inside a
// record:
//
//	< text   one line of input, "text\n"; repeated lines append
//	<<       every following line is input, verbatim, up to the next marker line
//	> text   one line of expected output
//	>>       multi-line expected output
//
// A record without an input marker has no input, which is not the same as an
// empty input ("<<" followed directly by another marker). The same holds for
// expected output.
package testfile

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	markerName   = '|'
	markerInput  = '<'
	markerOutput = '>'
)

// ParseError reports a malformed document. Line is 1-based.
type ParseError struct {
	Line     int
	Fragment string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Fragment)
}

type fieldForm int

const (
	formAbsent fieldForm = iota
	formSingle
	formMulti
)

type parseMode int

const (
	modeNone parseMode = iota
	modeSingle
	modeMultiInput
	modeMultiOutput
)

type recordBuilder struct {
	tc         types.TestCase
	inputForm  fieldForm
	outputForm fieldForm
}

// Parse parses a document into its records, in document order.
func Parse(data []byte) ([]types.TestCase, error) {
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}

	var (
		cases   []types.TestCase
		current *recordBuilder
		mode    = modeNone
	)
	flush := func() {
		if current != nil {
			cases = append(cases, current.tc)
		}
	}

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		if line == "" || !isMarker(line[0]) {
			switch {
			case mode == modeMultiInput:
				current.tc.Input = append(current.tc.Input, line+"\n"...)
			case mode == modeMultiOutput:
				current.tc.Output = append(current.tc.Output, line+"\n"...)
			case strings.TrimSpace(line) == "":
			case current == nil:
				return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "text before the first record"}
			default:
				return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "text outside an input or output field"}
			}
			continue
		}

		if line[0] == markerName {
			flush()
			current = &recordBuilder{tc: types.TestCase{Name: strings.TrimSpace(line[1:])}}
			mode = modeNone
			continue
		}
		if current == nil {
			return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "field before the first record"}
		}

		isInput := line[0] == markerInput
		field, form := &current.tc.Output, &current.outputForm
		has := &current.tc.HasOutput
		if isInput {
			field, form, has = &current.tc.Input, &current.inputForm, &current.tc.HasInput
		}

		if len(line) > 1 && line[1] == line[0] {
			if *form != formAbsent {
				return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "field already defined"}
			}
			if strings.TrimSpace(line[2:]) != "" {
				return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "unexpected text after multi-line marker"}
			}
			*field, *form, *has = []byte{}, formMulti, true
			mode = modeMultiOutput
			if isInput {
				mode = modeMultiInput
			}
			continue
		}

		if *form == formMulti {
			return nil, &ParseError{Line: lineNo, Fragment: line, Reason: "single-line marker after multi-line field"}
		}
		*field = append(*field, strings.TrimLeft(line[1:], " \t")+"\n"...)
		*form, *has = formSingle, true
		mode = modeSingle
	}
	flush()
	return cases, nil
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) ([]types.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test document: %w", err)
	}
	cases, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cases, nil
}

// Serialize renders records so that Parse returns them unchanged, except
// that a field lacking a final newline gains one. Fields spanning exactly one
// line use the single-marker form. Record names must fit on one line without
// surrounding whitespace.
func Serialize(cases []types.TestCase) ([]byte, error) {
	var buf bytes.Buffer
	for _, tc := range cases {
		if strings.ContainsAny(tc.Name, "\r\n") {
			return nil, fmt.Errorf("record name %q spans multiple lines", tc.Name)
		}
		if strings.TrimSpace(tc.Name) != tc.Name {
			return nil, fmt.Errorf("record name %q has leading or trailing whitespace", tc.Name)
		}
		buf.WriteString("| " + tc.Name + "\n")
		if tc.HasInput {
			if err := writeField(&buf, markerInput, tc.Input); err != nil {
				return nil, fmt.Errorf("record %q input: %w", tc.Name, err)
			}
		}
		if tc.HasOutput {
			if err := writeField(&buf, markerOutput, tc.Output); err != nil {
				return nil, fmt.Errorf("record %q output: %w", tc.Name, err)
			}
		}
	}
	return buf.Bytes(), nil
}

// WriteFile serializes records into the document at path.
func WriteFile(path string, cases []types.TestCase) error {
	data, err := Serialize(cases)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write test document: %w", err)
	}
	return nil
}

func writeField(buf *bytes.Buffer, marker byte, value []byte) error {
	if line, ok := singleLine(value); ok {
		buf.WriteByte(marker)
		buf.WriteString(" " + line + "\n")
		return nil
	}

	buf.Write([]byte{marker, marker, '\n'})
	if len(value) == 0 {
		return nil
	}
	body := strings.TrimSuffix(string(value), "\n")
	for _, line := range strings.Split(body, "\n") {
		if line != "" && isMarker(line[0]) {
			return fmt.Errorf("line %q starts with a marker character", line)
		}
		buf.WriteString(line + "\n")
	}
	return nil
}

// singleLine reports whether value is exactly one non-empty line that the
// single-marker form preserves.
func singleLine(value []byte) (string, bool) {
	line, ok := strings.CutSuffix(string(value), "\n")
	if !ok || line == "" || strings.Contains(line, "\n") {
		return "", false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return "", false
	}
	return line, true
}

func isMarker(c byte) bool {
	return c == markerName || c == markerInput || c == markerOutput
}

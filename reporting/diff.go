package reporting

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// FormatMismatch describes how actual output differs from the expected one.
// Single-line values are shown inline as "expected: X, got: Y", anything
// longer as a unified line diff.
func FormatMismatch(expected, actual []byte) string {
	exp := bytes.TrimSuffix(expected, []byte("\n"))
	act := bytes.TrimSuffix(actual, []byte("\n"))
	if !bytes.Contains(exp, []byte("\n")) && !bytes.Contains(act, []byte("\n")) {
		return fmt.Sprintf("expected: %s, got: %s\n", quoteIfNeeded(exp), quoteIfNeeded(act))
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expected)),
		B:        difflib.SplitLines(string(actual)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("expected:\n%s\ngot:\n%s\n", expected, actual)
	}
	return diff
}

// quoteIfNeeded leaves plain text alone and quotes values whose edges or
// content would be invisible.
func quoteIfNeeded(b []byte) string {
	s := string(b)
	if s == "" || strings.TrimSpace(s) != s || strconv.Quote(s) != `"`+s+`"` {
		return strconv.Quote(s)
	}
	return s
}

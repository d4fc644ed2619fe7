package testfile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []types.TestCase
	}{
		{
			name: "empty document",
			doc:  "",
			want: nil,
		},
		{
			name: "single line fields",
			doc:  "| square\n< 5\n> 25\n",
			want: []types.TestCase{types.NewTestCase("square", []byte("5\n"), []byte("25\n"))},
		},
		{
			name: "repeated single lines append",
			doc:  "| pair\n< 1\n<2\n> 3\n",
			want: []types.TestCase{types.NewTestCase("pair", []byte("1\n2\n"), []byte("3\n"))},
		},
		{
			name: "multi line fields",
			doc:  "| sum\n<<\n1 2\n  3\n\n>>\n6\n",
			want: []types.TestCase{types.NewTestCase("sum", []byte("1 2\n  3\n\n"), []byte("6\n"))},
		},
		{
			name: "absent and empty fields",
			doc:  "|no input\n> x\n| empty input\n<<\n| no output\n< y\n",
			want: []types.TestCase{
				types.TestCase{Name: "no input"}.WithOutput([]byte("x\n")),
				types.TestCase{Name: "empty input"}.WithInput([]byte{}),
				types.TestCase{Name: "no output"}.WithInput([]byte("y\n")),
			},
		},
		{
			name: "blank lines between records",
			doc:  "\n| a\n< 1\n\n\n| b\n> 2\n",
			want: []types.TestCase{
				types.TestCase{Name: "a"}.WithInput([]byte("1\n")),
				types.TestCase{Name: "b"}.WithOutput([]byte("2\n")),
			},
		},
		{
			name: "empty record",
			doc:  "| lonely",
			want: []types.TestCase{{Name: "lonely"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAbsentVersusEmpty(t *testing.T) {
	cases, err := Parse([]byte("| a\n<<\n>>\n| b\n"))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.True(t, cases[0].HasInput)
	assert.Empty(t, cases[0].Input)
	assert.True(t, cases[0].HasOutput)
	assert.NotNil(t, cases[0].StdinBytes())

	assert.False(t, cases[1].HasInput)
	assert.False(t, cases[1].HasOutput)
	assert.Nil(t, cases[1].StdinBytes())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		line int
	}{
		{name: "text before first record", doc: "hello\n| a\n", line: 1},
		{name: "marker before first record", doc: "< 1\n", line: 1},
		{name: "stray text", doc: "| a\n< 1\noops\n", line: 3},
		{name: "duplicate multi-line input", doc: "| a\n<<\nx\n<<\n", line: 4},
		{name: "single after multi-line", doc: "| a\n>>\nx\n> y\n", line: 4},
		{name: "multi after single", doc: "| a\n> y\n>>\n", line: 3},
		{name: "text after multi-line marker", doc: "| a\n<< 5\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.line, parseErr.Line)
		})
	}
}

func TestSerializeForms(t *testing.T) {
	cases := []types.TestCase{
		types.NewTestCase("one", []byte("5\n"), []byte("25\n")),
		types.NewTestCase("many", []byte("1\n2\n"), []byte("")),
		types.TestCase{Name: "indented"}.WithInput([]byte("  x\n")),
		types.TestCase{Name: "no newline"}.WithOutput([]byte("7")),
	}

	data, err := Serialize(cases)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"| one",
		"< 5",
		"> 25",
		"| many",
		"<<",
		"1",
		"2",
		">>",
		"| indented",
		"<<",
		"  x",
		"| no newline",
		">>",
		"7",
		"",
	}, "\n"), string(data))
}

func TestSerializeRejectsAmbiguousValues(t *testing.T) {
	_, err := Serialize([]types.TestCase{types.TestCase{Name: "a"}.WithInput([]byte("1\n< 2\n"))})
	require.Error(t, err)

	_, err = Serialize([]types.TestCase{{Name: "two\nlines"}})
	require.Error(t, err)

	// Parse trims record names, so padded names would not come back intact.
	for _, name := range []string{" lead", "trail\t", " "} {
		_, err = Serialize([]types.TestCase{{Name: name}})
		require.Error(t, err, "name %q", name)
	}

	data, err := Serialize([]types.TestCase{{Name: "inner space"}})
	require.NoError(t, err)
	cases, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []types.TestCase{{Name: "inner space"}}, cases)
}

func TestWriteAndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.txt")
	cases := []types.TestCase{
		types.NewTestCase("square", []byte("5\n"), []byte("25\n")),
		types.NewTestCase("lines", []byte("a\nb\n"), []byte("\n")),
	}
	require.NoError(t, WriteFile(path, cases))

	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, cases, got)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(t, "records")
		var cases []types.TestCase
		for i := 0; i < n; i++ {
			tc := types.TestCase{Name: rapid.StringMatching(`[a-z0-9_]([a-z0-9 _-]{0,10}[a-z0-9_])?`).Draw(t, "name")}
			if rapid.Bool().Draw(t, "hasInput") {
				tc = tc.WithInput(drawField(t))
			}
			if rapid.Bool().Draw(t, "hasOutput") {
				tc = tc.WithOutput(drawField(t))
			}
			cases = append(cases, tc)
		}

		data, err := Serialize(cases)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("parse %q: %v", data, err)
		}
		assert.Equal(t, cases, got)
	})
}

// drawField draws zero or more newline-terminated lines that never start with
// a marker character.
func drawField(t *rapid.T) []byte {
	lines := rapid.IntRange(0, 4).Draw(t, "lines")
	field := []byte{}
	for i := 0; i < lines; i++ {
		field = append(field, rapid.StringMatching(`([a-z0-9 ][a-z0-9 <>|]{0,8})?`).Draw(t, "line")+"\n"...)
	}
	return field
}

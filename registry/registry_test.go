package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func testConfig(source string) Config {
	return Config{
		Log:    log.NewLogger(log.DiscardHandler()),
		Source: source,
	}
}

func TestRegistryPairedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.in":      "1\n",
		"a.out":     "1\n",
		"b.in":      "2\n",
		"b.out":     "4\n",
		"orphan.in": "3\n",
		"notes.txt": "ignored",
	})

	t.Run("directory", func(t *testing.T) {
		r, err := NewRegistry(testConfig(tmpDir))
		require.NoError(t, err)
		assert.Equal(t, SourcePaired, r.Kind())
		assert.Equal(t, []types.TestCase{
			types.NewTestCase("a", []byte("1\n"), []byte("1\n")),
			types.NewTestCase("b", []byte("2\n"), []byte("4\n")),
		}, r.GetTestCases())
	})

	t.Run("glob", func(t *testing.T) {
		r, err := NewRegistry(testConfig(filepath.Join(tmpDir, "b*")))
		require.NoError(t, err)
		require.Len(t, r.GetTestCases(), 1)
		assert.Equal(t, "b", r.GetTestCases()[0].Name)
	})

	t.Run("glob without matches", func(t *testing.T) {
		r, err := NewRegistry(testConfig(filepath.Join(tmpDir, "zzz*.in")))
		require.NoError(t, err)
		assert.Empty(t, r.GetTestCases())
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := NewRegistry(testConfig(filepath.Join(tmpDir, "[a-")))
		require.ErrorIs(t, err, ErrBadPattern)
	})
}

func TestRegistryDocument(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"cases.txt": "| square\n< 5\n> 25\n| silent\n",
		"bad.txt":   "| square\n<< 5\n",
	})

	r, err := NewRegistry(testConfig(filepath.Join(tmpDir, "cases.txt")))
	require.NoError(t, err)
	assert.Equal(t, SourceDocument, r.Kind())
	assert.Equal(t, []types.TestCase{
		types.NewTestCase("square", []byte("5\n"), []byte("25\n")),
		{Name: "silent"},
	}, r.GetTestCases())

	_, err = NewRegistry(testConfig(filepath.Join(tmpDir, "bad.txt")))
	require.Error(t, err)
}

func TestRegistryYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"catalog.yaml": `
tests:
  - name: square
    input: "5\n"
    output: "25\n"
  - name: empty-input
    input: ""
  - output: "x\n"
`,
	})

	r, err := NewRegistry(testConfig(filepath.Join(tmpDir, "catalog.yaml")))
	require.NoError(t, err)
	assert.Equal(t, SourceYAML, r.Kind())

	cases := r.GetTestCases()
	require.Len(t, cases, 3)
	assert.Equal(t, types.NewTestCase("square", []byte("5\n"), []byte("25\n")), cases[0])

	assert.True(t, cases[1].HasInput)
	assert.Empty(t, cases[1].Input)
	assert.False(t, cases[1].HasOutput)

	assert.Equal(t, "test-2", cases[2].Name)
	assert.False(t, cases[2].HasInput)
	assert.Equal(t, []byte("x\n"), cases[2].Output)
}

func TestRegistryErrors(t *testing.T) {
	_, err := NewRegistry(Config{})
	require.Error(t, err)

	_, err = NewRegistry(testConfig(filepath.Join(t.TempDir(), "nonexistent")))
	require.Error(t, err)
}

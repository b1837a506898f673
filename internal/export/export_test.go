package export

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
)

func sampleResults() map[string][]index.SearchResult {
	return map[string][]index.SearchResult{
		"program": {
			{Location: "f2", Count: 1, Score: 1},
			{Location: "f1", Count: 1, Score: 0.5},
		},
		"hello": {},
	}
}

func TestEncodeResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResults(&buf, sampleResults()))
	want := `{
  "hello": [],
  "program": [
    {
      "count": 1,
      "score": 1.00000000,
      "where": "f2"
    },
    {
      "count": 1,
      "score": 0.50000000,
      "where": "f1"
    }
  ]
}
`
	assert.Equal(t, want, buf.String())
}

func TestEncodeIndexAndCounts(t *testing.T) {
	idx := index.New()
	idx.Add("program", "b.txt", 1)
	idx.Add("program", "a.txt", 3)
	idx.Add("run", "a.txt", 2)

	var buf bytes.Buffer
	require.NoError(t, EncodeIndex(&buf, idx.Snapshot()))
	assert.Equal(t, `{
  "program": {
    "a.txt": [
      3
    ],
    "b.txt": [
      1
    ]
  },
  "run": {
    "a.txt": [
      2
    ]
  }
}
`, buf.String())

	buf.Reset()
	require.NoError(t, EncodeCounts(&buf, idx.Counts()))
	assert.Equal(t, "{\n  \"a.txt\": 3,\n  \"b.txt\": 1\n}\n", buf.String())
}

func TestEncodeKeepsURLsReadable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCounts(&buf, map[string]int{"http://x.test/?a=1&b=<2>": 4}))
	assert.Contains(t, buf.String(), `"http://x.test/?a=1&b=<2>": 4`)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	results := filepath.Join(dir, "results.json")
	counts := filepath.Join(dir, "counts.json")

	require.NoError(t, WriteResults(results, sampleResults()))
	require.NoError(t, WriteCounts(counts, map[string]int{}))

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"score": 0.50000000`)

	data, err = os.ReadFile(counts)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	// overwriting replaces the whole file
	require.NoError(t, WriteResults(results, map[string][]index.SearchResult{}))
	data, err = os.ReadFile(results)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"counts.json", "results.json"}, names, "no lock or temp files are left behind")
}

func TestLockPathIsOutsideOutputDir(t *testing.T) {
	dir := t.TempDir()
	counts := filepath.Join(dir, "counts.json")
	lock := lockPath(counts)
	assert.Equal(t, os.TempDir(), filepath.Dir(lock))
	assert.Equal(t, lock, lockPath(counts))
	assert.NotEqual(t, lock, lockPath(filepath.Join(dir, "index.json")))
}

func TestWriteFileUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteCounts(filepath.Join(blocker, "counts.json"), map[string]int{"a": 1})
	assert.ErrorIs(t, err, apperrors.ErrUnreadable)
}

func TestRows(t *testing.T) {
	assert.Equal(t, []countRow{{"a", 2}, {"b", 1}}, countRows(map[string]int{"b": 1, "a": 2}))

	rows := resultRows(sampleResults())
	require.Len(t, rows, 2)
	assert.Equal(t, "program", rows[0].query)
	assert.Equal(t, 1, rows[0].rank)
	assert.Equal(t, "f2", rows[0].Location)
	assert.Equal(t, 2, rows[1].rank)
}

type failingTx struct{ err error }

func (f failingTx) InTx(context.Context, func(*sql.Tx) error) error { return f.err }

func TestPostgresExporterWrapsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	e := NewPostgresExporter(failingTx{err: boom})
	err := e.Export(context.Background(), "run-1", map[string]int{"a": 1}, sampleResults())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "run-1")
}

// Package export writes the word counts, the inverted index and the query
// results as pretty-printed JSON files, and optionally persists a run to
// PostgreSQL.
package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/wordindex/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
)

// Score renders a ranking score with eight decimal places.
type Score float64

func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', 8, 64)), nil
}

// Result is the exported form of one ranked search result.
type Result struct {
	Count int    `json:"count"`
	Score Score  `json:"score"`
	Where string `json:"where"`
}

func toResults(rs []index.SearchResult) []Result {
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = Result{Count: r.Count, Score: Score(r.Score), Where: r.Location}
	}
	return out
}

// EncodeCounts writes the location to word-count map with sorted keys.
func EncodeCounts(w io.Writer, counts map[string]int) error {
	return encode(w, counts)
}

// EncodeIndex writes the nested word to location to positions map.
func EncodeIndex(w io.Writer, snap index.Snapshot) error {
	return encode(w, snap)
}

// EncodeResults writes every query key with its ranked results in order.
func EncodeResults(w io.Writer, results map[string][]index.SearchResult) error {
	out := make(map[string][]Result, len(results))
	for key, rs := range results {
		out[key] = toResults(rs)
	}
	return encode(w, out)
}

func WriteCounts(path string, counts map[string]int) error {
	return writeFile(path, func(w io.Writer) error { return EncodeCounts(w, counts) })
}

func WriteIndex(path string, snap index.Snapshot) error {
	return writeFile(path, func(w io.Writer) error { return EncodeIndex(w, snap) })
}

func WriteResults(path string, results map[string][]index.SearchResult) error {
	return writeFile(path, func(w io.Writer) error { return EncodeResults(w, results) })
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeFile renders into memory, then replaces path under an advisory lock
// so concurrent runs never interleave their output. The lock file lives in
// the temp directory, keeping the output directory clean.
func writeFile(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w: %w", dir, apperrors.ErrUnreadable, err)
	}

	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w: %w", path, apperrors.ErrUnreadable, err)
	}
	return nil
}

// lockPath names the lock guarding path after its absolute form.
func lockPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(path))
	return filepath.Join(os.TempDir(), "wordindex-"+hex.EncodeToString(sum[:8])+".lock")
}

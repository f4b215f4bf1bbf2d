package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/averol/gohls/internal/domain"
)

const (
	segmentPattern = "segment_%05d.ts"
	concatFileName = "concat.txt"
)

// Store maps stream identities to on-disk cache directories under one root.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// KeyFor derives the cache directory name from the manifest URL: the md5
// digest truncated to 16 lowercase hex characters. Re-running on the same
// URL always lands in the same directory.
func KeyFor(manifestURL string) string {
	sum := md5.Sum([]byte(manifestURL))
	return hex.EncodeToString(sum[:])[:16]
}

// Entry opens (creating if absent) the cache directory for a manifest URL.
func (s *Store) Entry(manifestURL string) (*Entry, error) {
	dir := filepath.Join(s.root, KeyFor(manifestURL))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &domain.CacheIOError{Op: "create", Path: dir, Err: err}
	}
	return &Entry{dir: dir}, nil
}

// Entry is one stream's segment cache. A segment file that exists with
// size > 0 is complete and is never fetched again, no matter which run
// wrote it. Absent or zero-size means pending.
type Entry struct {
	dir string
}

func (e *Entry) Dir() string { return e.dir }

func (e *Entry) SegmentPath(index int) string {
	return filepath.Join(e.dir, fmt.Sprintf(segmentPattern, index))
}

// Has reports whether a segment is complete.
func (e *Entry) Has(index int) bool {
	info, err := os.Stat(e.SegmentPath(index))
	return err == nil && info.Size() > 0
}

// Scan enumerates the complete segments among indices [0, total) and their
// combined size on disk.
func (e *Entry) Scan(total int) (cached map[int]struct{}, bytes int64) {
	cached = make(map[int]struct{})
	for idx := 0; idx < total; idx++ {
		info, err := os.Stat(e.SegmentPath(idx))
		if err != nil || info.Size() == 0 {
			continue
		}
		cached[idx] = struct{}{}
		bytes += info.Size()
	}
	return cached, bytes
}

// Write persists a segment. The body lands in a temp file first and is
// renamed into place, so a concurrent Scan never takes a half-written file
// for complete.
func (e *Entry) Write(index int, data []byte) error {
	final := e.SegmentPath(index)
	tmp, err := os.CreateTemp(e.dir, filepath.Base(final)+".tmp*")
	if err != nil {
		return &domain.CacheIOError{Op: "create", Path: final, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &domain.CacheIOError{Op: "write", Path: final, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &domain.CacheIOError{Op: "close", Path: final, Err: err}
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return &domain.CacheIOError{Op: "rename", Path: final, Err: err}
	}
	return nil
}

// ConcatList writes the muxer's input list: one line per segment in
// ascending index order, referencing absolute cache paths. The order is
// fixed by index, never by completion order, so the merged output is
// deterministic for a given segment set.
func (e *Entry) ConcatList(total int) (string, error) {
	listPath := filepath.Join(e.dir, concatFileName)
	f, err := os.Create(listPath)
	if err != nil {
		return "", &domain.CacheIOError{Op: "create", Path: listPath, Err: err}
	}
	for idx := 0; idx < total; idx++ {
		abs, err := filepath.Abs(e.SegmentPath(idx))
		if err != nil {
			f.Close()
			return "", &domain.CacheIOError{Op: "resolve", Path: e.SegmentPath(idx), Err: err}
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			f.Close()
			return "", &domain.CacheIOError{Op: "write", Path: listPath, Err: err}
		}
	}
	if err := f.Close(); err != nil {
		return "", &domain.CacheIOError{Op: "close", Path: listPath, Err: err}
	}
	return listPath, nil
}

// Purge deletes the whole cache directory. Called only after a verified
// successful merge.
func (e *Entry) Purge() error {
	return os.RemoveAll(e.dir)
}

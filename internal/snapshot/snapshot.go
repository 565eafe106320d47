// Package snapshot writes event snapshots to disk and lists them for the dashboard.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

const (
	prefix     = "snapshot_"
	ext        = ".jpg"
	timeLayout = "20060102_150405.000"
)

// NoCount omits the count suffix from snapshot names.
const NoCount = -1

// Info describes one stored snapshot.
type Info struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Writer saves snapshots into a directory.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter creates the directory if needed and returns a Writer for it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Save encodes frame as JPEG under a unique name and returns its path.
func (w *Writer) Save(frame gocv.Mat, count int, at time.Time) (string, error) {
	if frame.Empty() {
		return "", errors.New("save snapshot: empty frame")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path, err := w.uniquePath(at, count)
	if err != nil {
		return "", err
	}
	if !gocv.IMWrite(path, frame) {
		return "", fmt.Errorf("save snapshot %s: write failed", path)
	}
	return path, nil
}

// SaveBytes stores already-encoded JPEG data under a unique name.
func (w *Writer) SaveBytes(data []byte, count int, at time.Time) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, err := w.uniquePath(at, count)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return path, nil
}

// uniquePath builds snapshot_YYYYMMDD_HHMMSS.mmm[_cN].jpg, adding a random suffix when
// the name is already taken. Stat failures other than a missing file are returned.
func (w *Writer) uniquePath(at time.Time, count int) (string, error) {
	base := prefix + at.Format(timeLayout)
	if count != NoCount {
		base += fmt.Sprintf("_c%d", count)
	}

	path := filepath.Join(w.dir, base+ext)
	for {
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("save snapshot: %w", err)
		}
		path = filepath.Join(w.dir, base+"_"+uuid.NewString()[:8]+ext)
	}
}

// List returns up to limit snapshots, newest first. A limit of zero or less returns all.
func (w *Writer) List(limit int) ([]Info, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSnapshotName(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}

	// Names embed the timestamp, so reverse lexical order is newest first.
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(b.Name, a.Name)
	})

	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

// IsSnapshotName reports whether name looks like a file produced by Writer.
func IsSnapshotName(name string) bool {
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) && filepath.Base(name) == name
}

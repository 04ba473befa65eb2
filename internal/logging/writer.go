package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.Writer that rotates its file once it grows past
// a size cap: vab.log becomes vab.log.1, existing rotations shift up by
// one, and the oldest is dropped.
type RotatingWriter struct {
	path string
	cap  int64
	keep int

	mu       sync.Mutex
	file     *os.File
	size     int64
	syncEach bool
}

// NewRotatingWriter opens (or creates) the log file at path. maxSizeMB
// caps the live file; maxFiles bounds how many rotations are kept. Writes
// are synced immediately so `vab logs -f` sees lines as they land.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		cap:      int64(maxSizeMB) << 20,
		keep:     maxFiles,
		syncEach: true,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.cap {
		if err := w.rotate(); err != nil {
			// A failed rotation must not lose log lines; keep appending.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err == nil && w.syncEach {
		_ = w.file.Sync()
	}
	return n, err
}

// rotate shifts each numbered rotation up by one, dropping the oldest,
// then moves the live file to .1 and reopens a fresh one.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		w.file = nil
	}

	numbered := func(n int) string { return fmt.Sprintf("%s.%d", w.path, n) }
	_ = os.Remove(numbered(w.keep))
	for n := w.keep - 1; n >= 1; n-- {
		_ = os.Rename(numbered(n), numbered(n+1))
	}
	if err := os.Rename(w.path, numbered(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log file: %w", err)
	}

	w.size = 0
	return w.open()
}

// Sync flushes buffered writes to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

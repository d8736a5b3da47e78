package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore persists modification log entries as append-only JSON lines
// in a local file. Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append writes one entry to the file.
func (fs *FileStore) Append(e Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("report: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// WriteAll appends every entry of the log to the file.
func (fs *FileStore) WriteAll(l *Log) error {
	for _, e := range l.Entries() {
		if err := fs.Append(e); err != nil {
			return err
		}
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"burstq/internal/runner"
)

// FileLog writes every completed run to its own indented JSON file,
// <dir>/load_test_YYYYMMDD_HHMMSS.json, named by the time it was written.
type FileLog struct {
	Dir string

	mu  sync.Mutex
	now func() time.Time
}

func NewFileLog(dir string) *FileLog {
	return &FileLog{Dir: dir, now: time.Now}
}

// Archive implements runner.Archiver.
func (f *FileLog) Archive(_ context.Context, res runner.RunResult) error {
	_, err := f.Write(res)
	return err
}

func (f *FileLog) Write(res runner.RunResult) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("load_test_%s.json", f.now().Format("20060102_150405"))
	path := filepath.Join(f.Dir, name)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

package compactbook

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

const backupStamp = "20060102_150405"

// BackupManager keeps a copy of a book page before it is enhanced in place
type BackupManager struct {
	now func() time.Time
}

func NewBackupManager() *BackupManager {
	return &BackupManager{
		now: time.Now,
	}
}

// CreateBackupOf saves the current content of the page at path before it is replaced by next.
//
// No backup is made when the page does not exist yet or already holds next, so rerunning
// the enhancer on a book only backs up pages it actually changes. Backups taken within the
// same second get a numeric suffix instead of overwriting each other.
//
// Returns the path to the backup file, or an empty string if no backup was created
func (bm *BackupManager) CreateBackupOf(path string, next []byte) (backupPath string, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("checking page: %w", err)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	if bytes.Equal(current, next) {
		slog.Debug("page unchanged, no backup needed", "page", path)
		return "", nil
	}

	stamp := bm.now().Format(backupStamp)
	for i := 0; ; i++ {
		backupPath = fmt.Sprintf("%s.%s.bak", path, stamp)
		if i > 0 {
			backupPath = fmt.Sprintf("%s.%s.%d.bak", path, stamp, i)
		}
		err = writeNew(backupPath, current, info.Mode().Perm())
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}

	slog.Debug("created page backup", "backup", backupPath, "page", path, "bytes", len(current))
	return backupPath, nil
}

// writeNew writes data to a file that must not exist yet
func writeNew(path string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

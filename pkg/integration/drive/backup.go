package drive

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mklimuk/notepilot/pkg/db"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

// State remembers which vault files were uploaded and when.
type State interface {
	GetDriveFile(ctx context.Context, localPath string) (*db.DriveFile, error)
	SaveDriveFile(ctx context.Context, f *db.DriveFile) error
}

// Backup performs incremental vault backup to Google Drive.
type Backup struct {
	api      DriveAPI
	state    State
	root     string
	interval time.Duration
}

// NewBackup creates a new Drive backup of the vault at root.
func NewBackup(api DriveAPI, state State, root string, interval time.Duration) *Backup {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Backup{api: api, state: state, root: root, interval: interval}
}

// Run backs the vault up immediately and then every interval until ctx is done.
func (b *Backup) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if n, err := b.Once(ctx); err != nil {
			slogx.Warn(ctx, "drive backup incomplete", slog.Int("uploaded", n), slogx.Err(err))
		} else if n > 0 {
			slogx.Info(ctx, "drive backup done", slog.Int("uploaded", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Once uploads every Markdown file that is new or changed since its last
// upload. Hidden directories such as .git are skipped. A failing file does
// not stop the walk; all failures are returned together.
func (b *Backup) Once(ctx context.Context) (int, error) {
	var (
		uploaded int
		errs     []error
	)
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != b.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		ok, err := b.backupFile(ctx, path, d)
		if err != nil {
			errs = append(errs, err)
		} else if ok {
			uploaded++
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return uploaded, errors.Join(errs...)
}

func (b *Backup) backupFile(ctx context.Context, path string, d fs.DirEntry) (bool, error) {
	info, err := d.Info()
	if err != nil {
		return false, err
	}
	modTime := info.ModTime().Truncate(time.Millisecond)

	rel, err := filepath.Rel(b.root, path)
	if err != nil {
		return false, err
	}
	rel = filepath.ToSlash(rel)

	rec, err := b.state.GetDriveFile(ctx, rel)
	if err != nil {
		return false, err
	}
	if rec != nil && !modTime.After(rec.LastSyncedAt) {
		return false, nil
	}

	var existing string
	if rec != nil {
		existing = rec.DriveFileID
	}
	// Drive names are flat, the owner directory becomes part of the name
	id, err := b.api.UploadFile(ctx, path, strings.ReplaceAll(rel, "/", "__"), existing)
	if err != nil {
		return false, err
	}
	return true, b.state.SaveDriveFile(ctx, &db.DriveFile{LocalPath: rel, DriveFileID: id, LastSyncedAt: modTime})
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DriveFile maps a mirrored vault file to its Drive backup copy.
type DriveFile struct {
	LocalPath    string
	DriveFileID  string
	LastSyncedAt time.Time
}

// GetDriveFile returns the backup record of localPath, or nil when the file
// was never uploaded.
func (r *Repository) GetDriveFile(ctx context.Context, localPath string) (*DriveFile, error) {
	var (
		f      DriveFile
		synced int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT local_path, drive_file_id, last_synced_at
		FROM drive_files
		WHERE local_path = ?`, localPath).Scan(&f.LocalPath, &f.DriveFileID, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file: %w", err)
	}
	f.LastSyncedAt = fromMillis(synced)
	return &f, nil
}

// SaveDriveFile records a successful upload.
func (r *Repository) SaveDriveFile(ctx context.Context, f *DriveFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drive_files (local_path, drive_file_id, last_synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			drive_file_id = excluded.drive_file_id,
			last_synced_at = excluded.last_synced_at`,
		f.LocalPath, f.DriveFileID, toMillis(f.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save drive file: %w", err)
	}
	return nil
}

// Package drive backs the Markdown vault up to a Google Drive folder.
package drive

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	gdrive "google.golang.org/api/drive/v3"

	googleauth "github.com/mklimuk/notepilot/pkg/integration/google"
)

// DriveAPI is the interface used by Backup for testability.
type DriveAPI interface {
	// UploadFile creates a file in the backup folder, or replaces the content
	// of existingFileID when it is set. It returns the Drive file id.
	UploadFile(ctx context.Context, localPath, fileName, existingFileID string) (string, error)
}

// Service wraps the Google Drive API.
type Service struct {
	srv      *gdrive.Service
	folderID string
	attempts uint
}

// Ensure Service implements DriveAPI.
var _ DriveAPI = (*Service)(nil)

// NewService creates a new Drive service using service account credentials.
func NewService(ctx context.Context, credentialsFile, folderID string) (*Service, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}
	opts, err := googleauth.ClientOptions(ctx, credentialsFile, gdrive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate drive client: %w", err)
	}
	srv, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Service{srv: srv, folderID: folderID, attempts: 3}, nil
}

func (s *Service) UploadFile(ctx context.Context, localPath, fileName, existingFileID string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return s.upload(ctx, localPath, fileName, existingFileID)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
}

func (s *Service) upload(ctx context.Context, localPath, fileName, existingFileID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		// a vanished file will not come back on retry
		return "", retry.Unrecoverable(fmt.Errorf("open local file: %w", err))
	}
	defer f.Close()

	if existingFileID != "" {
		updated, err := s.srv.Files.Update(existingFileID, &gdrive.File{Name: fileName}).
			Media(f).
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("update file: %w", err)
		}
		return updated.Id, nil
	}

	created, err := s.srv.Files.Create(&gdrive.File{Name: fileName, Parents: []string{s.folderID}}).
		Media(f).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	return created.Id, nil
}

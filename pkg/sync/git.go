// Package sync commits and pushes the Markdown vault with go-git.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

const remoteName = "origin"

// GitManager handles git operations
type GitManager struct {
	RepoPath string
	// SSHKeyPath is used for pushing; empty means ~/.ssh/id_rsa.
	SSHKeyPath string

	now func() time.Time
}

// NewGitManager creates a new GitManager
func NewGitManager(repoPath, sshKeyPath string) *GitManager {
	return &GitManager{RepoPath: repoPath, SSHKeyPath: sshKeyPath, now: time.Now}
}

// Init opens the repository, creating it when missing.
func (g *GitManager) Init() error {
	_, err := git.PlainOpen(g.RepoPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(g.RepoPath, 0755); err != nil {
			return err
		}
		_, err = git.PlainInit(g.RepoPath, false)
	}
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}
	return nil
}

// Sync commits all changes and pushes to origin when one is configured.
// A clean worktree is a no-op.
func (g *GitManager) Sync(ctx context.Context, message string) error {
	r, err := git.PlainOpen(g.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to add changes: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	if message == "" {
		message = fmt.Sprintf("Auto-sync: %s", g.now().Format(time.RFC3339))
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Notepilot",
			Email: "notepilot@localhost",
			When:  g.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	slogx.Debug(ctx, "vault committed", slog.String("commit", hash.String()))

	if _, err := r.Remote(remoteName); errors.Is(err, git.ErrRemoteNotFound) {
		return nil
	}

	err = r.PushContext(ctx, &git.PushOptions{RemoteName: remoteName, Auth: g.auth(ctx)})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

// auth returns SSH public keys, or nil to let the transport decide.
func (g *GitManager) auth(ctx context.Context) transport.AuthMethod {
	keyPath := g.SSHKeyPath
	if keyPath == "" {
		home, _ := os.UserHomeDir()
		keyPath = filepath.Join(home, ".ssh", "id_rsa")
	}

	publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		slogx.Warn(ctx, "could not load ssh key, pushing without explicit auth",
			slog.String("path", keyPath), slogx.Err(err))
		return nil
	}
	return publicKeys
}

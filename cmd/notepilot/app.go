package main

import (
	"context"
	"fmt"

	"github.com/mklimuk/notepilot/pkg/ai"
	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/config"
	"github.com/mklimuk/notepilot/pkg/db"
	"github.com/mklimuk/notepilot/pkg/integration/calendar"
	"github.com/mklimuk/notepilot/pkg/integration/drive"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/sync"
	"github.com/mklimuk/notepilot/pkg/transcribe"
	"github.com/mklimuk/notepilot/pkg/vault"
)

// app holds the wired components shared by all commands.
type app struct {
	db       *db.DB
	store    note.Store
	repo     *db.Repository
	mirror   *vault.Mirror
	deps     capture.Deps
	closeFns []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	database, err := db.NewDB(ctx, cfg.Database.Path, cfg.Database.RetryAttempts)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	a := &app{db: database, closeFns: []func() error{database.Close}}

	if err := database.InitSchema(); err != nil {
		a.close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	a.repo = db.NewRepository(database)
	a.store = db.NewNoteStore(database)

	if cfg.Vault.Path != "" {
		mirror, err := newMirror(cfg.Vault, a.store)
		if err != nil {
			a.close()
			return nil, err
		}
		a.mirror = mirror
		a.store = mirror
	}

	a.deps = capture.Deps{
		Store: a.store,
		Transcriber: transcribe.NewClient(transcribe.Config{
			APIKey:   cfg.STT.APIKey,
			BaseURL:  cfg.STT.BaseURL,
			Model:    cfg.STT.Model,
			MaxBytes: cfg.STT.MaxBytes,
			Timeout:  cfg.Pipeline.TranscribeTimeout,
		}),
		Timeouts: capture.Timeouts{
			Transcribe: cfg.Pipeline.TranscribeTimeout,
			Categorize: cfg.Pipeline.CategorizeTimeout,
			Calendar:   cfg.Pipeline.CalendarTimeout,
			Store:      cfg.Pipeline.StoreTimeout,
		},
		OnTransition: func(t capture.Transition) {
			slogx.Debug(ctx, "capture state changed",
				slogx.SessionID(t.SessionID), slogx.OwnerID(t.OwnerID), slogx.State(string(t.To)))
		},
	}

	if cfg.AI.APIKey != "" {
		gen, err := ai.NewGenerator(ctx, ai.GeneratorConfig{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init ai: %w", err)
		}
		a.closeFns = append(a.closeFns, gen.Close)
		a.deps.Categorizer = ai.NewCategorizer(gen)
	} else {
		slogx.Warn(ctx, "no AI api key configured, notes get default titles and tags")
	}

	// a nil CalendarAPI makes the bridge skip every hint as not configured
	var calAPI calendar.CalendarAPI
	if cfg.Calendar.CredentialsFile != "" {
		svc, err := calendar.NewService(ctx, cfg.Calendar.CredentialsFile)
		if err != nil {
			slogx.Warn(ctx, "calendar disabled", slogx.Err(err))
		} else {
			calAPI = svc
		}
	}
	a.deps.Bridge = calendar.NewBridge(calAPI, a.repo, a.repo, cfg.Calendar.DefaultCalendarID)

	return a, nil
}

func newMirror(cfg config.VaultConfig, store note.Store) (*vault.Mirror, error) {
	opts := []vault.MirrorOption{vault.WithSyncTimeout(cfg.SyncTimeout)}
	if cfg.TemplateFile != "" {
		tmpl, err := vault.LoadTemplate(cfg.TemplateFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vault.WithTemplate(tmpl))
	}
	if cfg.GitSync {
		git := sync.NewGitManager(cfg.Path, cfg.GitSSHKey)
		if err := git.Init(); err != nil {
			return nil, fmt.Errorf("init vault repo: %w", err)
		}
		opts = append(opts, vault.WithSyncer(git))
	}
	return vault.NewMirror(store, cfg.Path, opts...), nil
}

// backup returns the Drive backup of the vault, or nil when it is not configured.
func (a *app) backup(ctx context.Context, cfg config.Config) (*drive.Backup, error) {
	if cfg.Vault.Path == "" || cfg.Drive.FolderID == "" || cfg.Drive.CredentialsFile == "" {
		return nil, nil
	}
	svc, err := drive.NewService(ctx, cfg.Drive.CredentialsFile, cfg.Drive.FolderID)
	if err != nil {
		return nil, err
	}
	return drive.NewBackup(svc, a.repo, cfg.Vault.Path, cfg.Drive.Interval), nil
}

// wait drains background work of the mirror.
func (a *app) wait() {
	if a.mirror != nil {
		a.mirror.Wait()
	}
}

func (a *app) close() {
	a.wait()
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

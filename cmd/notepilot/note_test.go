package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/notepilot/pkg/config"
	"github.com/mklimuk/notepilot/pkg/note"
)

func resetEditFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		editTitle, editContent, editTags, editCategory = "", "", nil, ""
		for _, name := range []string{"title", "content", "tag", "category"} {
			noteEditCmd.Flags().Lookup(name).Changed = false
		}
	}
	reset()
	t.Cleanup(reset)
}

func TestEditPatch(t *testing.T) {
	resetEditFlags(t)

	_, err := editPatch(noteEditCmd)
	require.ErrorContains(t, err, "nothing to update")

	require.NoError(t, noteEditCmd.ParseFlags([]string{"--title", "Groceries", "--tag", "home,errand"}))
	patch, err := editPatch(noteEditCmd)
	require.NoError(t, err)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Groceries", *patch.Title)
	require.NotNil(t, patch.Tags)
	assert.Equal(t, []string{"home", "errand"}, *patch.Tags)
	assert.Nil(t, patch.Content)
	assert.Nil(t, patch.Category)
}

func TestNoteAddAndEdit(t *testing.T) {
	resetEditFlags(t)
	c := config.Config{}
	c.Database.Path = filepath.Join(t.TempDir(), "notes.db")
	c.Database.RetryAttempts = 1
	c.Pipeline.StoreTimeout = time.Second
	useConfig(t, c)
	ownerID = "local"

	ctx := context.Background()
	noteAddCmd.SetContext(ctx)
	noteEditCmd.SetContext(ctx)

	require.NoError(t, noteAddCmd.RunE(noteAddCmd, []string{"Buy", "milk"}))

	var added note.Note
	require.NoError(t, withApp(ctx, func(ctx context.Context, a *app) error {
		notes, err := a.store.List(ctx, ownerID, note.Filter{})
		require.NoError(t, err)
		require.Len(t, notes, 1)
		added = notes[0]
		return nil
	}))
	assert.Equal(t, "Buy milk", added.Content)

	require.NoError(t, noteEditCmd.ParseFlags([]string{"--title", "Groceries", "--category", note.CategoryVoiceNote}))
	require.NoError(t, noteEditCmd.RunE(noteEditCmd, []string{added.ID}))

	require.NoError(t, withApp(ctx, func(ctx context.Context, a *app) error {
		n, err := a.store.Get(ctx, ownerID, added.ID)
		require.NoError(t, err)
		assert.Equal(t, "Groceries", n.Title)
		assert.Equal(t, note.CategoryVoiceNote, n.Category.Main)
		assert.Equal(t, "Buy milk", n.Content)
		return nil
	}))

	err := noteEditCmd.RunE(noteEditCmd, []string{"missing"})
	require.Error(t, err)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/integration/chat"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/projection"
)

var (
	editTitle    string
	editContent  string
	editTags     []string
	editCategory string

	listJSON     bool
	listTag      string
	listCategory string
	listSearch   string
	listSort     string
	listOrder    string
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage the notes of the local owner",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Capture a typed note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			list, deps, err := captureList(ctx, a)
			if err != nil {
				return err
			}
			orch := capture.New(ownerID, deps)
			out := orch.SubmitText(ctx, strings.Join(args, " "))
			orch.Wait()
			fmt.Println(chat.Reply(out))
			if out.Completed() {
				printRecent(list)
			}
			return out.Err
		})
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := note.ParseSort(listSort, listOrder)
		if err != nil {
			return err
		}
		filter := note.Filter{Category: listCategory, Search: listSearch, Tag: listTag, Sort: sort}

		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			p := projection.New(ownerID, a.store, filter)
			if err := p.Refresh(ctx); err != nil {
				return err
			}
			notes := p.Notes()

			if listJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(notes)
			}
			for _, n := range notes {
				printNote(n)
			}
			return nil
		})
	},
}

var notePinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Toggle the pinned flag of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProjection(cmd.Context(), func(ctx context.Context, p *projection.Projection) error {
			n, err := p.TogglePin(ctx, args[0])
			if err != nil {
				return err
			}
			printNote(n)
			return nil
		})
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change the title, content, tags or category of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := editPatch(cmd)
		if err != nil {
			return err
		}
		return withProjection(cmd.Context(), func(ctx context.Context, p *projection.Projection) error {
			n, err := p.Edit(ctx, args[0], patch)
			if err != nil {
				return err
			}
			printNote(n)
			return nil
		})
	},
}

// editPatch builds a patch from the edit flags that were set.
func editPatch(cmd *cobra.Command) (note.Patch, error) {
	var patch note.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		patch.Title = &editTitle
	}
	if flags.Changed("content") {
		patch.Content = &editContent
	}
	if flags.Changed("tag") {
		patch.Tags = &editTags
	}
	if flags.Changed("category") {
		patch.Category = &note.Category{Main: editCategory}
	}
	if patch.Empty() {
		return note.Patch{}, errors.New("nothing to update, set --title, --content, --tag or --category")
	}
	return patch, nil
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProjection(cmd.Context(), func(ctx context.Context, p *projection.Projection) error {
			if err := p.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteEditCmd, notePinCmd, noteDeleteCmd)

	noteEditCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	noteEditCmd.Flags().StringVar(&editContent, "content", "", "New content")
	noteEditCmd.Flags().StringSliceVar(&editTags, "tag", nil, "Replace the tags, repeat or separate with commas")
	noteEditCmd.Flags().StringVar(&editCategory, "category", "", "New main category")

	noteListCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	noteListCmd.Flags().StringVar(&listTag, "tag", "", "Filter notes by tag")
	noteListCmd.Flags().StringVar(&listCategory, "category", "", "Filter notes by main category")
	noteListCmd.Flags().StringVar(&listSearch, "search", "", "Case-insensitive search in title and content")
	noteListCmd.Flags().StringVar(&listSort, "sort", "", "Sort by created_at, updated_at or title")
	noteListCmd.Flags().StringVar(&listOrder, "order", "", "Sort order: asc or desc")
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// withProjection loads the owner's notes so mutations can address them by id.
func withProjection(ctx context.Context, fn func(context.Context, *projection.Projection) error) error {
	return withApp(ctx, func(ctx context.Context, a *app) error {
		p := projection.New(ownerID, a.store, note.Filter{})
		if err := p.Refresh(ctx); err != nil {
			return err
		}
		return fn(ctx, p)
	})
}

func printNote(n note.Note) {
	pin := " "
	if n.IsPinned {
		pin = "*"
	}
	fmt.Printf("%s %s  %-40s  %s  %s\n", pin, n.ID, n.Title, n.Category.Main, strings.Join(n.Tags, ","))
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/integration/chat"
	"github.com/mklimuk/notepilot/pkg/note"
	"github.com/mklimuk/notepilot/pkg/projection"
	"github.com/mklimuk/notepilot/pkg/recorder"
	"github.com/mklimuk/notepilot/pkg/transcribe"
)

var captureMIME string

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Turn a voice recording into a note",
}

var captureFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Transcribe an existing audio file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		mimeType := captureMIME
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(path))
		}
		audio := transcribe.Audio{Data: data, MIMEType: mimeType, Filename: filepath.Base(path)}

		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			list, deps, err := captureList(ctx, a)
			if err != nil {
				return err
			}
			orch := capture.New(ownerID, deps)
			out := orch.CaptureAudio(ctx, audio)
			orch.Wait()
			fmt.Println(chat.Reply(out))
			if out.Completed() {
				printRecent(list)
			}
			return out.Err
		})
	},
}

var captureRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone until Enter is pressed, Ctrl+C cancels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recorder.New(cfg.Recorder.Command, cfg.Recorder.MIMEType)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			list, deps, err := captureList(ctx, a)
			if err != nil {
				return err
			}
			deps.Recorder = rec
			orch := capture.New(ownerID, deps)
			defer orch.Wait()

			interrupt, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := orch.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Println("Recording... press Enter to stop, Ctrl+C to cancel.")

			enter := make(chan struct{})
			go func() {
				bufio.NewReader(os.Stdin).ReadString('\n')
				close(enter)
			}()

			var out capture.Outcome
			select {
			case <-enter:
				fmt.Println("Processing...")
				out = session.Stop(ctx)
			case <-interrupt.Done():
				session.Cancel()
				<-session.Done()
				out = session.Outcome()
			}
			fmt.Println(chat.Reply(out))
			if out.Cancelled() {
				return nil
			}
			if out.Completed() {
				printRecent(list)
			}
			return out.Err
		})
	},
}

// recentNotes is how many notes printRecent shows.
const recentNotes = 5

// captureList loads the owner's note list and returns capture deps that add
// every persisted note to it.
func captureList(ctx context.Context, a *app) (*projection.Projection, capture.Deps, error) {
	list := projection.New(ownerID, a.store, note.Filter{})
	if err := list.Refresh(ctx); err != nil {
		return nil, capture.Deps{}, err
	}
	deps := a.deps
	deps.OnNote = list.Created
	return list, deps, nil
}

func printRecent(list *projection.Projection) {
	notes := list.Notes()
	if len(notes) > recentNotes {
		notes = notes[:recentNotes]
	}
	fmt.Println()
	for _, n := range notes {
		printNote(n)
	}
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureFileCmd, captureRecordCmd)
	captureFileCmd.Flags().StringVar(&captureMIME, "mime", "", "MIME type of the file, guessed from the extension when empty")
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload new and changed vault files to Google Drive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			backup, err := a.backup(ctx, cfg)
			if err != nil {
				return err
			}
			if backup == nil {
				return errors.New("backup needs VAULT_PATH, DRIVE_FOLDER_ID and DRIVE_CREDENTIALS_FILE")
			}
			n, err := backup.Once(ctx)
			fmt.Printf("Uploaded %d files\n", n)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

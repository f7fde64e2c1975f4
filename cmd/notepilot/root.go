package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mklimuk/notepilot/pkg/config"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

var (
	envFile string
	ownerID string
	verbose bool

	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notepilot",
	Short: "Turn voice memos and typed thoughts into organized notes",
	Long: `Notepilot transcribes voice captures, suggests titles, tags and calendar
events for them and keeps the resulting notes in a per-owner store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if envFile != "" {
			cfg, err = config.ParseFile(envFile)
		} else {
			cfg, err = config.Parse()
		}
		if err != nil {
			return err
		}

		level := cfg.App.LogLevel
		if verbose {
			level = "debug"
		}
		return slogx.InitGlobal(os.Stderr, level, cfg.App.Pretty)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Read configuration from this .env file")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "Owner id used by local commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

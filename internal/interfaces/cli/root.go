package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"feedqueue/internal/interfaces/config"
)

type globalOptions struct {
	envFile   string
	feedsFile string
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.envFile, o.feedsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// NewRootCommand builds the feedqueue command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "feedqueue",
		Short: "Forward new RSS/Atom entries to a queue",
		Long: `feedqueue polls RSS and Atom feeds, remembers which entries it has
already seen, and puts every new entry on a downstream queue exactly once.

Configuration comes from the environment (optionally a .env file).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default: .env if present)")
	cmd.PersistentFlags().StringVar(&opts.feedsFile, "feeds-file", "", "file with one feed URL or path per line (overrides FEEDS_FILE)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

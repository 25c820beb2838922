package cli

import (
	"github.com/spf13/cobra"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every feed once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireFeeds(); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			return a.runPass(ctx, cfg.Feeds)
		},
	}
}

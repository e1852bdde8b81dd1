package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"siteclone/internal/tui"
)

func newInitConfigCommand(env *runEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create or edit a config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := tui.Run()
			if err != nil {
				return err
			}
			if res.SaveConfig {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", res.ConfigPath)
			}
			if !res.ServeNow {
				return nil
			}
			cfg := res.Config
			cfg.ApplyEnv(env.lookupEnv)
			return env.serve(cmd.Context(), cfg)
		},
	}
}

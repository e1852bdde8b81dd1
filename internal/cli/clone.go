package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"siteclone/internal/clone"
	"siteclone/internal/config"
	"siteclone/internal/output"
)

func newCloneCommand(env *runEnv) *cobra.Command {
	var (
		pf        pipelineFlags
		outputDir string
		toStdout  bool
	)
	cmd := &cobra.Command{
		Use:   "clone <url>",
		Short: "Clone one website and write the generated HTML to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig(cmd, func(cfg *config.Config) {
				pf.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}
			ctx, logger := env.logger(cmd.Context(), cfg)

			pipeline, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			target := args[0]
			out, err := pipeline.Run(ctx, clone.Request{TargetURL: target})
			if err != nil {
				return cloneExitError(err)
			}

			if toStdout {
				_, err := fmt.Fprint(cmd.OutOrStdout(), out.ClonedHTML)
				return err
			}

			dir := outputDir
			if dir == "" {
				dir = output.HostDir(cfg.OutputDir, target)
			}
			htmlPath, metaPath, err := output.WriteClone(target, out, output.WriteOptions{OutputDir: dir})
			if err != nil {
				return fmt.Errorf("write clone: %w", err)
			}
			logger.Debug().Str("html", htmlPath).Str("meta", metaPath).Msg("Clone written")
			output.PrintSummary(cmd.OutOrStdout(), out, htmlPath)
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for index.html (default: <output_dir>/<host>)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print the generated HTML instead of writing files")
	return cmd
}

// cloneExitError reports the failure detail the API would return. Bad input
// exits 2 like a usage error; every other failure exits 1.
func cloneExitError(err error) error {
	f, ok := clone.AsFailure(err)
	if !ok {
		return err
	}
	code := 1
	if f.Stage == clone.StageInput {
		code = 2
	}
	return ExitError{Code: code, Err: errors.New(f.Detail)}
}

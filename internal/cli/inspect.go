package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"siteclone/internal/clone"
	"siteclone/internal/config"
	"siteclone/internal/fetch"
	"siteclone/internal/inspect"
	"siteclone/internal/prompt"
)

// newInspectCommand fetches a page and reports what the model would be sent,
// without calling a provider.
func newInspectCommand(env *runEnv) *cobra.Command {
	var (
		pf         pipelineFlags
		selector   string
		showPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Fetch a page and show its style summary and prompt budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig(cmd, func(cfg *config.Config) {
				pf.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}
			ctx, _ := env.logger(cmd.Context(), cfg)

			target, err := clone.ValidateURL(args[0])
			if err != nil {
				return ExitError{Code: 2, Err: fmt.Errorf("invalid target URL: %w", err)}
			}
			fopts, err := cfg.FetchOptions()
			if err != nil {
				return err
			}
			acquirer, err := fetch.New(fopts)
			if err != nil {
				return err
			}
			popts, err := cfg.PromptOptions()
			if err != nil {
				return err
			}
			builder, err := prompt.NewBuilder(popts)
			if err != nil {
				return err
			}

			content, err := acquirer.Acquire(ctx, target)
			if err != nil {
				return err
			}
			report, err := inspect.Analyze(content.HTML, selector)
			if err != nil {
				return err
			}
			p := builder.Build(content.HTML, target)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Fetched %s (%s fetch)\n", target, content.Strategy)
			inspect.Print(w, report)
			fmt.Fprintf(w, "\nPrompt: %d chars, budget %d", len([]rune(p.Text)), builder.MaxChars())
			if p.Truncated {
				fmt.Fprintf(w, ", page truncated from %d chars", p.OriginalChars)
			}
			fmt.Fprintln(w)
			if showPrompt {
				fmt.Fprintf(w, "\n%s\n", p.Text)
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&selector, "check-selector", "", "describe elements matching this CSS selector")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the full prompt text")
	return cmd
}

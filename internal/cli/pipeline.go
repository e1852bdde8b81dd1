package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"siteclone/internal/clone"
	"siteclone/internal/config"
	"siteclone/internal/fetch"
	"siteclone/internal/generate"
	"siteclone/internal/prompt"
)

// pipelineFlags are shared by serve and clone. Values only override the
// config when the flag was given on the command line.
type pipelineFlags struct {
	provider  string
	model     string
	strategy  string
	timeout   int
	headless  bool
	maxChars  int
	template  string
	userAgent string
}

func (p *pipelineFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.provider, "provider", "", "LLM provider: gemini|openai|anthropic")
	f.StringVar(&p.model, "model", "", "model id (default depends on provider)")
	f.StringVar(&p.strategy, "strategy", "", "fetch strategy: direct|rendered")
	f.IntVar(&p.timeout, "timeout", 0, "fetch timeout in seconds")
	f.BoolVar(&p.headless, "headless", true, "run the browser headless (rendered)")
	f.IntVar(&p.maxChars, "max-chars", 0, "prompt budget in characters")
	f.StringVar(&p.template, "template", "", "prompt template file, must contain {{HTML}}")
	f.StringVar(&p.userAgent, "user-agent", "", "User-Agent for fetching the original page")
}

func (p *pipelineFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Provider = p.provider
	}
	if f.Changed("model") {
		cfg.Model = p.model
	}
	if f.Changed("strategy") {
		cfg.Strategy = p.strategy
	}
	if f.Changed("timeout") {
		cfg.TimeoutSeconds = p.timeout
		cfg.RenderTimeoutSeconds = p.timeout
	}
	if f.Changed("headless") {
		headless := p.headless
		cfg.Headless = &headless
	}
	if f.Changed("max-chars") {
		cfg.Prompt.MaxChars = p.maxChars
	}
	if f.Changed("template") {
		cfg.Prompt.TemplateFile = p.template
	}
	if f.Changed("user-agent") {
		cfg.UserAgent = p.userAgent
	}
}

// buildPipeline assembles the acquire, prompt and generate stages from cfg.
// A missing API key is only a warning: the pipeline still runs and each
// request fails at generation.
func buildPipeline(ctx context.Context, cfg config.Config) (*clone.Pipeline, error) {
	log := zerolog.Ctx(ctx)

	fopts, err := cfg.FetchOptions()
	if err != nil {
		return nil, err
	}
	acquirer, err := fetch.New(fopts)
	if err != nil {
		return nil, err
	}

	popts, err := cfg.PromptOptions()
	if err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}
	builder, err := prompt.NewBuilder(popts)
	if err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}

	gopts, err := cfg.GenerateOptions()
	if err != nil {
		return nil, err
	}
	generator := generate.New(ctx, gopts)
	if !generator.Configured() {
		log.Warn().Str("provider", string(gopts.Provider)).Msg("LLM API key not found in environment; clone requests will fail")
	}

	log.Info().
		Str("strategy", string(acquirer.Strategy())).
		Str("provider", string(gopts.Provider)).
		Str("model", generator.Model()).
		Int("max_chars", builder.MaxChars()).
		Msg("Pipeline ready")
	return clone.New(acquirer, builder, generator), nil
}

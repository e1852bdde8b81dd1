// Package generate asks an LLM provider for the cloned document and
// normalizes whatever formatting the model wraps around it.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"siteclone/internal/prompt"
)

const (
	DefaultTimeout         = 3 * time.Minute
	DefaultMaxOutputTokens = 8192
)

type Cause string

const (
	CauseUnconfigured   Cause = "unconfigured"
	CauseProvider       Cause = "provider_error"
	CauseInitialization Cause = "initialization_error"
)

// Error is a classified generation failure.
type Error struct {
	Cause Cause
	Err   error
}

func (e *Error) Error() string {
	switch e.Cause {
	case CauseUnconfigured:
		return "generate: LLM API key not configured or missing"
	case CauseInitialization:
		return fmt.Sprintf("generate: failed to initialize LLM model: %v", e.Err)
	}
	return fmt.Sprintf("generate: failed to generate HTML with LLM: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CauseOf returns the cause of a generation error, defaulting to provider_error.
func CauseOf(err error) Cause {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Cause
	}
	return CauseProvider
}

type Options struct {
	Provider        ProviderName
	APIKey          string
	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// Result is the normalized provider output. Empty reports a blank document,
// which is still a successful generation.
type Result struct {
	HTML      string
	RawLength int
	Empty     bool
}

type Generator struct {
	provider Provider
	initErr  error
	opts     Options
}

// New builds the provider adapter named by opts.Provider. A missing API key is
// not an error here; every Generate call then fails with CauseUnconfigured.
func New(ctx context.Context, opts Options) *Generator {
	opts = withDefaults(opts)
	g := &Generator{opts: opts}
	if opts.APIKey == "" {
		return g
	}
	g.provider, g.initErr = newProvider(ctx, opts)
	return g
}

// NewWithProvider uses p as the transport; it is how tests substitute a fake.
func NewWithProvider(p Provider, opts Options) *Generator {
	return &Generator{provider: p, opts: withDefaults(opts)}
}

func withDefaults(opts Options) Options {
	if opts.Provider == "" {
		opts.Provider = ProviderGemini
	}
	if opts.Model == "" {
		opts.Model = DefaultModel(opts.Provider)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return opts
}

func (g *Generator) Configured() bool { return g.opts.APIKey != "" }

func (g *Generator) Model() string { return g.opts.Model }

func (g *Generator) Generate(ctx context.Context, p prompt.Prompt) (res Result, err error) {
	log := zerolog.Ctx(ctx).With().
		Str("provider", string(g.opts.Provider)).
		Str("model", g.opts.Model).
		Logger()

	if !g.Configured() {
		return Result{}, &Error{Cause: CauseUnconfigured}
	}
	if g.initErr != nil {
		log.Error().Err(g.initErr).Msg("LLM client unavailable")
		return Result{}, &Error{Cause: CauseInitialization, Err: g.initErr}
	}
	if g.provider == nil {
		return Result{}, &Error{Cause: CauseInitialization, Err: errors.New("no provider")}
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, &Error{Cause: CauseProvider, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	log.Info().Int("prompt_chars", utf8.RuneCountInString(p.Text)).Bool("truncated", p.Truncated).Msg("Sending prompt")
	raw, err := g.provider.Generate(ctx, Request{
		Model:           g.opts.Model,
		Prompt:          p.Text,
		MaxOutputTokens: g.opts.MaxOutputTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("Generation failed")
		return Result{}, &Error{Cause: CauseProvider, Err: err}
	}

	html := Normalize(raw)
	log.Info().Int("raw_length", len(raw)).Int("clean_length", len(html)).Msg("Received generation")
	if html == "" {
		log.Warn().Msg("LLM returned an empty response after cleanup")
	}
	return Result{HTML: html, RawLength: len(raw), Empty: html == ""}, nil
}

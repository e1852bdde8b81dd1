// Package clone runs the acquire, prompt and generate stages for one target
// URL and reports the outcome or a single classified Failure.
package clone

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"siteclone/internal/fetch"
	"siteclone/internal/generate"
	"siteclone/internal/prompt"
)

type Request struct {
	TargetURL string
}

type Outcome struct {
	ClonedHTML string
	Message    string
	Strategy   fetch.Strategy
	Truncated  bool
	// Empty reports that the provider answered with nothing usable. The run
	// still counts as a success.
	Empty bool
}

// Generator is the generation stage; *generate.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, p prompt.Prompt) (generate.Result, error)
}

type Pipeline struct {
	acquirer  fetch.Acquirer
	builder   *prompt.Builder
	generator Generator
	tracer    trace.Tracer
	meter     metric.Meter
	runs      metric.Int64Counter
	duration  metric.Float64Histogram
}

type Option func(*Pipeline)

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func WithMeter(m metric.Meter) Option {
	return func(p *Pipeline) { p.meter = m }
}

func New(acquirer fetch.Acquirer, builder *prompt.Builder, generator Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		acquirer:  acquirer,
		builder:   builder,
		generator: generator,
		tracer:    otel.Tracer("siteclone/internal/clone"),
		meter:     otel.Meter("siteclone/internal/clone"),
	}
	for _, opt := range opts {
		opt(p)
	}
	// Failed instrument creation still yields usable no-op instruments.
	p.runs, _ = p.meter.Int64Counter("siteclone.clone.runs",
		metric.WithDescription("Clone requests by outcome."))
	p.duration, _ = p.meter.Float64Histogram("siteclone.clone.duration",
		metric.WithDescription("Clone request latency."),
		metric.WithUnit("s"))
	return p
}

// Run never calls the generator when acquisition fails. Every returned error
// is a *Failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (out Outcome, err error) {
	ctx, span := p.tracer.Start(ctx, "Run")
	defer span.End()
	start := time.Now()
	defer func() {
		attrs := []attribute.KeyValue{attribute.String("outcome", "success")}
		if f, ok := AsFailure(err); ok {
			attrs = []attribute.KeyValue{
				attribute.String("outcome", string(f.Stage)),
				attribute.String("cause", f.Cause),
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		set := metric.WithAttributes(attrs...)
		p.runs.Add(ctx, 1, set)
		p.duration.Record(ctx, time.Since(start).Seconds(), set)
	}()

	target, verr := ValidateURL(req.TargetURL)
	if verr != nil {
		return Outcome{}, invalidInput(verr)
	}
	span.SetAttributes(attribute.String("target_url", target))

	log := zerolog.Ctx(ctx).With().Str("url", target).Logger()
	ctx = log.WithContext(ctx)
	log.Info().Str("strategy", string(p.acquirer.Strategy())).Msg("Received clone request")

	content, err := p.acquire(ctx, target)
	if err != nil {
		return Outcome{}, acquisitionFailure(err)
	}

	built := p.buildPrompt(ctx, content.HTML, target)

	res, err := p.generate(ctx, built)
	if err != nil {
		return Outcome{}, generationFailure(err)
	}

	strategy := content.Strategy
	if strategy == "" {
		strategy = p.acquirer.Strategy()
	}
	log.Info().Int("clone_length", len(res.HTML)).Bool("empty", res.Empty).Msg("Clone complete")
	return Outcome{
		ClonedHTML: res.HTML,
		Message:    fmt.Sprintf("Successfully generated aesthetic clone for %s using LLM (%s fetch).", target, strategy),
		Strategy:   strategy,
		Truncated:  built.Truncated,
		Empty:      res.Empty,
	}, nil
}

func (p *Pipeline) acquire(ctx context.Context, target string) (fetch.Content, error) {
	ctx, span := p.tracer.Start(ctx, "Acquire")
	defer span.End()
	span.SetAttributes(attribute.String("strategy", string(p.acquirer.Strategy())))

	content, err := p.acquirer.Acquire(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zerolog.Ctx(ctx).Error().Err(err).Str("cause", string(fetch.CauseOf(err))).Msg("Acquisition failed")
		return fetch.Content{}, err
	}
	span.SetAttributes(attribute.Int("html_length", len(content.HTML)))
	zerolog.Ctx(ctx).Info().Int("html_length", len(content.HTML)).Msg("Acquired page")
	return content, nil
}

func (p *Pipeline) buildPrompt(ctx context.Context, html, target string) prompt.Prompt {
	_, span := p.tracer.Start(ctx, "BuildPrompt")
	defer span.End()

	built := p.builder.Build(html, target)
	span.SetAttributes(
		attribute.Int("original_chars", built.OriginalChars),
		attribute.Bool("truncated", built.Truncated),
	)
	if built.Truncated {
		zerolog.Ctx(ctx).Warn().
			Int("original_chars", built.OriginalChars).
			Int("max_chars", p.builder.MaxChars()).
			Msg("Page exceeds prompt budget, truncating")
	}
	return built
}

func (p *Pipeline) generate(ctx context.Context, built prompt.Prompt) (generate.Result, error) {
	ctx, span := p.tracer.Start(ctx, "Generate")
	defer span.End()

	res, err := p.generator.Generate(ctx, built)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return generate.Result{}, err
	}
	span.SetAttributes(attribute.Int("clone_length", len(res.HTML)), attribute.Bool("empty", res.Empty))
	return res, nil
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("target_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return u.String(), nil
}

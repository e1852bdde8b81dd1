package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyRendered Strategy = "rendered"
)

const (
	DefaultDirectTimeout = 30 * time.Second
	DefaultRenderTimeout = 60 * time.Second
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAccept        = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"
	defaultAcceptLang    = "en-US,en;q=0.9"
)

// Content is the markup retrieved for one URL.
type Content struct {
	HTML     string
	Strategy Strategy
}

// Acquirer produces HTML for a URL. Implementations return *Error on failure.
type Acquirer interface {
	Acquire(ctx context.Context, url string) (Content, error)
	Strategy() Strategy
}

type Options struct {
	Strategy        Strategy
	DirectTimeout   time.Duration
	RenderTimeout   time.Duration
	UserAgent       string
	Headless        bool
	InstallBrowsers bool
}

// New returns the acquirer selected by opts.Strategy. Exactly one strategy is
// active; there is no fallback between them.
func New(opts Options) (Acquirer, error) {
	switch opts.Strategy {
	case StrategyDirect, "":
		return NewDirect(DirectOptions{
			Timeout:   opts.DirectTimeout,
			UserAgent: opts.UserAgent,
		}), nil
	case StrategyRendered:
		return NewRendered(RenderedOptions{
			Timeout:         opts.RenderTimeout,
			UserAgent:       opts.UserAgent,
			Headless:        opts.Headless,
			InstallBrowsers: opts.InstallBrowsers,
		}), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", opts.Strategy)
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyDirect, "static":
		return StrategyDirect, nil
	case StrategyRendered, "dynamic":
		return StrategyRendered, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want direct|rendered)", s)
	}
}

func browserHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          defaultAccept,
		"Accept-Language": defaultAcceptLang,
	}
}

func isBlank(html string) bool {
	return strings.TrimSpace(html) == ""
}

// contextCause classifies a context error, or returns "" when ctx is still live.
func contextCause(ctx context.Context, deadline Cause) Cause {
	switch {
	case ctx.Err() == nil:
		return ""
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return deadline
	default:
		return CauseCanceled
	}
}

package fetch

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const maxRedirects = 10

type DirectOptions struct {
	Timeout   time.Duration
	UserAgent string
	// Tracer records one client span per request. Defaults to the global provider.
	Tracer trace.Tracer
}

// Direct fetches the raw response body with a single GET.
type Direct struct {
	client  *resty.Client
	timeout time.Duration
}

func NewDirect(opts DirectOptions) *Direct {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDirectTimeout
	}
	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetHeaders(browserHeaders(opts.UserAgent))
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("siteclone/internal/fetch")
	}
	instrumentResty(client, opts.Tracer)
	return &Direct{client: client, timeout: opts.Timeout}
}

func (d *Direct) Strategy() Strategy { return StrategyDirect }

func (d *Direct) Acquire(ctx context.Context, url string) (Content, error) {
	log := zerolog.Ctx(ctx)
	log.Debug().Str("url", url).Dur("timeout", d.timeout).Msg("Direct fetch")

	res, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		ferr := classifyDirect(ctx, url, err)
		log.Warn().Err(err).Str("cause", string(ferr.Cause)).Msg("Direct fetch failed")
		return Content{}, ferr
	}
	if res.StatusCode() >= 400 {
		log.Warn().Int("status", res.StatusCode()).Str("url", url).Msg("Direct fetch got error status")
		return Content{}, &Error{Cause: CauseHTTPStatus, StatusCode: res.StatusCode(), URL: url}
	}

	html := string(res.Body())
	if isBlank(html) {
		return Content{}, newError(CauseEmptyContent, url, nil)
	}
	log.Info().Str("url", url).Int("bytes", len(html)).Msg("Fetched HTML")
	return Content{HTML: html, Strategy: StrategyDirect}, nil
}

func classifyDirect(ctx context.Context, url string, err error) *Error {
	if cause := contextCause(ctx, CauseTimeout); cause != "" {
		return newError(cause, url, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CauseTimeout, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(CauseTimeout, url, err)
	}
	return newError(CauseNetwork, url, err)
}

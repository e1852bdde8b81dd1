package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// launchGrace bounds driver start and browser launch on top of the navigation timeout.
const launchGrace = 30 * time.Second

type browserProvider interface {
	Install() error
	Run() (browserRunner, error)
}

type browserRunner interface {
	ChromiumLaunch(headless bool) (browserHandle, error)
	Stop() error
}

type browserHandle interface {
	NewPage(userAgent string) (browserPage, error)
	Close() error
}

type browserPage interface {
	SetExtraHTTPHeaders(headers map[string]string) error
	Goto(url string, timeout time.Duration) error
	Content() (string, error)
	Close() error
}

type playwrightProvider struct{}

func (playwrightProvider) Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (playwrightProvider) Run() (browserRunner, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	return &playwrightRunner{pw: pw}, nil
}

type playwrightRunner struct {
	pw *playwright.Playwright
}

func (r *playwrightRunner) ChromiumLaunch(headless bool) (browserHandle, error) {
	browser, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return nil, err
	}
	return &playwrightBrowser{browser: browser}, nil
}

func (r *playwrightRunner) Stop() error {
	return r.pw.Stop()
}

type playwrightBrowser struct {
	browser playwright.Browser
}

func (b *playwrightBrowser) NewPage(userAgent string) (browserPage, error) {
	page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		return nil, err
	}
	return &playwrightPage{page: page}, nil
}

func (b *playwrightBrowser) Close() error {
	return b.browser.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) SetExtraHTTPHeaders(headers map[string]string) error {
	return p.page.SetExtraHTTPHeaders(headers)
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	return err
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// scopedBrowser closes the underlying browser at most once. Close may be
// triggered by context cancellation and by the deferred release concurrently.
type scopedBrowser struct {
	browserHandle
	once sync.Once
	err  error
}

func (b *scopedBrowser) release() {
	b.once.Do(func() {
		b.err = b.browserHandle.Close()
	})
}

type RenderedOptions struct {
	Timeout         time.Duration
	UserAgent       string
	Headless        bool
	InstallBrowsers bool
}

// Rendered navigates a fresh headless chromium per call and returns the
// post-script document. The browser never outlives Acquire.
type Rendered struct {
	opts     RenderedOptions
	provider browserProvider
}

func NewRendered(opts RenderedOptions) *Rendered {
	return newRenderedWith(opts, playwrightProvider{})
}

func newRenderedWith(opts RenderedOptions, provider browserProvider) *Rendered {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Rendered{opts: opts, provider: provider}
}

func (r *Rendered) Strategy() Strategy { return StrategyRendered }

func (r *Rendered) Acquire(ctx context.Context, url string) (Content, error) {
	log := zerolog.Ctx(ctx)
	log.Debug().Str("url", url).Dur("timeout", r.opts.Timeout).Msg("Rendered fetch")

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout+launchGrace)
	defer cancel()

	html, err := r.render(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("cause", string(CauseOf(err))).Msg("Rendered fetch failed")
		return Content{}, err
	}
	log.Info().Str("url", url).Int("bytes", len(html)).Msg("Rendered HTML")
	return Content{HTML: html, Strategy: StrategyRendered}, nil
}

func (r *Rendered) render(ctx context.Context, url string) (html string, err error) {
	defer func() {
		if p := recover(); p != nil {
			html, err = "", newError(CauseNetwork, url, fmt.Errorf("panic during render: %v", p))
		}
	}()

	if cause := contextCause(ctx, CauseRenderTimeout); cause != "" {
		return "", newError(cause, url, ctx.Err())
	}

	if r.opts.InstallBrowsers {
		if err := r.provider.Install(); err != nil {
			return "", newError(CauseLaunchFailure, url, fmt.Errorf("install playwright: %w", err))
		}
	}

	runner, err := r.provider.Run()
	if err != nil {
		return "", newError(CauseLaunchFailure, url, fmt.Errorf("start playwright: %w", err))
	}
	defer func() {
		_ = runner.Stop()
	}()

	launched, err := runner.ChromiumLaunch(r.opts.Headless)
	if err != nil {
		return "", newError(CauseLaunchFailure, url, fmt.Errorf("launch chromium: %w", err))
	}
	browser := &scopedBrowser{browserHandle: launched}
	defer browser.release()

	// Closing the browser unblocks any in-flight page call.
	stop := context.AfterFunc(ctx, browser.release)
	defer stop()

	page, err := browser.NewPage(r.opts.UserAgent)
	if err != nil {
		if cause := contextCause(ctx, CauseRenderTimeout); cause != "" {
			return "", newError(cause, url, err)
		}
		return "", newError(CauseLaunchFailure, url, fmt.Errorf("new page: %w", err))
	}
	defer func() {
		_ = page.Close()
	}()

	headers := browserHeaders(r.opts.UserAgent)
	delete(headers, "User-Agent")
	if err := page.SetExtraHTTPHeaders(headers); err != nil {
		return "", classifyRender(ctx, url, err)
	}

	if err := page.Goto(url, r.opts.Timeout); err != nil {
		return "", classifyRender(ctx, url, err)
	}

	html, err = page.Content()
	if err != nil {
		return "", classifyRender(ctx, url, err)
	}
	if isBlank(html) {
		return "", newError(CauseEmptyContent, url, nil)
	}
	return html, nil
}

func classifyRender(ctx context.Context, url string, err error) *Error {
	if cause := contextCause(ctx, CauseRenderTimeout); cause != "" {
		return newError(cause, url, err)
	}
	if errors.Is(err, playwright.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return newError(CauseRenderTimeout, url, err)
	}
	return newError(CauseNetwork, url, err)
}

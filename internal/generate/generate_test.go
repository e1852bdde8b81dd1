package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"siteclone/internal/prompt"
)

type fakeProvider struct {
	calls   atomic.Int32
	reply   string
	err     error
	panicV  any
	lastReq Request
	check   func(ctx context.Context)
}

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.check != nil {
		f.check(ctx)
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.reply, f.err
}

func testPrompt() prompt.Prompt {
	return prompt.Prompt{Text: "clone this", OriginalChars: 10}
}

func requireCause(t *testing.T, err error, want Cause) {
	t.Helper()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, want, gerr.Cause)
}

func TestGenerate_Unconfigured(t *testing.T) {
	fp := &fakeProvider{reply: "<p>x</p>"}
	g := NewWithProvider(fp, Options{})

	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseUnconfigured)
	require.EqualError(t, err, "generate: LLM API key not configured or missing")
	require.Zero(t, fp.calls.Load())
	require.False(t, g.Configured())
}

func TestNew_WithoutKeyMakesNoClient(t *testing.T) {
	for _, name := range []ProviderName{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		g := New(context.Background(), Options{Provider: name})
		require.Nil(t, g.provider)
		_, err := g.Generate(context.Background(), testPrompt())
		requireCause(t, err, CauseUnconfigured)
	}
}

func TestGenerate_InitializationError(t *testing.T) {
	g := New(context.Background(), Options{Provider: "bogus", APIKey: "k"})

	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseInitialization)
	require.Contains(t, err.Error(), "failed to initialize LLM model")
}

func TestGenerate_ProviderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	fp := &fakeProvider{err: boom}
	g := NewWithProvider(fp, Options{APIKey: "k"})

	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseProvider)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "generate: failed to generate HTML with LLM: quota exceeded", err.Error())
	require.EqualValues(t, 1, fp.calls.Load())
}

func TestGenerate_PanicIsProviderError(t *testing.T) {
	g := NewWithProvider(&fakeProvider{panicV: "nil map"}, Options{APIKey: "k"})

	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseProvider)
	require.Contains(t, err.Error(), "nil map")
}

func TestGenerate_NormalizesFencedOutput(t *testing.T) {
	inner := "<!DOCTYPE html><html><body><h1>Clone</h1></body></html>"
	fp := &fakeProvider{reply: "```html\n" + inner + "\n```"}
	g := NewWithProvider(fp, Options{APIKey: "k", Model: "m1", MaxOutputTokens: 100})

	res, err := g.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	require.Equal(t, inner, res.HTML)
	require.False(t, res.Empty)
	require.Equal(t, len(fp.reply), res.RawLength)
	require.Equal(t, Request{Model: "m1", Prompt: "clone this", MaxOutputTokens: 100}, fp.lastReq)
}

func TestGenerate_LogsPromptLengthInRunes(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	g := NewWithProvider(&fakeProvider{reply: "<p>x</p>"}, Options{APIKey: "k"})

	_, err := g.Generate(ctx, prompt.Prompt{Text: "café ünïcode"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"prompt_chars":12`)
}

func TestGenerate_EmptyOutputIsSuccess(t *testing.T) {
	g := NewWithProvider(&fakeProvider{reply: "```html\n```"}, Options{APIKey: "k"})

	res, err := g.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	require.True(t, res.Empty)
	require.Empty(t, res.HTML)
}

func TestGenerate_AppliesTimeout(t *testing.T) {
	fp := &fakeProvider{
		err: context.DeadlineExceeded,
		check: func(ctx context.Context) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			require.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		},
	}
	g := NewWithProvider(fp, Options{APIKey: "k", Timeout: time.Second})

	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseProvider)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(Options{})
	require.Equal(t, ProviderGemini, opts.Provider)
	require.Equal(t, "gemini-2.5-flash", opts.Model)
	require.Equal(t, DefaultTimeout, opts.Timeout)
	require.Equal(t, DefaultMaxOutputTokens, opts.MaxOutputTokens)

	opts = withDefaults(Options{Provider: ProviderAnthropic})
	require.Equal(t, DefaultModel(ProviderAnthropic), opts.Model)
}

func TestParseProvider(t *testing.T) {
	tests := map[string]ProviderName{
		"gemini":    ProviderGemini,
		" Google ":  ProviderGemini,
		"OPENAI":    ProviderOpenAI,
		"anthropic": ProviderAnthropic,
		"claude":    ProviderAnthropic,
	}
	for in, want := range tests {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseProvider("mistral")
	require.Error(t, err)

	require.Equal(t, "Google Gemini", ProviderGemini.DisplayName())
	require.Equal(t, "Anthropic Claude", ProviderAnthropic.DisplayName())
}

func TestCauseOf(t *testing.T) {
	require.Equal(t, CauseUnconfigured, CauseOf(&Error{Cause: CauseUnconfigured}))
	require.Equal(t, CauseProvider, CauseOf(errors.New("x")))
}

func TestOpenAIAdapter(t *testing.T) {
	var got struct {
		Model               string `json:"model"`
		MaxCompletionTokens int    `json:"max_completion_tokens"`
		Messages            []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4.1-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"`+"```html\\n<p>ok</p>\\n```"+`"}}]}`)
	}))
	defer srv.Close()

	g := New(context.Background(), Options{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL, MaxOutputTokens: 64})
	res, err := g.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	require.Equal(t, "<p>ok</p>", res.HTML)
	require.Equal(t, "gpt-4.1-mini", got.Model)
	require.Equal(t, 64, got.MaxCompletionTokens)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "user", got.Messages[0].Role)
	require.Equal(t, "clone this", got.Messages[0].Content)
}

func TestAnthropicAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"m1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
			"content":[{"type":"text","text":"<p>a</p>"},{"type":"text","text":"<p>b</p>"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	g := New(context.Background(), Options{Provider: ProviderAnthropic, APIKey: "sk-ant", BaseURL: srv.URL})
	res, err := g.Generate(context.Background(), testPrompt())
	require.NoError(t, err)
	require.Equal(t, "<p>a</p><p>b</p>", res.HTML)
}

func TestAdapterHTTPErrorIsProviderError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	g := New(context.Background(), Options{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), testPrompt())
	requireCause(t, err, CauseProvider)
	require.EqualValues(t, 1, hits.Load(), "generation is never retried")
}

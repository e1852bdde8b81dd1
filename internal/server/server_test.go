package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"siteclone/internal/clone"
	"siteclone/internal/fetch"
	"siteclone/internal/generate"
)

type fakeCloner struct {
	out   clone.Outcome
	err   error
	panic bool
	got   clone.Request
}

func (f *fakeCloner) Run(_ context.Context, req clone.Request) (clone.Outcome, error) {
	f.got = req
	if f.panic {
		panic("boom")
	}
	return f.out, f.err
}

func newTestHandler(c Cloner, log *bytes.Buffer) http.Handler {
	logger := zerolog.Nop()
	if log != nil {
		logger = zerolog.New(log)
	}
	return New(c, Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000/"},
		PoweredBy:      "Google Gemini",
		Logger:         logger,
	})
}

func postClone(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/clone_website", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeCloner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "Welcome to the Website Cloner API! Powered by Google Gemini.", decode[messageResponse](t, rec).Message)
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(&fakeCloner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	newTestHandler(&fakeCloner{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clone_website", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCloneWebsite_Success(t *testing.T) {
	fc := &fakeCloner{out: clone.Outcome{
		ClonedHTML: "<html></html>",
		Message:    "Successfully generated aesthetic clone for https://example.com using LLM (direct fetch).",
	}}
	var logs bytes.Buffer
	rec := postClone(t, newTestHandler(fc, &logs), `{"target_url":"https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[cloneResponse](t, rec)
	require.Equal(t, fc.out.ClonedHTML, resp.ClonedHTML)
	require.Equal(t, fc.out.Message, resp.Message)
	require.Equal(t, "https://example.com", fc.got.TargetURL)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	require.Contains(t, logs.String(), `"req_id"`)
	require.Contains(t, logs.String(), `"status":200`)
}

func TestCloneWebsite_FailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name: "upstream 404",
			err: &clone.Failure{Stage: clone.StageAcquisition, Cause: string(fetch.CauseHTTPStatus), StatusCode: 404,
				Detail: "Error scraping original URL: Server responded with 404"},
			status: http.StatusNotFound,
			detail: "Error scraping original URL: Server responded with 404",
		},
		{
			name:   "render timeout",
			err:    &clone.Failure{Stage: clone.StageAcquisition, Cause: string(fetch.CauseRenderTimeout), Detail: "Timed out"},
			status: http.StatusRequestTimeout,
			detail: "Timed out",
		},
		{
			name:   "unconfigured",
			err:    &clone.Failure{Stage: clone.StageGeneration, Cause: string(generate.CauseUnconfigured), Detail: "LLM API key not configured or missing."},
			status: http.StatusInternalServerError,
			detail: "LLM API key not configured or missing.",
		},
		{
			name:   "invalid url",
			err:    &clone.Failure{Stage: clone.StageInput, Cause: clone.CauseInvalidInput, Detail: "Invalid target URL: missing host"},
			status: http.StatusBadRequest,
			detail: "Invalid target URL: missing host",
		},
		{
			name:   "unclassified",
			err:    errors.New("surprise"),
			status: http.StatusInternalServerError,
			detail: "Unexpected server error: surprise",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postClone(t, newTestHandler(&fakeCloner{err: tt.err}, nil), `{"target_url":"https://example.com"}`)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.detail, decode[errorResponse](t, rec).Detail)
		})
	}
}

func TestCloneWebsite_BadBody(t *testing.T) {
	fc := &fakeCloner{}
	for _, body := range []string{"", "{", `{"target_url": 5}`} {
		rec := postClone(t, newTestHandler(fc, nil), body)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, decode[errorResponse](t, rec).Detail, "Invalid request body")
	}
	require.Empty(t, fc.got.TargetURL)
}

func TestCloneWebsite_PanicIsRecovered(t *testing.T) {
	rec := postClone(t, newTestHandler(&fakeCloner{panic: true}, nil), `{"target_url":"https://example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal server error", decode[errorResponse](t, rec).Detail)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(&fakeCloner{}, nil)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "http://127.0.0.1:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/clone_website", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
		require.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("disallowed preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/clone_website", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wildcard", func(t *testing.T) {
		wh := New(&fakeCloner{}, Options{AllowedOrigins: []string{"*"}, Logger: zerolog.Nop()})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://anything.example")
		rec := httptest.NewRecorder()
		wh.ServeHTTP(rec, req)
		require.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: newTestHandler(&fakeCloner{}, nil)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/titanous/json5"

	"siteclone/internal/fetch"
	"siteclone/internal/generate"
	"siteclone/internal/prompt"
)

const (
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvHostname        = "HOSTNAME"

	DefaultAddr                   = ":8000"
	DefaultShutdownTimeoutSeconds = 10
	DefaultOutputDir              = "output"
)

type PromptConfig struct {
	MaxChars         int    `json:"max_chars"`
	TruncationMarker string `json:"truncation_marker"`
	TemplateFile     string `json:"template_file"`
}

type ServerConfig struct {
	Addr                   string   `json:"addr"`
	AllowedOrigins         []string `json:"allowed_origins"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type OtlpEndpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

// TelemetryConfig is disabled unless a traces or metrics endpoint is set.
type TelemetryConfig struct {
	ServiceName string       `json:"service_name"`
	Traces      OtlpEndpoint `json:"traces"`
	Metrics     OtlpEndpoint `json:"metrics"`
}

type Config struct {
	// Generation
	Provider               string `json:"provider"`
	Model                  string `json:"model"`
	BaseURL                string `json:"base_url"`
	MaxOutputTokens        int    `json:"max_output_tokens"`
	GenerateTimeoutSeconds int    `json:"generate_timeout_seconds"`
	// Acquisition
	Strategy             string `json:"strategy"`
	UserAgent            string `json:"user_agent"`
	Headless             *bool  `json:"headless"`
	InstallBrowsers      bool   `json:"install_browsers"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	RenderTimeoutSeconds int    `json:"render_timeout_seconds"`

	OutputDir string          `json:"output_dir"`
	Prompt    PromptConfig    `json:"prompt"`
	Server    ServerConfig    `json:"server"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry"`

	// APIKey only ever comes from the environment.
	APIKey string `json:"-"`
}

func Default() Config {
	headless := true
	return Config{
		Provider:               string(generate.ProviderGemini),
		MaxOutputTokens:        generate.DefaultMaxOutputTokens,
		GenerateTimeoutSeconds: int(generate.DefaultTimeout / time.Second),
		Strategy:               string(fetch.StrategyDirect),
		UserAgent:              fetch.DefaultUserAgent,
		Headless:               &headless,
		TimeoutSeconds:         int(fetch.DefaultDirectTimeout / time.Second),
		RenderTimeoutSeconds:   int(fetch.DefaultRenderTimeout / time.Second),
		OutputDir:              DefaultOutputDir,
		Prompt: PromptConfig{
			MaxChars:         prompt.DefaultMaxChars,
			TruncationMarker: prompt.DefaultMarker,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			ShutdownTimeoutSeconds: DefaultShutdownTimeoutSeconds,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{ServiceName: "siteclone"},
	}
}

// Load reads a JSON5 config file over Default. A sibling <name>.local.<ext>
// file, when present, overrides the keys it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := decodeFile(&cfg, path, true); err != nil {
		return Config{}, err
	}
	if err := decodeFile(&cfg, localPath(path), false); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeFile only touches the keys present in the file.
func decodeFile(dst *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json5.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func Marshal(cfg Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// ApplyEnv fills the provider credential and extra CORS origin from the
// environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	var keys []string
	switch generate.ProviderName(strings.ToLower(strings.TrimSpace(c.Provider))) {
	case generate.ProviderOpenAI:
		keys = []string{EnvOpenAIAPIKey}
	case generate.ProviderAnthropic, "claude":
		keys = []string{EnvAnthropicAPIKey}
	default:
		keys = []string{EnvGoogleAPIKey, EnvGeminiAPIKey}
	}
	for _, key := range keys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			c.APIKey = strings.TrimSpace(v)
			break
		}
	}

	if host, ok := lookup(EnvHostname); ok && strings.TrimSpace(host) != "" {
		origin := fmt.Sprintf("http://%s:3000", strings.TrimSpace(host))
		for _, o := range c.Server.AllowedOrigins {
			if o == origin {
				return
			}
		}
		c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := generate.ParseProvider(c.Provider); err != nil {
		errs = append(errs, err)
	}
	if _, err := fetch.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]int{
		"timeout_seconds":                 c.TimeoutSeconds,
		"render_timeout_seconds":          c.RenderTimeoutSeconds,
		"generate_timeout_seconds":        c.GenerateTimeoutSeconds,
		"max_output_tokens":               c.MaxOutputTokens,
		"prompt.max_chars":                c.Prompt.MaxChars,
		"server.shutdown_timeout_seconds": c.Server.ShutdownTimeoutSeconds,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) FetchOptions() (fetch.Options, error) {
	strategy, err := fetch.ParseStrategy(c.Strategy)
	if err != nil {
		return fetch.Options{}, err
	}
	headless := true
	if c.Headless != nil {
		headless = *c.Headless
	}
	return fetch.Options{
		Strategy:        strategy,
		DirectTimeout:   seconds(c.TimeoutSeconds),
		RenderTimeout:   seconds(c.RenderTimeoutSeconds),
		UserAgent:       c.UserAgent,
		Headless:        headless,
		InstallBrowsers: c.InstallBrowsers,
	}, nil
}

// PromptOptions reads the template file when one is configured.
func (c Config) PromptOptions() (prompt.Options, error) {
	opts := prompt.Options{
		MaxChars: c.Prompt.MaxChars,
		Marker:   c.Prompt.TruncationMarker,
	}
	if c.Prompt.TemplateFile != "" {
		tmpl, err := prompt.LoadTemplate(c.Prompt.TemplateFile)
		if err != nil {
			return prompt.Options{}, err
		}
		opts.Template = tmpl
	}
	return opts, nil
}

func (c Config) GenerateOptions() (generate.Options, error) {
	provider, err := generate.ParseProvider(c.Provider)
	if err != nil {
		return generate.Options{}, err
	}
	return generate.Options{
		Provider:        provider,
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		Timeout:         seconds(c.GenerateTimeoutSeconds),
		MaxOutputTokens: c.MaxOutputTokens,
	}, nil
}

func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return DefaultShutdownTimeoutSeconds * time.Second
	}
	return seconds(c.Server.ShutdownTimeoutSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"siteclone/internal/config"
	"siteclone/internal/logging"
)

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "error"
}

func (e ExitError) Unwrap() error { return e.Err }

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand wires every subcommand. The environment lookup is injected
// so tests never depend on the real env.
func NewRootCommand(stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "siteclone",
		Short:         "Generate an aesthetic HTML clone of a website with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return ExitError{Code: 2, Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: first "+config.DefaultConfigFile+" in ., configs/, user config dir)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: console|json")

	env := &runEnv{globals: g, lookupEnv: lookupEnv, stderr: stderr}
	root.AddCommand(
		newServeCommand(env),
		newCloneCommand(env),
		newInspectCommand(env),
		newInitConfigCommand(env),
		newCheckConfigsCommand(),
	)
	return root
}

type runEnv struct {
	globals   *globalFlags
	lookupEnv func(string) (string, bool)
	stderr    io.Writer
}

// loadConfig resolves the config file, applies overrides for flags the user
// actually set, then overlays the environment and validates the result.
func (e *runEnv) loadConfig(cmd *cobra.Command, overrides func(*config.Config)) (config.Config, error) {
	path := e.globals.configPath
	if path == "" {
		path = config.Find()
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, ExitError{Code: 2, Err: err}
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = e.globals.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = e.globals.logFormat
	}
	if overrides != nil {
		overrides(&cfg)
	}
	cfg.ApplyEnv(e.lookupEnv)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, ExitError{Code: 2, Err: fmt.Errorf("invalid config: %w", err)}
	}
	return cfg, nil
}

func (e *runEnv) logger(ctx context.Context, cfg config.Config) (context.Context, zerolog.Logger) {
	logger := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: e.stderr,
	})
	return logger.WithContext(ctx), logger
}

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

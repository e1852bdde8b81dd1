package cli

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"siteclone/internal/config"
	"siteclone/internal/generate"
	"siteclone/internal/server"
	"siteclone/internal/telemetry"
)

func newServeCommand(env *runEnv) *cobra.Command {
	var (
		pf      pipelineFlags
		addr    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the clone API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.loadConfig(cmd, func(cfg *config.Config) {
				pf.apply(cmd, cfg)
				if cmd.Flags().Changed("addr") {
					cfg.Server.Addr = addr
				}
				if cmd.Flags().Changed("origin") {
					cfg.Server.AllowedOrigins = origins
				}
			})
			if err != nil {
				return err
			}
			return env.serve(cmd.Context(), cfg)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed CORS origin (repeatable, * for any)")
	return cmd
}

func (e *runEnv) serve(ctx context.Context, cfg config.Config) error {
	ctx, logger := e.logger(ctx, cfg)

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	provider, _ := generate.ParseProvider(cfg.Provider)
	srv := &http.Server{
		Handler: server.New(pipeline, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			PoweredBy:      provider.DisplayName(),
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(logger.With().Str("component", "http").Logger(), "", 0),
	}

	logger.Info().
		Str("addr", ln.Addr().String()).
		Strs("allowed_origins", cfg.Server.AllowedOrigins).
		Bool("telemetry", tel.Enabled()).
		Msg("Listening")
	return server.Serve(ctx, srv, ln, cfg.ShutdownTimeout())
}

// Command pitch-coach serves the pitch coaching API and its MCP tools.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/api"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/config"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/mcp"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.NewLogger(context.Background()).Fatalf("pitch-coach: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	logging.SetLoggerFactory(logging.NewLogrusFactory(os.Stderr, cfg.LogLevel, cfg.LogJSON))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	log := logging.NewLogger(ctx)

	p, err := buildProviders(ctx, cfg)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	c, err := coach.New(coachOptions(cfg, p)...)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	opts := []api.Option{
		api.WithMCPHandler(mcp.NewHTTPHandler(c)),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
	}
	if p.lister != nil {
		opts = append(opts, api.WithModelLister(p.lister, p.recommended))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(c, opts...).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		log.Infof("listening on %s transcriber=%s feedback=%s profiles=%v",
			cfg.Addr, cfg.Transcriber, cfg.Feedback, c.Profiles())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return utils.WrapIfNotNil(err)
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return utils.WrapIfNotNil(srv.Shutdown(shutdownCtx))
}

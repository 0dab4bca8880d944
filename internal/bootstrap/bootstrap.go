package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-modguard/internal/config"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type Bootstrap struct {
	Config      *config.Config
	Logger      *slog.Logger
	Components  *Components
	initialized bool
}

func New(cfg *config.Config, logger *slog.Logger) *Bootstrap {
	return &Bootstrap{
		Config: cfg,
		Logger: logger,
	}
}

func (b *Bootstrap) Initialize() error {
	if b.Config.Bot.Token == "" {
		return errors.New("no bot token configured (set DISCORD_TOKEN or bot.token)")
	}

	components, err := Wire(b.Config, b.Logger)
	if err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}
	b.Components = components

	b.initialized = true
	b.Logger.Info("bootstrap complete", "state_backend", strings.ToLower(b.Config.State.Backend))
	return nil
}

// Run connects to the gateway and blocks until ctx is cancelled or a
// background loop fails. Shutdown runs before it returns.
func (b *Bootstrap) Run(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	defer b.Shutdown()

	if err := StartAll(ctx, b.Config, b.Components, b.Logger); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Components.Engine.Run(gctx) })
	g.Go(func() error { return b.Components.Watchdog.Run(gctx) })
	g.Go(func() error { return watchGateway(gctx, b.Components.Session, b.Components.Watchdog, 30*time.Second) })
	if b.Config.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(gctx, b.Config.Metrics.Listen, b.Logger) })
	}

	b.Logger.Info("all components started")
	return g.Wait()
}

func (b *Bootstrap) Shutdown() error {
	if b.Components == nil {
		return nil
	}
	return Shutdown(b.Components, b.Logger)
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting metrics endpoint", "bind", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

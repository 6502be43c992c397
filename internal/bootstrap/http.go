package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/target/scriptcheck/config"
	httpx "github.com/target/scriptcheck/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer binds the listener and serves in the background. Serve
// errors are sent to errCh.
func StartHTTPServer(cfg *HTTPServerConfig, errCh chan<- error) (*http.Server, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	handler := httpx.NewHandler(httpx.RouterServices{
		Submissions: cfg.Services.Submissions,
		Jobs:        cfg.Services.Jobs,
		Reports:     cfg.Services.Reports,
		Auth:        cfg.Services.Auth,
		Ready:       cfg.Services.ReadinessChecks(),
		HTTP:        appCfg.HTTP,
		RateLimit:   appCfg.RateLimit,
		Metrics:     appCfg.Metrics,
		Logger:      logger,
	})
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
	}

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if appCfg.HTTP.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, appCfg.HTTP.MaxConnections)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       appCfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      appCfg.HTTP.WriteTimeout,
		IdleTimeout:       appCfg.HTTP.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_connections", appCfg.HTTP.MaxConnections)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("http server: %w", err):
			default:
				logger.Error("HTTP server failed", "error", err)
			}
		}
	}()

	return server, nil
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}

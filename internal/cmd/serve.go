package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/btkeyboard/device/keyboard"
	"github.com/Alia5/btkeyboard/internal/configpaths"
	"github.com/Alia5/btkeyboard/internal/log"
	"github.com/Alia5/btkeyboard/internal/metrics"
	"github.com/Alia5/btkeyboard/internal/server"
	"github.com/Alia5/btkeyboard/internal/server/auth"
	"github.com/Alia5/btkeyboard/sink"
)

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `help:"Serve Prometheus metrics on this address (/metrics); disabled when empty" env:"BTKEYBOARD_METRICS_ADDR"`
}

// Serve runs the event server.
type Serve struct {
	ServerConfig  server.ServerConfig `embed:"" prefix:"server."`
	Sink          SinkConfig          `embed:"" prefix:"sink."`
	MetricsConfig MetricsConfig       `embed:"" prefix:"metrics."`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger, os.Stdout, nil)
}

// StartServer serves until ctx is done. ready, if non-nil, receives the
// server once it is listening.
func (s *Serve) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger, stdout io.Writer, ready chan<- *server.Server) error {
	if s.ServerConfig.Addr == "" {
		return errors.New("server address must be set (--server.addr)")
	}
	if err := s.loadPassword(logger); err != nil {
		return err
	}
	m := metrics.New()

	out, err := s.Sink.Open(logger, rawLogger, m, stdout)
	if err != nil {
		return err
	}
	defer out.Close()
	p, err := keyboard.ParsePacking(s.Sink.Packing)
	if err != nil {
		return err
	}

	logger.Info("Starting btkeyboard event server", "addr", s.ServerConfig.Addr, "sink", s.Sink.Kind, "packing", p)
	srv := server.New(s.ServerConfig, sink.NewShared(out), logger, server.WithPacking(p), server.WithMetrics(m))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-srv.Ready():
	}
	if ready != nil {
		ready <- srv
	}

	var metricsSrv *http.Server
	if s.MetricsConfig.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: s.MetricsConfig.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("Metrics listening", "addr", s.MetricsConfig.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	shutdown := func() {
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = metricsSrv.Shutdown(sctx)
			cancel()
		}
		_ = srv.Close()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down event server")
		shutdown()
		return <-errCh
	case err := <-errCh:
		shutdown()
		return err
	}
}

// loadPassword fills ServerConfig.Password from the key file, generating the
// file on first start.
func (s *Serve) loadPassword(logger *slog.Logger) error {
	if s.ServerConfig.Password != "" {
		return nil
	}
	path := s.ServerConfig.KeyFile
	if path == "" {
		p, err := configpaths.DefaultKeyPath()
		if err != nil {
			return fmt.Errorf("failed to resolve key file path: %w", err)
		}
		path = p
	}
	pw, created, err := auth.LoadOrCreateKeyFile(path)
	if err != nil {
		return err
	}
	s.ServerConfig.Password = pw
	if created {
		logger.Info("Generated event server password", "path", path)
		logger.Info("-------------------------------------")
		logger.Info("Your btkeyboard event server password is:")
		logger.Info(pw)
		logger.Info("-------------------------------------")
		logger.Info("Remote clients must send it; edit the file to change it")
	}
	return nil
}

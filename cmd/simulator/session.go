package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/logging"
	"github.com/signalsfoundry/wlan-hidden-sim/internal/observability"
)

// session holds what a command needs around the simulations themselves:
// logger, tracing, metrics collector and the optional metrics server.
type session struct {
	log       logging.Logger
	collector *observability.SimCollector

	shutdownTracing func(context.Context) error
	metricsSrv      *http.Server
}

func openSession(ctx context.Context, cmd *cobra.Command, v *viper.Viper) (*session, error) {
	log := logging.New(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		Output: cmd.ErrOrStderr(),
	})

	tcfg := observability.TracingConfigFromEnv()
	tcfg.Command = cmd.Name()
	shutdown, err := observability.InitTracing(ctx, tcfg, log)
	if err != nil {
		return nil, err
	}

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil, err
	}

	s := &session{log: log, collector: collector, shutdownTracing: shutdown}
	if addr := v.GetString(keyMetricsAddr); addr != "" {
		s.metricsSrv = serveMetrics(addr, collector, log)
	}
	return s, nil
}

// hold blocks until ctx is done when a metrics server is running, so the
// final values stay scrapeable.
func (s *session) hold(ctx context.Context) {
	if s.metricsSrv == nil {
		return
	}
	s.log.Info(ctx, "run finished, serving metrics until interrupted", logging.String("addr", s.metricsSrv.Addr))
	<-ctx.Done()
}

func (s *session) close(ctx context.Context) {
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		_ = s.metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), s.shutdownTracing, s.log)
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// netsim is an in-process TCP/IP stack simulator: an interactive shell
// for building virtual chassis, cabling their interfaces together, and
// exercising ARP, IPv4 routing, and ICMP/UDP traffic between them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/netsim/cmd/netsim/commands"
	"github.com/dantte-lp/netsim/internal/config"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	appversion "github.com/dantte-lp/netsim/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	noMetrics := flag.Bool("no-metrics", false, "disable the Prometheus metrics HTTP server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("netsim starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr))

	reg := prometheus.NewRegistry()
	var collector *netsimmetrics.Collector
	if !*noMetrics {
		collector = netsimmetrics.NewCollector(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.Init(ctx, logger, cfg.Sim, collector)

	g, gCtx := errgroup.WithContext(ctx)

	if !*noMetrics {
		metricsSrv := newMetricsServer(cfg.Metrics, reg)
		g.Go(func() error {
			logger.Info("metrics server listening",
				slog.String("addr", cfg.Metrics.Addr),
				slog.String("path", cfg.Metrics.Path))
			return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		commands.RunShell()
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("netsim exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("netsim stopped")
	return 0
}

// shutdownTimeout bounds how long the metrics server is given to drain
// active connections once the shell exits.
const shutdownTimeout = 5 * time.Second

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

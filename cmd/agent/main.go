package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jvmprof/jvmprof/pkg/agent"
	"github.com/jvmprof/jvmprof/pkg/config"
	"github.com/jvmprof/jvmprof/pkg/must"
	"github.com/jvmprof/jvmprof/pkg/storage/client"
)

var (
	rootCmd = &cobra.Command{
		Use:           "agent",
		Short:         "Aggregate spooled JVM trace dumps and store profiles",
		Long:          "Aggregation daemon consuming trace dumps spooled by in-process samplers, building deduplicated pprof profiles and handing them to storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run()
		},
	}

	configPath string
	logLevel   string
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to agent config")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (default - `info`, must be one of `debug`, `info`, `warn`, `error`)")

	must.Must(rootCmd.MarkFlagRequired("config"))
	must.Must(rootCmd.MarkFlagFilename("config"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger, err := newLogger(level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("Failed to adjust GOMAXPROCS", zap.Error(err))
	}

	conf, err := config.ParseConfig(configPath)
	if err != nil {
		return err
	}

	storage, err := newStorage(conf, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := agent.New(logger, &conf.Agent,
		agent.WithStorage(storage),
		agent.WithMetricsRegistry(registry),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		<-signals
		logger.Warn("Stopping the agent, flushing accumulated profiles")
		cancel()
	}()

	go runMetricsServer(logger, registry, conf.MetricsPort)

	if logger.Core().Enabled(zapcore.DebugLevel) {
		go dumpMemStats(ctx, logger)
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return config.Build()
}

func newStorage(conf *config.Config, logger *zap.Logger) (client.ProfileStorage, error) {
	if conf.LocalStorage != nil {
		return client.NewLocalStorage(conf.LocalStorage, logger)
	}
	return client.NewInMemoryStorage(conf.InMemoryStorage), nil
}

func runMetricsServer(logger *zap.Logger, registry *prometheus.Registry, port uint) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// The aggregation daemon profiles itself too.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	if err != nil {
		logger.Error("Failed to run metrics server", zap.Error(err))
	}
}

// dumpMemStats logs allocator statistics every few seconds.
func dumpMemStats(ctx context.Context, logger *zap.Logger) {
	var m runtime.MemStats
	tick := time.NewTicker(10 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		runtime.ReadMemStats(&m)
		logger.Debug("Memory stats",
			zap.String("alloc", humanize.Bytes(m.Alloc)),
			zap.String("total_alloc", humanize.Bytes(m.TotalAlloc)),
			zap.String("sys", humanize.Bytes(m.Sys)),
			zap.Uint64("mallocs", m.Mallocs),
			zap.Uint64("frees", m.Frees),
			zap.String("heap_inuse", humanize.Bytes(m.HeapInuse)),
			zap.Uint32("num_gc", m.NumGC),
			zap.Float64("gc_cpu_fraction", m.GCCPUFraction),
		)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/time/rate"

	"github.com/saladfingers379/RIS-SIONNA/internal/gateway"
	"github.com/saladfingers379/RIS-SIONNA/internal/progress"
	"github.com/saladfingers379/RIS-SIONNA/internal/runstore"
	"github.com/saladfingers379/RIS-SIONNA/internal/scheduler"
	"github.com/saladfingers379/RIS-SIONNA/pkg/logging"
	"github.com/saladfingers379/RIS-SIONNA/pkg/metrics"
)

var serveFlags struct {
	root               string
	addr               string
	workerBinary       string
	configsDir         string
	logDir             string
	simConcurrency     int64
	risConcurrency     int64
	vramThresholdBytes int64
	rateLimitPerSecond float64
	rateLimitBurst     int
	tracing            bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JobGateway HTTP server and JobScheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.root, "root", "./runs", "run directory root")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveFlags.workerBinary, "worker-binary", "simworker", "path to the simworker executable")
	serveCmd.Flags().StringVar(&serveFlags.configsDir, "configs-dir", "./configs", "directory of base config YAML files")
	serveCmd.Flags().StringVar(&serveFlags.logDir, "log-dir", "", "if set, control-plane logs also go to <log-dir>/_control.log")
	serveCmd.Flags().Int64Var(&serveFlags.simConcurrency, "sim-concurrency", 1, "sim queue concurrency cap")
	serveCmd.Flags().Int64Var(&serveFlags.risConcurrency, "ris-concurrency", 1, "ris queue concurrency cap")
	serveCmd.Flags().Int64Var(&serveFlags.vramThresholdBytes, "vram-threshold-bytes", 1<<30, "VRAM guard threshold")
	serveCmd.Flags().Float64Var(&serveFlags.rateLimitPerSecond, "submit-rate-limit", 5, "submissions/sec allowed on POST /api/jobs + /api/ris/jobs")
	serveCmd.Flags().IntVar(&serveFlags.rateLimitBurst, "submit-rate-burst", 10, "submission burst size")
	serveCmd.Flags().BoolVar(&serveFlags.tracing, "tracing", true, "emit OpenTelemetry spans to stdout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var logFile string
	if serveFlags.logDir != "" {
		logFile = filepath.Join(serveFlags.logDir, "_control.log")
	}
	log := logging.New(logging.Config{Level: logging.LevelInfo, LogFile: logFile, Service: "simcore", JSON: true})
	defer log.Close()

	if serveFlags.tracing {
		shutdown, err := initTracer()
		if err != nil {
			log.Warn("tracing disabled: failed to init exporter", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	store, err := runstore.New(serveFlags.root)
	if err != nil {
		return err
	}
	indexCache, err := runstore.OpenIndexCache(serveFlags.root)
	if err != nil {
		log.Warn("index cache unavailable", "error", err)
	} else {
		defer indexCache.Close()
		if err := indexCache.Rebuild(store); err != nil {
			log.Warn("index cache rebuild failed", "error", err)
		}
		store.SetIndexCache(indexCache)
	}

	journal := progress.New(serveFlags.root)
	watcher, err := progress.NewWatcher(journal, serveFlags.root)
	if err != nil {
		log.Warn("progress watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	reg := metrics.New(prometheus.DefaultRegisterer)

	schedCfg := scheduler.DefaultConfig(serveFlags.workerBinary)
	schedCfg.SimConcurrency = serveFlags.simConcurrency
	schedCfg.RisConcurrency = serveFlags.risConcurrency
	schedCfg.VRAMThresholdBytes = serveFlags.vramThresholdBytes
	schedCfg.Metrics = reg
	sched := scheduler.New(store, journal, log.Logger, schedCfg)

	gw := gateway.New(store, journal, sched, reg, log.Logger, gateway.Config{
		ConfigsDir:      serveFlags.configsDir,
		SubmitRateLimit: rate.Limit(serveFlags.rateLimitPerSecond),
		SubmitBurst:     serveFlags.rateLimitBurst,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	if serveFlags.tracing {
		router.Use(otelgin.Middleware("simcore"))
	}
	gw.Register(router)

	srv := &http.Server{Addr: serveFlags.addr, Handler: router}
	go func() {
		log.Info("gateway listening", "addr", serveFlags.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	log.Info("draining: no new dispatches, waiting for in-flight workers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Shutdown()
	log.Info("drain complete")
	return nil
}

// initTracer wires a stdout span exporter (the pack's domain-stack entry
// for otel: "go.opentelemetry.io/otel + otelgin + stdout exporter").
func initTracer() (func(context.Context), error) {
	ctx := context.Background()
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("simcore")))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

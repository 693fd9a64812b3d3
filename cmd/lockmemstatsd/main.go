// Command lockmemstatsd is an optional wrapper around the lockmem
// singleton that serves its occupancy as Prometheus metrics. It owns
// no allocator state of its own: every gauge it reports comes from
// polling lockmem.Instance().Stats() and from a harmless self-test
// round trip it runs on a timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jech/lockmem"
)

func main() {
	var configPath, listenOverride string
	flag.StringVar(&configPath, "config", "",
		"`path` to a TOML config file")
	flag.StringVar(&listenOverride, "listen", "",
		"`address` to serve /metrics and /healthz on, overrides the config file")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lockmemstatsd: %v\n", err)
		os.Exit(1)
	}
	if listenOverride != "" {
		cfg.ListenAddr = listenOverride
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lockmemstatsd: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	alloc := mustInstance(logger)

	reg := prometheus.NewRegistry()
	metrics := newPoolMetrics(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if alloc != nil {
		interval := time.Duration(cfg.SelfTestIntervalSecs) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		go runSelfTest(ctx, logger, alloc, metrics, interval)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Info("serving metrics", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	if alloc != nil {
		if err := alloc.Close(); err != nil {
			logger.Warn("closing locked pool", zap.Error(err))
		}
	}
}

// mustInstance constructs the lockmem singleton, recovering from the
// panic lockmem.Instance raises on a genuine construction failure
// (as opposed to a disabled pool, which is not fatal and needs no
// recover). A daemon that cannot lock memory still reports metrics
// showing the allocator as disabled rather than refusing to start.
func mustInstance(logger *zap.Logger) (alloc *lockmem.Allocator) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("locked allocator unavailable", zap.Any("panic", r))
			alloc = nil
		}
	}()
	return lockmem.Instance()
}

func newLogger(level string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log_level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	return cfg.Build()
}

func runSelfTest(ctx context.Context, logger *zap.Logger, alloc *lockmem.Allocator, metrics *poolMetrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			selfTestOnce(logger, alloc, metrics)
		}
	}
}

// selfTestOnce performs one allocate/zero-check/deallocate round trip
// against the singleton and updates metrics accordingly. It never
// retains the address past this call.
func selfTestOnce(logger *zap.Logger, alloc *lockmem.Allocator, metrics *poolMetrics) {
	const numElems, elemSize = 16, 8

	addr := alloc.Allocate(numElems, elemSize)
	if addr == 0 {
		metrics.allocationFailures.Inc()
	} else {
		metrics.allocationsTotal.Inc()
		region := unsafe.Slice((*byte)(unsafe.Pointer(addr)), numElems*elemSize)
		for _, b := range region {
			if b != 0 {
				logger.Error("self-test allocation was not zeroed")
				break
			}
		}
		if !alloc.Deallocate(addr, numElems, elemSize) {
			logger.Error("self-test deallocate rejected our own allocation")
		} else {
			metrics.deallocationsTotal.Inc()
			metrics.selfTestRoundTrips.Inc()
		}
	}

	stats := alloc.Stats()
	if stats.Disabled {
		metrics.poolBytesTotal.Set(0)
		metrics.poolBytesFree.Set(0)
		metrics.freeExtents.Set(0)
		return
	}
	metrics.poolBytesTotal.Set(float64(stats.PoolBytes))
	metrics.poolBytesFree.Set(float64(stats.FreeBytes))
	metrics.freeExtents.Set(float64(stats.FreeExtents))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	obsinit "github.com/chatmem-dev/chatmem/internal/observability"
	"github.com/chatmem-dev/chatmem/pkg/config"
	"github.com/chatmem-dev/chatmem/pkg/memory"
	"github.com/chatmem-dev/chatmem/pkg/observability"
	"github.com/chatmem-dev/chatmem/pkg/summarizer"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", ""), "Configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 0), "HTTP server port (overrides config)")
	logLevel   = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(level)
	}

	log.WithField("version", Version).Info("starting chatmemd")

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.WithError(err).Fatal("load config")
		}
		cfg = loaded
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	if err := obsinit.InitFromEnv(); err != nil {
		log.WithError(err).Warn("tracing init failed, continuing without traces")
	}

	observability.InitMetrics()

	store := memory.NewStore(log)
	guard := memory.NewGuard(store, log)

	var sum memory.Summarizer
	if cfg.Summarizer.Provider != "" {
		llm, err := summarizer.NewFromRegistry(cfg.Summarizer.Provider,
			map[string]any{"api_key": cfg.Summarizer.APIKey},
			summarizer.WithModel(cfg.Summarizer.Model),
			summarizer.WithTimeout(time.Duration(cfg.Summarizer.TimeoutSeconds)*time.Second),
			summarizer.WithRateLimit(cfg.Summarizer.RequestsPerMinute),
			summarizer.WithLogger(log),
		)
		if err != nil {
			log.WithError(err).WithField("provider", cfg.Summarizer.Provider).
				Warn("summarizer unavailable, sessions keep raw messages only")
		} else {
			sum = llm
		}
	} else {
		log.Info("no summarizer configured, sessions keep raw messages only")
	}

	manager := memory.NewManager(store, sum, cfg.Memory, log)

	scheduler := memory.NewScheduler(manager, guard,
		time.Duration(cfg.Cleanup.SweepIntervalMinutes)*time.Minute, log)
	scheduler.Start(time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute)

	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	healthChecker.RegisterCheck(observability.StoreCheck(func() error {
		_, err := store.GetOrCreate("health-probe")
		if err == nil {
			store.Delete("health-probe")
		}
		return err
	}))

	obsServer := observability.NewServer(cfg.Server.Port,
		observability.WithStats(func() any { return manager.Stats() }))

	errChan := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting HTTP server")
		if err := obsServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.WithError(err).Error("server error")
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := obsServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}
	if err := obsinit.Shutdown(ctx); err != nil {
		log.WithError(err).Error("tracer shutdown error")
	}
	_ = store.Close()

	log.Info("chatmemd stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

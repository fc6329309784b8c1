package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"deadline-tasks/api"
	"deadline-tasks/reminder"
	"deadline-tasks/storage"
	"deadline-tasks/web"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("env file %s: %v", envFile, err)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	for _, l := range []*log.Logger{log.StandardLogger(), logger} {
		if cfg.debug {
			l.SetLevel(log.DebugLevel)
		}
		if cfg.jsonLogs {
			l.SetFormatter(&log.JSONFormatter{})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var sender api.Reminder = reminder.Disabled{}
	if cfg.emailJS.Configured() {
		sender = reminder.NewEmailJS(cfg.emailJS, nil)
	} else {
		log.Warn("EmailJS is not configured; reminders will fail")
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(echoprometheus.NewMiddleware("deadline_tasks"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, store, sender, cfg.location, logger)
	web.NewPage(store, sender, cfg.location, logger).Register(e)

	go func() {
		log.Infof("listening on %s (storage: %s)", cfg.listenAddr, cfg.storageBackend)
		if err := e.Start(cfg.listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorf("tracer shutdown: %v", err)
	}
}

func newStore(ctx context.Context, cfg config) (api.Storage, error) {
	var store api.Storage
	switch cfg.storageBackend {
	case backendTable:
		tables, err := storage.New(cfg.connStr, cfg.tasksTable)
		if err != nil {
			return nil, err
		}
		if cfg.autoCreateTable {
			initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := tables.EnsureTable(initCtx)
			cancel()
			if err != nil {
				return nil, err
			}
		}
		store = tables
	default:
		log.Warn("using in-memory storage; tasks are lost on restart")
		store = storage.NewMemory()
	}

	if cfg.redisConn != "" {
		rc := redis.NewClient(parseRedisOptions(cfg.redisConn))
		store = storage.NewCache(store, rc, cfg.cacheTTL)
	}
	return store, nil
}

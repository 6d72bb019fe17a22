package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/barrancos/config"
	"github.com/padraicbc/barrancos/db"
	"github.com/padraicbc/barrancos/handlers"
	applog "github.com/padraicbc/barrancos/logger"
	"github.com/padraicbc/barrancos/metrics"
	mw "github.com/padraicbc/barrancos/middleware"
	"github.com/padraicbc/barrancos/records"
	"github.com/padraicbc/barrancos/uploads"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.InsecureSecret() {
		logger.Warn("SECRET_KEY is not set, using the built-in default; sessions and CSRF tokens are forgeable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(ctx, bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	dir, err := uploads.Open(cfg.UploadDir)
	if err != nil {
		logger.Fatal("open upload dir failed", zap.String("dir", cfg.UploadDir), zap.Error(err))
	}
	defer dir.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewRecords(registry)
	if err != nil {
		logger.Fatal("register metrics failed", zap.Error(err))
	}

	tls := !cfg.Debug && len(cfg.TLSDomains) > 0

	store := db.NewCanyonStore(bdb)
	svc := records.NewService(store, dir, logger.Named("records"), m)
	h := handlers.New(svc, mw.NewFlasher(cfg.SecretKeyBytes(), tls), store, logger.Named("http"))

	renderer, err := handlers.NewRenderer()
	if err != nil {
		logger.Fatal("parse views failed", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(cfg.MaxUploadSize))
	e.Use(echomw.Secure())
	e.Use(mw.CSRF(logger.Named("csrf"), tls))

	e.Static("/static/uploads", dir.Path())
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	h.Routes(e)

	if !tls {
		logger.Info("starting server", zap.Bool("debug", cfg.Debug), zap.String("addr", cfg.Port))
		go func() {
			if err := e.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server exited", zap.Error(err))
			}
		}()
		waitAndShutdown(ctx, logger, e.Shutdown)
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	logger.Info("starting tls server", zap.Strings("domains", cfg.TLSDomains))
	go func() {
		if err := s.ListenAndServeTLS("", ""); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("tls server exited", zap.Error(err))
			os.Exit(1)
		}
	}()
	waitAndShutdown(ctx, logger, s.Shutdown)
}

// waitAndShutdown blocks until ctx is cancelled, then drains in-flight requests.
func waitAndShutdown(ctx context.Context, logger *zap.Logger, shutdown func(context.Context) error) {
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

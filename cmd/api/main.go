package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dcvisitor/internal/app"
	"dcvisitor/internal/auth"
	"dcvisitor/internal/capture"
	"dcvisitor/internal/config"
	"dcvisitor/internal/export"
	"dcvisitor/internal/handler"
	"dcvisitor/internal/httpmiddleware"
	"dcvisitor/internal/logging"
	"dcvisitor/internal/objectstore"
	"dcvisitor/internal/queue"
	"dcvisitor/internal/registration"
)

const sweepEvery = time.Minute

func main() {
	cfg := config.Load()
	log := logging.New("dcvisitor-api", cfg.Env)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App, log logrus.FieldLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, log, 30*time.Second)
	if err != nil {
		return err
	}
	defer deps.Close()

	uploader, err := objectstore.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	spool, err := capture.NewSpool(cfg.CaptureDir, cfg.CameraEnabled, log)
	if err != nil {
		return err
	}
	pipe := &registration.Pipeline{Store: deps.Visitors, Photos: spool, Uploader: uploader, Log: log}
	forms := registration.NewRegistry(pipe, registration.Options{MaxDrafts: cfg.MaxDrafts, RequirePhoto: cfg.RequirePhoto}, log)
	defer forms.CloseAll()

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	if cfg.QueueBackend == app.QueueBackendMemory {
		// no separate worker in this mode
		go func() {
			if err := queue.Dispatch(ctx, deps.Queue, deps.Consumers(), log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("event dispatch stopped")
			}
		}()
	}
	go sweep(ctx, cfg, forms, spool, limiter, log)

	srv := &handler.Server{
		Visitors:     deps.Visitors,
		Forms:        forms,
		Pipeline:     pipe,
		Spool:        spool,
		Exporter:     export.NewExporter(cfg.Location(), log),
		Devices:      deps.Devices,
		Issuer:       auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Checks:       map[string]handler.Check{"db": deps.DB.Ping},
		RequirePhoto: cfg.RequirePhoto,
		Log:          log,
	}
	if deps.Redis != nil {
		srv.Checks["redis"] = func(ctx context.Context) error { return deps.Redis.Client.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.RequestLogger(log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	srv.Routes(r, limiter.GinMiddleware())

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}

// sweep expires idle forms, orphaned captures and stale rate buckets.
func sweep(ctx context.Context, cfg config.App, forms *registration.Registry, spool *capture.Spool, limiter *httpmiddleware.SimpleTokenBucket, log logrus.FieldLogger) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			forms.Sweep(cfg.RegistrationIdle)
			// captures outlive their form by one idle period; attached ones stay
			if n, err := spool.Sweep(now.Add(-2*cfg.RegistrationIdle), forms.Handles()); err != nil {
				log.WithError(err).Warn("capture sweep failed")
			} else if n > 0 {
				log.WithField("removed", n).Info("orphaned captures removed")
			}
			limiter.Sweep(10 * time.Minute)
		}
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dcvisitor/internal/app"
	"dcvisitor/internal/config"
	"dcvisitor/internal/device"
	"dcvisitor/internal/logging"
	"dcvisitor/internal/queue"
)

const purgeEvery = time.Hour

// Worker consumes visitor change events and runs periodic housekeeping.
func main() {
	cfg := config.Load()
	log := logging.New("dcvisitor-worker", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == app.QueueBackendMemory {
		log.Warn("QUEUE_BACKEND=memory: events are consumed inside the api process, worker only purges tokens")
	}

	deps, err := app.Open(ctx, cfg, log, time.Minute)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer deps.Close()

	go purgeTokens(ctx, deps.Devices, log)

	log.Info("worker started, waiting for messages")
	if cfg.QueueBackend != app.QueueBackendMemory {
		if err := queue.Dispatch(ctx, deps.Queue, deps.Consumers(), log); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("dispatch stopped")
		}
	} else {
		<-ctx.Done()
	}
	log.Info("worker stopped")
}

func purgeTokens(ctx context.Context, devices *device.Repository, log logrus.FieldLogger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		n, err := devices.PurgeExpiredTokens(ctx)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("refresh token purge failed")
		} else if n > 0 {
			log.WithField("purged", n).Info("expired refresh tokens removed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

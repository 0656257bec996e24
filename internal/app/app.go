// Package app wires the storage, cache and queue backends shared by the api,
// worker and cli binaries.
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"dcvisitor/internal/config"
	"dcvisitor/internal/device"
	"dcvisitor/internal/queue"
	"dcvisitor/internal/store"
	"dcvisitor/internal/visitor"
)

// QueueBackendMemory keeps change events inside one process.
const QueueBackendMemory = "memory"

// Deps are the long-lived connections and services.
type Deps struct {
	Cfg      config.App
	Log      logrus.FieldLogger
	DB       *store.DB
	Redis    *store.Redis
	Queue    queue.Queue
	Visitors *visitor.Service
	Devices  *device.Repository
}

// Open connects to the database, runs migrations and builds the visitor
// service. connectWait bounds how long the first database ping is retried.
func Open(ctx context.Context, cfg config.App, log logrus.FieldLogger, connectWait time.Duration) (*Deps, error) {
	db, err := store.NewDB(ctx, cfg.DatabaseURL, connectWait)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &Deps{Cfg: cfg, Log: log, DB: db}

	var cache visitor.StatsCache
	if cfg.QueueBackend == QueueBackendMemory {
		d.Queue = queue.NewInMemory(64)
		cache = visitor.NewMemoryStatsCache(cfg.StatsCacheTTL)
	} else {
		d.Redis = store.NewRedis(cfg.RedisAddr)
		d.Queue = queue.NewRedisQueue(d.Redis.Client, queue.DefaultKey, log)
		cache = visitor.NewRedisStatsCache(d.Redis.Client, cfg.StatsCacheTTL)
		if !d.Redis.Healthy(ctx) {
			log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable; stats cache and events degraded")
		}
	}

	repo := visitor.NewRepository(db.Client, db.Flavor)
	d.Visitors = visitor.NewService(repo, cache, d.Queue, cfg.Location(), log)
	d.Devices = device.NewRepository(db.Client, db.Flavor)
	return d, nil
}

// Consumers returns the queue handlers that keep derived state fresh.
func (d *Deps) Consumers() map[string]queue.Handler {
	return map[string]queue.Handler{
		visitor.EventChanged: func(ctx context.Context, msg queue.Message) error {
			d.Visitors.InvalidateStats(ctx)
			d.Log.WithField("event", string(msg.Body)).Debug("visitor list changed")
			return nil
		},
	}
}

// Close releases every connection.
func (d *Deps) Close() {
	if err := d.Redis.Close(); err != nil {
		d.Log.WithError(err).Warn("close redis")
	}
	if err := d.DB.Close(); err != nil {
		d.Log.WithError(err).Warn("close database")
	}
}

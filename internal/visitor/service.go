package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dcvisitor/internal/metrics"
	"dcvisitor/internal/queue"
)

// EventChanged is published whenever the visitor table changes.
const EventChanged = "visitors.changed"

// ChangeEvent is the body of an EventChanged message.
type ChangeEvent struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids,omitempty"`
	Count  int64    `json:"count"`
}

// Store is the record store the service runs against.
type Store interface {
	Insert(ctx context.Context, records []NewRecord) ([]Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int64, error)
	Update(ctx context.Context, id string, p Patch) error
	Checkout(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Publisher sends change notifications; queue.Queue satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service coordinates visitor CRUD, stats and change notifications.
type Service struct {
	store  Store
	cache  StatsCache
	events Publisher
	loc    *time.Location
	now    func() time.Time
	log    logrus.FieldLogger
}

// NewService creates a service. cache and events may be nil.
func NewService(store Store, cache StatsCache, events Publisher, loc *time.Location, log logrus.FieldLogger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, cache: cache, events: events, loc: loc, now: time.Now, log: log}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location is the zone used for "today" and for export timestamps.
func (s *Service) Location() *time.Location { return s.loc }

// InsertBatch stores records atomically and announces them.
func (s *Service) InsertBatch(ctx context.Context, records []NewRecord) ([]Record, error) {
	stored, err := s.store.Insert(ctx, records)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(stored))
	for i, r := range stored {
		ids[i] = r.ID
	}
	s.changed(ctx, ChangeEvent{Action: "registered", IDs: ids, Count: int64(len(stored))})
	return stored, nil
}

// List queries the store for status and date range, then applies the
// remaining predicates (search) locally.
func (s *Service) List(ctx context.Context, c Criteria) ([]Record, error) {
	records, err := s.store.List(ctx, Query{Status: c.Status, Range: c.Range})
	if err != nil {
		return nil, err
	}
	return c.Apply(records), nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// Update edits descriptive fields of one record.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, p); err != nil {
		return nil, err
	}
	s.changed(ctx, ChangeEvent{Action: "updated", IDs: []string{id}, Count: 1})
	return s.store.Get(ctx, id)
}

// Checkout stamps the exit time with now.
func (s *Service) Checkout(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if err := s.store.Checkout(ctx, id, s.now()); err != nil {
		return nil, err
	}
	metrics.Checkouts.Inc()
	s.changed(ctx, ChangeEvent{Action: "checked_out", IDs: []string{id}, Count: 1})
	return s.store.Get(ctx, id)
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, ChangeEvent{Action: "deleted", IDs: []string{id}, Count: 1})
	return nil
}

// ClearOlderThan removes records created more than days ago.
func (s *Service) ClearOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	cutoff := s.now().AddDate(0, 0, -days)
	n, err := s.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"cutoff": cutoff, "deleted": n}).Info("cleared old visitor records")
	s.changed(ctx, ChangeEvent{Action: "purged", Count: n})
	return n, nil
}

// ClearAll removes every record.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.WithField("deleted", n).Warn("cleared all visitor records")
	s.changed(ctx, ChangeEvent{Action: "purged", Count: n})
	return n, nil
}

// Stats returns total, active and today's counts, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now()
	today := DayRange(now, s.loc)
	day := today.Start.Format("2006-01-02")

	if s.cache != nil {
		if st, ok := s.cache.Get(ctx); ok && st.Day == day {
			return st, nil
		}
	}

	total, err := s.store.Count(ctx, Query{})
	if err != nil {
		return Stats{}, err
	}
	active, err := s.store.Count(ctx, Query{Status: StatusActive})
	if err != nil {
		return Stats{}, err
	}
	todayCount, err := s.store.Count(ctx, Query{Range: &today})
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Total: total, Active: active, Today: todayCount, Day: day, AsOf: now}
	if s.cache != nil {
		s.cache.Set(ctx, st)
	}
	return st, nil
}

// InvalidateStats drops cached stats; called by change-event consumers.
func (s *Service) InvalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Service) changed(ctx context.Context, evt ChangeEvent) {
	s.InvalidateStats(ctx)
	if s.events == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		s.log.WithError(err).Error("encode change event")
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: EventChanged, Body: body}); err != nil {
		s.log.WithError(err).Warn("queue publish failed")
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Package historian drains lobby journal events from a Redis queue and persists
// them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// maxPendingBatches bounds how much the service holds on to while the store is failing.
const maxPendingBatches = 10

// retryDelay is the pause after a Redis error other than an empty pop.
const retryDelay = time.Second

// Popper is the slice of the Redis client the service reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists a batch of events atomically.
type Store interface {
	SaveEvents(ctx context.Context, events []lobby.Event) error
}

// Service pops journal events and flushes them to the store once a batch fills up
// or the flush delay passes.
type Service struct {
	rdb        Popper
	store      Store
	queue      string
	batchSize  int
	flushDelay time.Duration
	log        logrus.FieldLogger

	batch     []lobby.Event
	lastFlush time.Time
	failing   bool // last flush failed; retry only after flushDelay
	saved     int
}

// New creates a service from the historian settings.
func New(rdb Popper, store Store, cfg config.Historian, logger logrus.FieldLogger) *Service {
	return &Service{
		rdb:        rdb,
		store:      store,
		queue:      cfg.EventsQueue,
		batchSize:  cfg.BatchSize,
		flushDelay: cfg.FlushDelay,
		log:        logger.WithField("queue", cfg.EventsQueue),
		batch:      make([]lobby.Event, 0, cfg.BatchSize),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("lobby historian started")
	s.lastFlush = time.Now()

	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			s.log.WithField("saved", s.saved).Info("lobby historian stopped")
			return
		}

		// BLPop's timeout doubles as the flush tick.
		res, err := s.rdb.BLPop(ctx, s.flushDelay, s.queue).Result()
		switch {
		case err == nil && len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			s.add(res[1])
		case err == nil, errors.Is(err, redis.Nil), ctx.Err() != nil:
		default:
			s.log.Errorf("BLPop: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
		}

		full := len(s.batch) >= s.batchSize && !s.failing
		if full || time.Since(s.lastFlush) >= s.flushDelay {
			s.flush(ctx)
		}
	}
}

// Saved reports how many events reached the store.
func (s *Service) Saved() int { return s.saved }

func (s *Service) add(payload string) {
	var ev lobby.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.Warnf("invalid journal event: %v", err)
		return
	}
	s.batch = append(s.batch, ev)
}

// flush hands the batch to the store. A failed batch is kept for the next attempt
// unless too much has piled up.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	batchCopy := make([]lobby.Event, len(s.batch))
	copy(batchCopy, s.batch)
	if err := s.store.SaveEvents(ctx, batchCopy); err != nil {
		s.failing = true
		s.log.Errorf("flushing %d events: %v", len(s.batch), err)
		if limit := s.batchSize * maxPendingBatches; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.Warnf("dropped %d oldest events while the store is failing", dropped)
		}
		return
	}
	s.failing = false
	s.saved += len(s.batch)
	s.log.Debugf("flushed %d events", len(s.batch))
	s.batch = s.batch[:0]
}

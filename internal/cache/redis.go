// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is how many journal events may wait for Redis before new ones are dropped.
const DefaultBuffer = 1024

// drainTimeout bounds the final flush when Run is stopped.
const drainTimeout = 2 * time.Second

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Pusher is the slice of the Redis client the journal needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Journal publishes lobby events to a Redis list for the historian. Record never
// blocks: events wait in a buffer that Run drains, and overflow is dropped.
type Journal struct {
	client Pusher
	queue  string
	log    logrus.FieldLogger
	events chan lobby.Event

	published atomic.Int64
	dropped   atomic.Int64
}

// NewJournal creates a journal pushing to the named list.
func NewJournal(client Pusher, queue string, buffer int, logger logrus.FieldLogger) *Journal {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Journal{
		client: client,
		queue:  queue,
		log:    logger.WithField("queue", queue),
		events: make(chan lobby.Event, buffer),
	}
}

// Record queues ev for publishing.
func (j *Journal) Record(ev lobby.Event) {
	select {
	case j.events <- ev:
	default:
		n := j.dropped.Add(1)
		j.log.Warnf("journal buffer full, dropped %s event (%d dropped so far)", ev.Kind, n)
	}
}

// Run publishes buffered events until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case ev := <-j.events:
			j.publish(ctx, ev)
		case <-ctx.Done():
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-j.events:
			j.publish(ctx, ev)
		default:
			return
		}
	}
}

// publish serializes ev to JSON and pushes it onto the queue.
func (j *Journal) publish(ctx context.Context, ev lobby.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		j.dropped.Add(1)
		j.log.Errorf("failed to marshal journal event: %v", err)
		return
	}
	if err := j.client.RPush(ctx, j.queue, data).Err(); err != nil {
		j.dropped.Add(1)
		j.log.WithField("event", ev.Kind).Warnf("failed to RPush journal event: %v", err)
		return
	}
	j.published.Add(1)
}

// Published reports how many events reached Redis.
func (j *Journal) Published() int64 { return j.published.Load() }

// Dropped reports how many events were lost to a full buffer or a Redis error.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

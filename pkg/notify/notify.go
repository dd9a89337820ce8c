package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/marigold-cafe/pos-backend/pkg/recon"
)

const defaultQueueKey = "notifications:outbound"

// Queue is the fire-and-forget notifier: Notify never blocks the caller and
// never reports failure upward. A single worker drains the channel into a
// redis list that the mailer consumes; with no redis configured the
// notification is logged and dropped, mirroring how the rest of the service
// degrades without redis.
type Queue struct {
	rdb  *redis.Client
	key  string
	ch   chan recon.Notification
	done chan struct{}
}

func NewQueue(rdb *redis.Client, key string) *Queue {
	if key == "" {
		key = defaultQueueKey
	}
	q := &Queue{
		rdb:  rdb,
		key:  key,
		ch:   make(chan recon.Notification, 256),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Notify enqueues without blocking. When the buffer is full the notification
// is dropped and logged; reconciliation has already succeeded by the time we
// get here.
func (q *Queue) Notify(n recon.Notification) {
	select {
	case q.ch <- n:
	default:
		log.Warn().Str("kind", n.Kind).Str("order_id", n.OrderID).Msg("notification queue full, dropping")
	}
}

// Close drains outstanding notifications and stops the worker.
func (q *Queue) Close() {
	close(q.ch)
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for n := range q.ch {
		q.deliver(n)
	}
}

func (q *Queue) deliver(n recon.Notification) {
	if q.rdb == nil {
		log.Info().
			Str("kind", n.Kind).
			Str("order_id", n.OrderID).
			Str("status", string(n.Status)).
			Msg("notification (no outbound queue configured)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	b, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Msg("notification marshal failed")
		return
	}
	if err := q.rdb.LPush(ctx, q.key, b).Err(); err != nil {
		log.Error().Err(err).Str("kind", n.Kind).Str("order_id", n.OrderID).Msg("notification enqueue failed")
	}
}

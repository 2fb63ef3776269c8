package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
	Subscribe(runID string) chan SolutionEvent
	Unsubscribe(runID string, ch chan SolutionEvent)
	Publish(runID string, evt SolutionEvent)
}

var (
	_ EventBroker = (*Broker)(nil)
	_ EventBroker = (*RedisBroker)(nil)
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that several API
// replicas can stream the same run.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan SolutionEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), subs: map[chan SolutionEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Subscribe(runID string) chan SolutionEvent {
	ch := make(chan SolutionEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(runID))
	// wait for the subscription to be confirmed so no publish is missed
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt SolutionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				slog.Warn("redis broker: bad event", "run", runID, "err", err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Redis subscription; ch is closed once its reader
// goroutine drains.
func (b *RedisBroker) Unsubscribe(runID string, ch chan SolutionEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(runID string, evt SolutionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	if err := b.rdb.Publish(ctx, b.chanName(runID), data).Err(); err != nil {
		slog.Warn("redis broker: publish", "run", runID, "err", err)
	}
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(runID string) string { return "run:" + runID }

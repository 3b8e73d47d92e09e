package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dronematch/internal/logger"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that every
// replica can stream matches solved by any other.
type RedisBroker struct {
	rdb *redis.Client
	log logger.Logger

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

func NewRedisBroker(url string, log logger.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return newRedisBroker(redis.NewClient(opt), log), nil
}

func newRedisBroker(rdb *redis.Client, log logger.Logger) *RedisBroker {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &RedisBroker{rdb: rdb, log: log, subs: map[chan Event]*redis.PubSub{}}
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Subscribe(matchID string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(matchID))
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warnf("redis subscribe %s: %v", matchID, err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warnf("redis event decode: %v", err)
				continue
			}
			b.mu.Lock()
			_, live := b.subs[ch]
			if live {
				deliver(ch, evt)
			}
			b.mu.Unlock()
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(matchID string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	if ok {
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(matchID string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Errorf("redis event encode: %v", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(matchID), data).Err(); err != nil {
		b.log.Warnf("redis publish %s: %v", matchID, err)
	}
}

// Close releases the client.
func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(matchID string) string { return "match:" + matchID }

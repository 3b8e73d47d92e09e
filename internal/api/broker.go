package api

import (
	"sync"

	"dronematch/internal/opt"
	"dronematch/internal/store"
)

// Event types fanned out per match.
const (
	EventMonitor  = "match.monitor"
	EventFinished = "match.finished"
)

// Event is one notification about a match.
type Event struct {
	Type   string             `json:"type"`
	Record *opt.MonitorRecord `json:"record,omitempty"`
	Match  *store.Match       `json:"match,omitempty"`
}

// EventBroker fans match events out to subscribers keyed by match id.
type EventBroker interface {
	Subscribe(matchID string) chan Event
	Unsubscribe(matchID string, ch chan Event)
	Publish(matchID string, evt Event)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather
// than block the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // matchId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(matchID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[matchID] == nil {
		b.subs[matchID] = map[chan Event]struct{}{}
	}
	b.subs[matchID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(matchID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[matchID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, matchID)
	}
	close(ch)
}

func (b *Broker) Publish(matchID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[matchID] {
		deliver(ch, evt)
	}
}

// deliver hands evt to ch without blocking. A full buffer drops monitor
// samples, but a finish event evicts the oldest queued sample instead, since
// subscribers wait on it to end their stream.
func deliver(ch chan Event, evt Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	if evt.Type != EventFinished {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}

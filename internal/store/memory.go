package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dronematch/internal/opt"
)

// Memory is a simple in-memory store used when no database url is set.
type Memory struct {
	mu      sync.Mutex
	matches map[string]Match               // id -> match
	order   []string                       // ids in creation order
	monitor map[string][]opt.MonitorRecord // match id -> samples
	cfg     *opt.MatchConfig
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		matches: map[string]Match{},
		monitor: map[string][]opt.MonitorRecord{},
		now:     time.Now,
	}
}

func (m *Memory) CreateMatch(ctx context.Context, in Match) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Status == "" {
		in.Status = MatchRunning
	}
	ts := m.now().UTC()
	in.CreatedAt, in.UpdatedAt = ts, ts
	m.matches[in.ID] = in
	m.order = append(m.order, in.ID)
	return in, nil
}

func (m *Memory) UpdateMatch(ctx context.Context, in Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.matches[in.ID]
	if !ok {
		return ErrNotFound
	}
	in.CreatedAt = cur.CreatedAt
	in.UpdatedAt = m.now().UTC()
	m.matches[in.ID] = in
	return nil
}

func (m *Memory) GetMatch(ctx context.Context, id string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.matches[id]
	if !ok {
		return Match{}, ErrNotFound
	}
	return r, nil
}

// ListMatches pages through matches in creation order. The cursor is the id
// of the last item of the previous page.
func (m *Memory) ListMatches(ctx context.Context, status, cursor string, limit int) ([]Match, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out := []Match{}
	var next string
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		r := m.matches[m.order[i]]
		if status == "" || r.Status == status {
			out = append(out, r)
		}
		next = m.order[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) AppendMonitorRecords(ctx context.Context, matchID string, recs []opt.MonitorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[matchID]; !ok {
		return ErrNotFound
	}
	m.monitor[matchID] = append(m.monitor[matchID], recs...)
	return nil
}

func (m *Memory) ListMonitorRecords(ctx context.Context, matchID string) ([]opt.MonitorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[matchID]; !ok {
		return nil, ErrNotFound
	}
	return append([]opt.MonitorRecord{}, m.monitor[matchID]...), nil
}

func (m *Memory) GetMatchConfig(ctx context.Context) (*opt.MatchConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, nil
	}
	c := *m.cfg
	return &c, nil
}

func (m *Memory) SaveMatchConfig(ctx context.Context, cfg opt.MatchConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = &cfg
	return nil
}

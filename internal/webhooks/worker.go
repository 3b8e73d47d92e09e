package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"dronematch/internal/logger"
)

// Delivery is one queued webhook call.
type Delivery struct {
	ID            string
	EventType     string
	URL           string
	Secret        string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
}

// Worker posts queued deliveries, retrying failures with exponential backoff
// until MaxAttempts is reached.
type Worker struct {
	HTTP        *http.Client
	MaxAttempts int
	Log         logger.Logger

	mu    sync.Mutex
	queue []*Delivery
	stop  chan struct{}
	done  chan struct{}
	now   func() time.Time
}

func NewWorker(maxAttempts int, log logger.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Worker{
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log,
		now:         time.Now,
	}
}

// Enqueue schedules d for immediate delivery.
func (w *Worker) Enqueue(d Delivery) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.NextAttemptAt = w.now()
	w.mu.Lock()
	w.queue = append(w.queue, &d)
	w.mu.Unlock()
}

// Pending returns the number of deliveries still queued.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) Start() {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Stop ends the loop started by Start and waits for it.
func (w *Worker) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
	w.stop = nil
}

func (w *Worker) due() []*Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var out []*Delivery
	for _, d := range w.queue {
		if !d.NextAttemptAt.After(now) {
			out = append(out, d)
		}
	}
	return out
}

func (w *Worker) remove(d *Delivery) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, q := range w.queue {
		if q == d {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			return
		}
	}
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, it := range w.due() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
		if err != nil {
			w.Log.Errorf("webhook %s: %v", it.ID, err)
			w.remove(it)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(EventTypeHeader, it.EventType)
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
		}
		start := time.Now()
		resp, err := w.HTTP.Do(req)
		latency := time.Since(start)
		code := 0
		if err == nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
		}
		if err == nil && code >= 200 && code < 300 {
			w.Log.Debugw("webhook delivered", map[string]any{"id": it.ID, "type": it.EventType, "code": code, "latencyMs": latency.Milliseconds()})
			w.remove(it)
			continue
		}
		w.mu.Lock()
		it.Attempts++
		it.NextAttemptAt = w.now().Add(nextBackoff(it.Attempts - 1))
		exhausted := it.Attempts >= w.MaxAttempts
		w.mu.Unlock()
		if exhausted {
			w.Log.Warnf("webhook %s (%s) dropped after %d attempts: code %d err %v", it.ID, it.EventType, it.Attempts, code, err)
			w.remove(it)
		}
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

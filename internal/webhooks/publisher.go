package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Publisher turns service events into webhook deliveries for one endpoint.
// A nil Publisher drops every event.
type Publisher struct {
	URL    string
	Secret string
	Worker *Worker
}

func NewPublisher(url, secret string, w *Worker) *Publisher {
	if url == "" || w == nil {
		return nil
	}
	return &Publisher{URL: url, Secret: secret, Worker: w}
}

// Emit queues eventType with data as its payload.
func (p *Publisher) Emit(eventType string, data any) error {
	if p == nil {
		return nil
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.Worker.Enqueue(Delivery{EventType: eventType, URL: p.URL, Secret: p.Secret, Payload: body})
	return nil
}

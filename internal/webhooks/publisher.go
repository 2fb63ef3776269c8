package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vrptw/internal/store"
)

// Run lifecycle events delivered to a run's callback URL.
const (
	EventRunImproved = "run.improved"
	EventRunFinished = "run.finished"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Emit queues an event for the run's callback URL. Runs without one are
// skipped.
func (p *Publisher) Emit(ctx context.Context, run store.Run, eventType string, data any) error {
	if run.CallbackURL == "" {
		return nil
	}
	payload := map[string]any{
		"id":    fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":  eventType,
		"runId": run.ID,
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"data":  data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", eventType, err)
	}
	if _, err := p.Store.EnqueueWebhook(ctx, run.ID, eventType, run.CallbackURL, run.CallbackSecret, body); err != nil {
		return fmt.Errorf("webhook %s: enqueue: %w", eventType, err)
	}
	return nil
}

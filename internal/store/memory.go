package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vrptw/internal/opt"
)

var _ Store = (*Memory)(nil)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	runs       map[string]*Run
	order      []string              // run ids, oldest first
	snaps      map[string][]Snapshot // run id -> snapshots
	metrics    map[string]opt.Metrics
	deliveries map[string]*WebhookDelivery
	queue      []string // delivery ids, enqueue order
	dedup      map[string]string
	dlq        []WebhookDelivery
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]*Run{},
		snaps:      map[string][]Snapshot{},
		metrics:    map[string]opt.Metrics{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]string{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	run.ID = uuid.New().String()
	if run.Status == "" {
		run.Status = RunRunning
	}
	run.CreatedAt, run.UpdatedAt = now, now
	m.runs[run.ID] = &run
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	if r == nil {
		return Run{}, ErrNotFound
	}
	return *r, nil
}

// ListRuns returns the newest runs first, optionally filtered by status.
func (m *Memory) ListRuns(ctx context.Context, status RunStatus, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out := []Run{}
	for _, id := range slices.Backward(m.order) {
		r := m.runs[id]
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) FinishRun(ctx context.Context, id string, status RunStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	if r == nil {
		return ErrNotFound
	}
	if !status.Terminal() {
		return fmt.Errorf("finish run %s: status %q is not terminal", id, status)
	}
	now := time.Now().UTC()
	r.Status, r.LastError, r.UpdatedAt, r.FinishedAt = status, lastError, now, &now
	return nil
}

func (m *Memory) SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[snap.RunID]
	if r == nil {
		return Snapshot{}, ErrNotFound
	}
	snap.ID = uuid.New().String()
	snap.CreatedAt = time.Now().UTC()
	m.snaps[snap.RunID] = append(m.snaps[snap.RunID], snap)
	r.BestRoutes, r.BestDistance = snap.Routes, snap.Distance
	r.Snapshots++
	r.UpdatedAt = snap.CreatedAt
	return snap, nil
}

func (m *Memory) LatestSnapshot(ctx context.Context, runID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snaps[runID]
	if len(s) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return s[len(s)-1], nil
}

// ListSnapshots returns up to limit of the most recent snapshots, oldest first.
func (m *Memory) ListSnapshots(ctx context.Context, runID string, limit int) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	s := m.snaps[runID]
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	return slices.Clone(s), nil
}

func (m *Memory) SaveRunMetrics(ctx context.Context, runID string, mx opt.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	m.metrics[runID] = mx
	return nil
}

func (m *Memory) GetRunMetrics(ctx context.Context, runID string) (opt.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mx, ok := m.metrics[runID]
	if !ok {
		return opt.Metrics{}, ErrNotFound
	}
	return mx, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := runID + "|" + eventType + "|" + url + "|" + computeDedupKey(payload)
	if id, dup := m.dedup[key]; dup {
		return id, nil
	}
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{
		ID: id, RunID: runID, EventType: eventType, URL: url, Secret: secret,
		Payload: payload, Status: "pending", NextAttemptAt: time.Now(),
	}
	m.queue = append(m.queue, id)
	m.dedup[key] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError, d.ResponseCode, d.LatencyMs = lastError, responseCode, latencyMs
	m.dlq = append(m.dlq, *d)
	return nil
}

// Delivery returns a copy of one delivery's state.
func (m *Memory) Delivery(id string) (WebhookDelivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return WebhookDelivery{}, false
	}
	return *d, true
}

// DeadLetters returns the deliveries that exhausted their attempts.
func (m *Memory) DeadLetters() []WebhookDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.dlq)
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

package store

import (
	"context"
	"errors"
	"time"

	"vrptw/internal/opt"
)

// Store persists solver runs, their improving solutions and the callback
// deliveries they trigger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, status RunStatus, limit int) ([]Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, lastError string) error

	// Snapshots are the solutions a run emitted, in emission order.
	SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
	LatestSnapshot(ctx context.Context, runID string) (Snapshot, error)
	ListSnapshots(ctx context.Context, runID string, limit int) ([]Snapshot, error)

	// Metrics
	SaveRunMetrics(ctx context.Context, runID string, m opt.Metrics) error
	GetRunMetrics(ctx context.Context, runID string) (opt.Metrics, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether no more snapshots will be added to the run.
func (s RunStatus) Terminal() bool { return s != RunRunning && s != "" }

type Run struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Strategy       string     `json:"strategy"`
	Seed           int64      `json:"seed,omitempty"`
	Customers      int        `json:"customers"`
	Vehicles       int        `json:"vehicles"`
	Status         RunStatus  `json:"status"`
	TimeoutMs      int64      `json:"timeoutMs"`
	CallbackURL    string     `json:"callbackUrl,omitempty"`
	CallbackSecret string     `json:"-"`
	BestRoutes     int        `json:"bestRoutes"`
	BestDistance   float64    `json:"bestDistance"`
	Snapshots      int        `json:"snapshots"`
	LastError      string     `json:"lastError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Snapshot is one emitted solution. Body is the solution's text rendering;
// Detail is its JSON view.
type Snapshot struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Seq       int       `json:"seq"`
	Routes    int       `json:"routes"`
	Distance  float64   `json:"distance"`
	Body      string    `json:"body"`
	Detail    []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vrptw/internal/opt"
)

//go:embed schema.sql
var schema string

var _ Store = (*Postgres)(nil)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the tables the store uses if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const runColumns = `id::text, name, strategy, seed, customers, vehicles, status, timeout_ms,
	COALESCE(callback_url,''), COALESCE(callback_secret,''), best_routes, best_distance, snapshots,
	COALESCE(last_error,''), created_at, updated_at, finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (Run, error) {
	var r Run
	var status string
	var finished sql.NullTime
	err := s.Scan(&r.ID, &r.Name, &r.Strategy, &r.Seed, &r.Customers, &r.Vehicles, &status, &r.TimeoutMs,
		&r.CallbackURL, &r.CallbackSecret, &r.BestRoutes, &r.BestDistance, &r.Snapshots,
		&r.LastError, &r.CreatedAt, &r.UpdatedAt, &finished)
	if err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.New().String()
	if run.Status == "" {
		run.Status = RunRunning
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO runs (id, name, strategy, seed, customers, vehicles, status, timeout_ms, callback_url, callback_secret)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+runColumns,
		run.ID, run.Name, run.Strategy, run.Seed, run.Customers, run.Vehicles, string(run.Status), run.TimeoutMs,
		nullIfEmpty(run.CallbackURL), nullIfEmpty(run.CallbackSecret))
	return scanRun(row)
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Run{}, ErrNotFound
	}
	r, err := scanRun(p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, status RunStatus, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE status=$1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) FinishRun(ctx context.Context, id string, status RunStatus, lastError string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run %s: status %q is not terminal", id, status)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, last_error=$3, finished_at=now(), updated_at=now() WHERE id=$1`,
		id, string(status), nullIfEmpty(lastError))
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (p *Postgres) SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	snap.ID = uuid.New().String()
	var detail any
	if len(snap.Detail) > 0 {
		detail = snap.Detail
	}
	err = tx.QueryRowContext(ctx, `INSERT INTO run_snapshots (id, run_id, seq, routes, distance, body, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		snap.ID, snap.RunID, snap.Seq, snap.Routes, snap.Distance, snap.Body, detail).Scan(&snap.CreatedAt)
	if err != nil {
		return Snapshot{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE runs SET best_routes=$2, best_distance=$3, snapshots=snapshots+1, updated_at=now() WHERE id=$1`,
		snap.RunID, snap.Routes, snap.Distance)
	if err != nil {
		return Snapshot{}, err
	}
	if err := expectRow(res); err != nil {
		return Snapshot{}, err
	}
	return snap, tx.Commit()
}

const snapshotColumns = `id::text, run_id::text, seq, routes, distance, body, COALESCE(detail::text,''), created_at`

func scanSnapshot(s scanner) (Snapshot, error) {
	var sn Snapshot
	var detail string
	if err := s.Scan(&sn.ID, &sn.RunID, &sn.Seq, &sn.Routes, &sn.Distance, &sn.Body, &detail, &sn.CreatedAt); err != nil {
		return Snapshot{}, err
	}
	if detail != "" {
		sn.Detail = []byte(detail)
	}
	return sn, nil
}

func (p *Postgres) LatestSnapshot(ctx context.Context, runID string) (Snapshot, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return Snapshot{}, ErrNotFound
	}
	sn, err := scanSnapshot(p.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM run_snapshots WHERE run_id=$1 ORDER BY seq DESC LIMIT 1`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return sn, err
}

func (p *Postgres) ListSnapshots(ctx context.Context, runID string, limit int) ([]Snapshot, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.db.QueryContext(ctx, `SELECT * FROM (SELECT `+snapshotColumns+` FROM run_snapshots WHERE run_id=$1 ORDER BY seq DESC LIMIT $2) s ORDER BY seq ASC`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Snapshot{}
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveRunMetrics(ctx context.Context, runID string, m opt.Metrics) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO run_metrics (run_id, metrics) VALUES ($1,$2)
		ON CONFLICT (run_id) DO UPDATE SET metrics=EXCLUDED.metrics, recorded_at=now()`, runID, b)
	return err
}

func (p *Postgres) GetRunMetrics(ctx context.Context, runID string) (opt.Metrics, error) {
	var m opt.Metrics
	if _, err := uuid.Parse(runID); err != nil {
		return m, ErrNotFound
	}
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT metrics FROM run_metrics WHERE run_id=$1`, runID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	return m, json.Unmarshal(b, &m)
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
		ON CONFLICT (run_id, event_type, url, dedup_key) DO NOTHING`, id, runID, eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
		id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, delivery_id, run_id, event_type, url, payload, attempts, last_error)
		SELECT $3, id, run_id, event_type, url, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`,
		id, nullIfEmpty(lastError), uuid.New().String())
	if err != nil {
		return err
	}
	return tx.Commit()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

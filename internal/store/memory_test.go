package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"vrptw/internal/opt"
)

func TestMemoryRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, err := m.CreateRun(ctx, Run{Name: "c101", Strategy: "tabu", Customers: 3})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID == "" || run.Status != RunRunning || run.CreatedAt.IsZero() {
		t.Fatalf("unexpected run %+v", run)
	}

	for i, routes := range []int{3, 2} {
		if _, err := m.SaveSnapshot(ctx, Snapshot{RunID: run.ID, Seq: i + 1, Routes: routes, Distance: float64(10 * routes)}); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	latest, err := m.LatestSnapshot(ctx, run.ID)
	if err != nil || latest.Seq != 2 {
		t.Fatalf("LatestSnapshot: %+v %v", latest, err)
	}
	snaps, err := m.ListSnapshots(ctx, run.ID, 1)
	if err != nil || len(snaps) != 1 || snaps[0].Seq != 2 {
		t.Fatalf("ListSnapshots(1): %+v %v", snaps, err)
	}
	got, _ := m.GetRun(ctx, run.ID)
	if got.BestRoutes != 2 || got.BestDistance != 20 || got.Snapshots != 2 {
		t.Fatalf("run best not tracked: %+v", got)
	}

	if err := m.FinishRun(ctx, run.ID, RunRunning, ""); err == nil {
		t.Fatalf("running is not a terminal status")
	}
	if err := m.FinishRun(ctx, run.ID, RunCancelled, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ = m.GetRun(ctx, run.ID)
	if got.Status != RunCancelled || got.FinishedAt == nil {
		t.Fatalf("run not finished: %+v", got)
	}
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetRun(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun: %v", err)
	}
	if _, err := m.LatestSnapshot(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if _, err := m.SaveSnapshot(ctx, Snapshot{RunID: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := m.GetRunMetrics(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRunMetrics: %v", err)
	}
	if err := m.FinishRun(ctx, "x", RunFailed, "boom"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FinishRun: %v", err)
	}
}

func TestMemoryListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, _ := m.CreateRun(ctx, Run{Name: "a"})
	b, _ := m.CreateRun(ctx, Run{Name: "b"})
	if err := m.FinishRun(ctx, a.ID, RunSucceeded, ""); err != nil {
		t.Fatal(err)
	}
	all, _ := m.ListRuns(ctx, "", 0)
	if len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("unexpected order %+v", all)
	}
	done, _ := m.ListRuns(ctx, RunSucceeded, 10)
	if len(done) != 1 || done[0].ID != a.ID {
		t.Fatalf("status filter failed %+v", done)
	}
}

func TestMemoryRunMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	run, _ := m.CreateRun(ctx, Run{Name: "a"})
	want := opt.Metrics{Iterations: 10, Emitted: 2, BestRoutes: 3}
	if err := m.SaveRunMetrics(ctx, run.ID, want); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetRunMetrics(ctx, run.ID)
	if err != nil || got != want {
		t.Fatalf("GetRunMetrics = %+v, %v", got, err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	payload := []byte(`{"id":"evt_1"}`)
	id, err := m.EnqueueWebhook(ctx, "run", "run.finished", "http://x", "s", payload)
	if err != nil {
		t.Fatal(err)
	}
	if dup, _ := m.EnqueueWebhook(ctx, "run", "run.finished", "http://x", "s", payload); dup != id {
		t.Fatalf("duplicate payload should reuse delivery %s, got %s", id, dup)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due = %+v", due)
	}

	later := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &later, "503", 503, 5); err != nil {
		t.Fatal(err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry should not be due yet: %+v", due)
	}
	d, _ := m.Delivery(id)
	if d.Attempts != 1 || d.Status != "retry" || d.LastError != "503" {
		t.Fatalf("unexpected delivery %+v", d)
	}

	if err := m.FailWebhookDelivery(ctx, id, "gave up", 500, 7); err != nil {
		t.Fatal(err)
	}
	if dl := m.DeadLetters(); len(dl) != 1 || dl[0].ID != id || dl[0].Status != "failed" {
		t.Fatalf("dead letters = %+v", dl)
	}
}

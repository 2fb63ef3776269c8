package api

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"vrptw/internal/model"
	"vrptw/internal/opt"
	"vrptw/internal/store"
)

// recordingBroker keeps every published event.
type recordingBroker struct {
	mu     sync.Mutex
	events []SolutionEvent
}

func (b *recordingBroker) Subscribe(string) chan SolutionEvent    { return make(chan SolutionEvent) }
func (b *recordingBroker) Unsubscribe(string, chan SolutionEvent) {}
func (b *recordingBroker) Publish(_ string, evt SolutionEvent) {
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

func (b *recordingBroker) finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range b.events {
		if evt.Type == EventFinished {
			return true
		}
	}
	return false
}

func randomInstance(seed int64, n int) *model.Instance {
	rng := rand.New(rand.NewSource(seed))
	inst := &model.Instance{
		Name:     "random",
		Vehicles: n,
		Capacity: 40,
		Depot:    &model.Customer{ID: 0, Position: model.Point{X: 25, Y: 25}, DueTime: 1000},
	}
	for i := 1; i <= n; i++ {
		ready := rng.Intn(400)
		inst.Customers = append(inst.Customers, &model.Customer{
			ID:          i,
			Position:    model.Point{X: float64(rng.Intn(51)), Y: float64(rng.Intn(51))},
			Demand:      1 + rng.Intn(10),
			ReadyTime:   ready,
			DueTime:     ready + 100 + rng.Intn(300),
			ServiceTime: 10,
		})
	}
	return inst
}

func better(a, b SolutionEvent) bool {
	return a.Routes < b.Routes || (a.Routes == b.Routes && a.Distance < b.Distance)
}

func TestRunnerReportsBestOfGraspRun(t *testing.T) {
	ctx := context.Background()
	for _, seed := range []int64{4, 10} {
		mem := store.NewMemory()
		broker := &recordingBroker{}
		rn := NewRunner(mem, broker, nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

		inst := randomInstance(seed, 40)
		run, err := mem.CreateRun(ctx, store.Run{Name: inst.Name, Strategy: "grasp", Customers: len(inst.Customers)})
		if err != nil {
			t.Fatalf("create run: %v", err)
		}
		g := &opt.Grasp{Iterations: 10, MaxRCLSize: 5, Timeout: 50 * time.Millisecond, Seed: seed}
		rn.Start(run, inst, g, 300*time.Millisecond)

		// the finished event is published after the run is recorded
		deadline := time.Now().Add(5 * time.Second)
		for !broker.finished() {
			if time.Now().After(deadline) {
				t.Fatalf("seed %d: run did not finish", seed)
			}
			time.Sleep(10 * time.Millisecond)
		}
		if run, err = mem.GetRun(ctx, run.ID); err != nil {
			t.Fatalf("get run: %v", err)
		}

		broker.mu.Lock()
		var best, finished SolutionEvent
		n := 0
		for _, evt := range broker.events {
			switch evt.Type {
			case EventSolution:
				if n == 0 || better(evt, best) {
					best = evt
				}
				n++
			case EventFinished:
				finished = evt
			}
		}
		broker.mu.Unlock()
		if n == 0 {
			t.Fatalf("seed %d: no solutions published", seed)
		}

		snap, err := mem.LatestSnapshot(ctx, run.ID)
		if err != nil {
			t.Fatalf("latest snapshot: %v", err)
		}
		if snap.Routes != best.Routes || snap.Distance != best.Distance || snap.Seq != best.Seq {
			t.Fatalf("seed %d: latest snapshot #%d %d/%.2f, best emission #%d %d/%.2f",
				seed, snap.Seq, snap.Routes, snap.Distance, best.Seq, best.Routes, best.Distance)
		}
		if run.BestRoutes != best.Routes || run.BestDistance != best.Distance {
			t.Fatalf("seed %d: run best %d/%.2f, want %d/%.2f", seed, run.BestRoutes, run.BestDistance, best.Routes, best.Distance)
		}
		if finished.Routes != best.Routes || finished.Distance != best.Distance {
			t.Fatalf("seed %d: finished event %d/%.2f, want %d/%.2f", seed, finished.Routes, finished.Distance, best.Routes, best.Distance)
		}
		m, err := mem.GetRunMetrics(ctx, run.ID)
		if err != nil {
			t.Fatalf("metrics: %v", err)
		}
		if m.BestRoutes != best.Routes || m.BestDistance != best.Distance {
			t.Fatalf("seed %d: metrics best %d/%.2f, want %d/%.2f", seed, m.BestRoutes, m.BestDistance, best.Routes, best.Distance)
		}
	}
}

func TestRunnerWithoutTimeoutRunsUntilCancel(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	broker := &recordingBroker{}
	rn := NewRunner(mem, broker, nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	inst := randomInstance(1, 10)
	run, err := mem.CreateRun(ctx, store.Run{Name: inst.Name, Strategy: "tabu"})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	rn.Start(run, inst, opt.NewTabu(), 0)

	time.Sleep(50 * time.Millisecond)
	if _, live := rn.Metrics(run.ID); !live {
		t.Fatalf("run without timeout should still be active")
	}
	if !rn.Cancel(run.ID) {
		t.Fatalf("cancel: run not active")
	}
	if err := rn.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	got, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != store.RunCancelled {
		t.Fatalf("status: got %s", got.Status)
	}
}

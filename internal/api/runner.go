package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vrptw/internal/metrics"
	"vrptw/internal/model"
	"vrptw/internal/opt"
	"vrptw/internal/store"
	"vrptw/internal/webhooks"
)

// Runner executes solver runs in the background. Every emitted solution is
// published to the broker. Improvements on the run's best are persisted and
// trigger callbacks, throttled to PersistEvery; the best solution of a run
// is always stored.
type Runner struct {
	Store        store.Store
	Broker       EventBroker
	Pub          *webhooks.Publisher
	Log          *slog.Logger
	PersistEvery time.Duration

	mu     sync.Mutex
	active map[string]*activeRun
	wg     sync.WaitGroup
}

type activeRun struct {
	cancel    context.CancelFunc
	stream    *opt.Stream
	cancelled bool
}

func NewRunner(s store.Store, b EventBroker, pub *webhooks.Publisher, persistEvery time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Store: s, Broker: b, Pub: pub, Log: log, PersistEvery: persistEvery, active: map[string]*activeRun{}}
}

// Start launches strategy on inst for run. The search stops after timeout,
// on Cancel or when the strategy ends by itself.
func (rn *Runner) Start(run store.Run, inst *model.Instance, strategy opt.Strategy, timeout time.Duration) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	st := strategy.Solve(ctx, inst)
	ar := &activeRun{cancel: cancel, stream: st}
	rn.mu.Lock()
	rn.active[run.ID] = ar
	rn.mu.Unlock()

	rn.wg.Add(1)
	go func() {
		defer rn.wg.Done()
		defer cancel()
		rn.consume(ctx, run, st, ar)
	}()
}

func (rn *Runner) consume(ctx context.Context, run store.Run, st *opt.Stream, ar *activeRun) {
	log := rn.Log.With("run", run.ID, "strategy", run.Strategy)
	begin := time.Now()
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rn.PersistEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(rn.PersistEvery), 1)
	}
	// persistence outlives the search context
	bg := context.Background()

	// Subscribers see every emission; only solutions that beat the
	// incumbent are stored, so the latest snapshot is always the best.
	seq, pendingSeq := 0, 0
	var incumbent, pending *model.Solution
	for sol := range st.C() {
		seq++
		rn.Broker.Publish(run.ID, SolutionEvent{
			Type: EventSolution, RunID: run.ID, Seq: seq,
			Routes: sol.RouteCount(), Distance: sol.Distance(), Body: sol.String(),
		})
		if incumbent != nil && !sol.Less(incumbent) {
			continue
		}
		incumbent = sol
		if !limiter.Allow() {
			pending, pendingSeq = sol, seq
			continue
		}
		pending = nil
		rn.persist(bg, log, run, seq, sol)
	}
	if pending != nil {
		rn.persist(bg, log, run, pendingSeq, pending)
	}

	rn.mu.Lock()
	cancelled := ar.cancelled
	delete(rn.active, run.ID)
	rn.mu.Unlock()

	status, lastErr := store.RunSucceeded, ""
	switch {
	case st.Err() != nil:
		status, lastErr = store.RunFailed, st.Err().Error()
	case cancelled:
		status = store.RunCancelled
	case seq == 0:
		status, lastErr = store.RunFailed, opt.ErrNoSolution.Error()
	}
	m := st.Metrics()
	if err := rn.Store.SaveRunMetrics(bg, run.ID, m); err != nil {
		log.Error("save run metrics", "err", err)
	}
	if err := rn.Store.FinishRun(bg, run.ID, status, lastErr); err != nil {
		log.Error("finish run", "err", err)
	}
	metrics.RunDuration.WithLabelValues(run.Strategy, string(status)).Observe(time.Since(begin).Seconds())
	rn.Broker.Publish(run.ID, SolutionEvent{
		Type: EventFinished, RunID: run.ID, Seq: seq,
		Routes: m.BestRoutes, Distance: m.BestDistance, Status: string(status),
	})
	if rn.Pub != nil {
		data := map[string]any{"status": status, "routes": m.BestRoutes, "distance": m.BestDistance, "solutions": seq}
		if lastErr != "" {
			data["error"] = lastErr
		}
		if err := rn.Pub.Emit(bg, run, webhooks.EventRunFinished, data); err != nil {
			log.Error("enqueue callback", "err", err)
		}
	}
	log.Info("run finished", "status", status, "solutions", seq, "routes", m.BestRoutes,
		"distance", m.BestDistance, "iterations", m.Iterations, "elapsed", m.Elapsed, "deadline", errors.Is(ctx.Err(), context.DeadlineExceeded))
}

func (rn *Runner) persist(ctx context.Context, log *slog.Logger, run store.Run, seq int, sol *model.Solution) {
	view := model.View(sol)
	detail, err := json.Marshal(view.Detail)
	if err != nil {
		log.Error("encode solution", "err", err)
	}
	snap := store.Snapshot{RunID: run.ID, Seq: seq, Routes: view.Routes, Distance: view.Distance, Body: view.Text, Detail: detail}
	if _, err := rn.Store.SaveSnapshot(ctx, snap); err != nil {
		log.Error("save snapshot", "seq", seq, "err", err)
		return
	}
	if rn.Pub != nil {
		data := map[string]any{"seq": seq, "routes": view.Routes, "distance": view.Distance}
		if err := rn.Pub.Emit(ctx, run, webhooks.EventRunImproved, data); err != nil {
			log.Error("enqueue callback", "err", err)
		}
	}
}

// Cancel stops a running search. It reports false when the run is not
// active in this process.
func (rn *Runner) Cancel(runID string) bool {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	ar, ok := rn.active[runID]
	if !ok {
		return false
	}
	ar.cancelled = true
	ar.cancel()
	return true
}

// Metrics returns live counters of an active run.
func (rn *Runner) Metrics(runID string) (opt.Metrics, bool) {
	rn.mu.Lock()
	ar, ok := rn.active[runID]
	rn.mu.Unlock()
	if !ok {
		return opt.Metrics{}, false
	}
	return ar.stream.Metrics(), true
}

// Shutdown cancels all active runs and waits for them to be recorded, or
// for ctx to end.
func (rn *Runner) Shutdown(ctx context.Context) error {
	rn.mu.Lock()
	for _, ar := range rn.active {
		ar.cancelled = true
		ar.cancel()
	}
	rn.mu.Unlock()
	done := make(chan struct{})
	go func() {
		rn.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

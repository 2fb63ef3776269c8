package opt

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vrptw/internal/metrics"
	"vrptw/internal/model"
)

// ErrNoSolution is returned by SolveToCompletion when a stream ends without
// emitting anything and the context was not cancelled.
var ErrNoSolution = errors.New("opt: strategy produced no solution")

// Strategy searches an instance and streams every solution that improves on
// the ones it emitted before. Streams end on cancellation of ctx; Greedy is
// the only strategy that ends on its own.
type Strategy interface {
	Name() string
	Solve(ctx context.Context, inst *model.Instance) *Stream
}

// Metrics summarises one Solve call. BestRoutes and BestDistance describe
// the best solution emitted so far, which is not always the last one.
type Metrics struct {
	Iterations   int64
	Accepted     int64
	Infeasible   int64
	Rejected     int64
	Improvements int64
	Splits       int64
	Emitted      int64
	BestRoutes   int
	BestDistance float64
	Temperature  float64
	Elapsed      time.Duration
}

// Stream is the output of Strategy.Solve. Range over C until it is closed,
// then check Err: nil means the search stopped because ctx was cancelled
// (or, for finite strategies, because it was done).
type Stream struct {
	ch  chan *model.Solution
	err error
	tr  *tracker
}

func (s *Stream) C() <-chan *model.Solution { return s.ch }

// Err reports why the stream ended. Only valid once C is closed.
func (s *Stream) Err() error { return s.err }

// Metrics may be called at any time; counters are read atomically.
func (s *Stream) Metrics() Metrics { return s.tr.snapshot() }

// Best returns the best solution emitted so far, or nil.
func (s *Stream) Best() *model.Solution {
	s.tr.mu.Lock()
	defer s.tr.mu.Unlock()
	return s.tr.best
}

type emitFunc func(*model.Solution) bool

// start runs body on its own goroutine. Contract violations raised by the
// model end the stream with an error instead of crashing the process.
func start(ctx context.Context, name string, body func(ctx context.Context, t *tracker, emit emitFunc) error) *Stream {
	s := &Stream{ch: make(chan *model.Solution), tr: newTracker(name)}
	go func() {
		defer close(s.ch)
		defer s.tr.finish()
		s.err = s.run(ctx, body)
	}()
	return s
}

func (s *Stream) run(ctx context.Context, body func(context.Context, *tracker, emitFunc) error) (err error) {
	defer model.Recover(&err)
	return body(ctx, s.tr, func(sol *model.Solution) bool { return s.send(ctx, sol) })
}

func (s *Stream) send(ctx context.Context, sol *model.Solution) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.ch <- sol:
		s.tr.emitted(sol)
		return true
	case <-ctx.Done():
		return false
	}
}

// SolveToCompletion drains the stream of s and returns its last solution.
func SolveToCompletion(ctx context.Context, s Strategy, inst *model.Instance) (*model.Solution, error) {
	st := s.Solve(ctx, inst)
	var last *model.Solution
	for sol := range st.C() {
		last = sol
	}
	if err := st.Err(); err != nil {
		return last, err
	}
	if last == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoSolution
	}
	return last, nil
}

// bootstrap solves inst with initial (Greedy when nil) and emits the result.
// ok is false when the caller should stop without error.
func bootstrap(ctx context.Context, initial Strategy, inst *model.Instance, emit emitFunc) (sol *model.Solution, ok bool, err error) {
	if initial == nil {
		initial = Greedy{}
	}
	sol, err = SolveToCompletion(ctx, initial, inst)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !emit(sol) {
		return nil, false, nil
	}
	if len(inst.Customers) == 0 {
		// nothing to move; the stream stays open until cancelled
		<-ctx.Done()
		return nil, false, nil
	}
	return sol, true, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// randomRelocate tries to move a uniformly chosen customer to a uniformly
// chosen route and insertion index of cur.
func randomRelocate(rng *rand.Rand, inst *model.Instance, cur *model.Solution) (*model.Solution, bool) {
	c := inst.Customers[rng.Intn(len(inst.Customers))]
	r := cur.Route(rng.Intn(cur.RouteCount()))
	return cur.TryMove(c, r, 1+rng.Intn(r.Len()-1))
}

// tracker counts search events for one stream and mirrors them to Prometheus.
type tracker struct {
	begin time.Time

	iterations, accepted, infeasible, rejected, improvements, splits, emittedN atomic.Int64

	mu          sync.Mutex
	best        *model.Solution
	temperature float64
	elapsed     time.Duration

	iterC, acceptedC, infeasibleC, rejectedC, emittedC prometheus.Counter
	routesG, distanceG                                 prometheus.Gauge
}

func newTracker(strategy string) *tracker {
	return &tracker{
		begin:       time.Now(),
		iterC:       metrics.SolverIterations.WithLabelValues(strategy),
		acceptedC:   metrics.SolverMoves.WithLabelValues(strategy, "accepted"),
		infeasibleC: metrics.SolverMoves.WithLabelValues(strategy, "infeasible"),
		rejectedC:   metrics.SolverMoves.WithLabelValues(strategy, "rejected"),
		emittedC:    metrics.SolverEmitted.WithLabelValues(strategy),
		routesG:     metrics.SolverBestRoutes.WithLabelValues(strategy),
		distanceG:   metrics.SolverBestDistance.WithLabelValues(strategy),
	}
}

func (t *tracker) iteration()      { t.iterations.Add(1); t.iterC.Inc() }
func (t *tracker) accept()         { t.accepted.Add(1); t.acceptedC.Inc() }
func (t *tracker) infeasibleMove() { t.infeasible.Add(1); t.infeasibleC.Inc() }
func (t *tracker) reject()         { t.rejected.Add(1); t.rejectedC.Inc() }
func (t *tracker) improve()        { t.improvements.Add(1) }
func (t *tracker) split()          { t.splits.Add(1) }

func (t *tracker) setTemperature(v float64) {
	t.mu.Lock()
	t.temperature = v
	t.mu.Unlock()
}

// emitted counts sol and keeps it as best unless an earlier emission beats
// it. GRASP streams are not monotone, so the last emission is not the best.
func (t *tracker) emitted(sol *model.Solution) {
	t.emittedN.Add(1)
	t.emittedC.Inc()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.best != nil && !sol.Less(t.best) {
		return
	}
	t.best = sol
	t.routesG.Set(float64(sol.RouteCount()))
	t.distanceG.Set(sol.Distance())
}

func (t *tracker) finish() {
	t.mu.Lock()
	t.elapsed = time.Since(t.begin)
	t.mu.Unlock()
}

func (t *tracker) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := Metrics{
		Iterations:   t.iterations.Load(),
		Accepted:     t.accepted.Load(),
		Infeasible:   t.infeasible.Load(),
		Rejected:     t.rejected.Load(),
		Improvements: t.improvements.Load(),
		Splits:       t.splits.Load(),
		Emitted:      t.emittedN.Load(),
		Temperature:  t.temperature,
		Elapsed:      t.elapsed,
	}
	if t.best != nil {
		m.BestRoutes, m.BestDistance = t.best.RouteCount(), t.best.Distance()
	}
	if m.Elapsed == 0 {
		m.Elapsed = time.Since(t.begin)
	}
	return m
}

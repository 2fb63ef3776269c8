package opt

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"vrptw/internal/model"
)

// Grasp runs one worker per RCL size 0..MaxRCLSize. Each worker builds
// Iterations randomized constructions, then improves its best one with
// random relocations until Timeout passes without improvement (the RCL 0
// worker never times out). Every worker improvement is forwarded as is:
// each worker's own sequence improves monotonically, the merged stream
// does not.
type Grasp struct {
	Iterations   int
	MaxRCLSize   int
	Timeout      time.Duration
	Seed         int64
	Value        func(model.Stop) float64
	VehicleLimit bool
}

func NewGrasp() *Grasp {
	return &Grasp{Iterations: 10, MaxRCLSize: 5, Timeout: 2 * time.Minute}
}

func (*Grasp) Name() string { return "grasp" }

func (g *Grasp) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, g.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		found := make(chan *model.Solution, g.MaxRCLSize+1)
		grp, gctx := errgroup.WithContext(ctx)
		for k := 0; k <= g.MaxRCLSize; k++ {
			grp.Go(func() (err error) {
				defer model.Recover(&err)
				return g.worker(gctx, inst, k, t, found)
			})
		}
		done := make(chan error, 1)
		go func() { done <- grp.Wait() }()

		for {
			select {
			case sol := <-found:
				if !emit(sol) {
					return <-done
				}
			case err := <-done:
				if err != nil {
					return err
				}
				// workers are finished; flush what they queued and idle
				for {
					select {
					case sol := <-found:
						if !emit(sol) {
							return nil
						}
					default:
						<-ctx.Done()
						return nil
					}
				}
			case <-ctx.Done():
				return <-done
			}
		}
	})
}

func (g *Grasp) seedFor(k int) int64 {
	if g.Seed != 0 {
		return g.Seed + int64(k)
	}
	return time.Now().UnixNano() + int64(k)*7919
}

func (g *Grasp) worker(ctx context.Context, inst *model.Instance, k int, t *tracker, out chan<- *model.Solution) error {
	rng := newRand(g.seedFor(k))
	send := func(sol *model.Solution) bool {
		select {
		case out <- sol:
			return true
		case <-ctx.Done():
			return false
		}
	}

	opts := ConstructOptions{RCLSize: k, Value: g.Value, VehicleLimit: g.VehicleLimit}
	var incumbent *model.Solution
	for j := 0; j < g.Iterations; j++ {
		if ctx.Err() != nil {
			return nil
		}
		t.iteration()
		cur, err := Construct(inst, rng, opts)
		if err != nil {
			return err
		}
		if incumbent != nil && !cur.Less(incumbent) {
			t.reject()
			continue
		}
		t.improve()
		incumbent = cur
		if !send(cur) {
			return nil
		}
	}
	if incumbent == nil || len(inst.Customers) == 0 {
		return nil
	}

	timeout := g.Timeout
	if k == 0 {
		timeout = 0
	}
	g.improve(ctx, inst, rng, incumbent, timeout, t, send)
	return nil
}

// improve hill-climbs from incumbent with random relocations. A timeout of
// zero means run until ctx is cancelled; otherwise the clock restarts on
// every improvement.
func (g *Grasp) improve(ctx context.Context, inst *model.Instance, rng *rand.Rand, incumbent *model.Solution,
	timeout time.Duration, t *tracker, send func(*model.Solution) bool) {
	last := time.Now()
	for ctx.Err() == nil && (timeout <= 0 || time.Since(last) < timeout) {
		t.iteration()
		cur, ok := randomRelocate(rng, inst, incumbent)
		if !ok {
			t.infeasibleMove()
			continue
		}
		if !cur.Less(incumbent) {
			t.reject()
			continue
		}
		t.accept()
		t.improve()
		incumbent = cur
		last = time.Now()
		if !send(cur) {
			return
		}
	}
}

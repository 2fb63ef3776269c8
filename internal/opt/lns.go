package opt

import (
	"context"
	"math/rand"
	"time"

	"vrptw/internal/model"
)

// LNS walks the relocate neighbourhood, taking every feasible move. When
// SplitAfter passes without an improvement it splits a random route in two
// to escape the current basin.
type LNS struct {
	SplitAfter time.Duration
	Seed       int64
	Initial    Strategy
}

func NewLNS() *LNS { return &LNS{SplitAfter: 20 * time.Second} }

func (*LNS) Name() string { return "lns" }

func (s *LNS) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, s.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		initial, ok, err := bootstrap(ctx, s.Initial, inst, emit)
		if !ok {
			return err
		}
		rng := newRand(s.Seed)
		incumbent, previous := initial, initial
		last := time.Now()

		for ctx.Err() == nil {
			t.iteration()
			if time.Since(last) > s.SplitAfter {
				previous = previous.SplitRoute(previous.Route(rng.Intn(previous.RouteCount())))
				t.split()
				last = time.Now()
				continue
			}
			next, improved, ok := walk(rng, inst, previous, incumbent, t)
			if !ok {
				continue
			}
			previous = next
			if improved {
				incumbent = next
				last = time.Now()
				if !emit(next) {
					return nil
				}
			}
		}
		return nil
	})
}

// RandomMove is LNS without splitting: a random walk over relocations that
// reports every new best.
type RandomMove struct {
	Seed    int64
	Initial Strategy
}

func (*RandomMove) Name() string { return "random" }

func (s *RandomMove) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, s.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		initial, ok, err := bootstrap(ctx, s.Initial, inst, emit)
		if !ok {
			return err
		}
		rng := newRand(s.Seed)
		incumbent, previous := initial, initial

		for ctx.Err() == nil {
			t.iteration()
			next, improved, ok := walk(rng, inst, previous, incumbent, t)
			if !ok {
				continue
			}
			previous = next
			if improved {
				incumbent = next
				if !emit(next) {
					return nil
				}
			}
		}
		return nil
	})
}

// walk takes one unconditional random relocation step from previous.
func walk(rng *rand.Rand, inst *model.Instance, previous, incumbent *model.Solution, t *tracker) (next *model.Solution, improved, ok bool) {
	next, ok = randomRelocate(rng, inst, previous)
	if !ok {
		t.infeasibleMove()
		return nil, false, false
	}
	t.accept()
	if next.Less(incumbent) {
		t.improve()
		return next, true, true
	}
	return next, false, true
}

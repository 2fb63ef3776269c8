package opt

import (
	"context"

	"vrptw/internal/model"
)

// Annealing relocates random customers, cooling the temperature
// geometrically each iteration. Moves that do not worsen the search state
// are always taken; worse moves are taken with worseAcceptance, which is
// currently zero, so the search is a hill-climb that reports a temperature.
type Annealing struct {
	InitialTemperature float64
	Cooling            float64
	Seed               int64
	Initial            Strategy
}

func NewAnnealing() *Annealing {
	return &Annealing{InitialTemperature: 100, Cooling: 0.9}
}

func (*Annealing) Name() string { return "sa" }

func (s *Annealing) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, s.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		initial, ok, err := bootstrap(ctx, s.Initial, inst, emit)
		if !ok {
			return err
		}
		rng := newRand(s.Seed)
		temp := s.InitialTemperature
		incumbent, previous := initial, initial

		for ctx.Err() == nil {
			t.iteration()
			temp *= s.Cooling
			t.setTemperature(temp)

			cur, ok := randomRelocate(rng, inst, previous)
			if !ok {
				t.infeasibleMove()
				continue
			}
			if cur.Less(incumbent) {
				t.improve()
				incumbent = cur
				if !emit(cur) {
					return nil
				}
			}
			delta := annealDelta(previous, cur)
			if delta <= 0 || rng.Float64() < worseAcceptance(delta, temp) {
				t.accept()
				previous = cur
			} else {
				t.reject()
			}
		}
		return nil
	})
}

// annealDelta weighs a change in route count 1000 times a change in distance.
func annealDelta(from, to *model.Solution) float64 {
	return 1000*float64(to.RouteCount()-from.RouteCount()) + (to.Distance() - from.Distance())
}

// worseAcceptance is the probability of taking a move that worsens the
// search state by delta at temperature temp.
// TODO: restore the Boltzmann term exp(-delta/temp) once it is tuned
// against the Solomon benchmarks.
func worseAcceptance(delta, temp float64) float64 {
	return 0
}

package opt

import (
	"context"

	"vrptw/internal/model"
)

// Greedy emits the single pure-greedy construction and ends.
type Greedy struct {
	VehicleLimit bool
}

func (Greedy) Name() string { return "greedy" }

func (g Greedy) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, g.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		t.iteration()
		sol, err := Construct(inst, nil, ConstructOptions{VehicleLimit: g.VehicleLimit})
		if err != nil {
			return err
		}
		emit(sol)
		return nil
	})
}

package opt

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"vrptw/internal/model"
)

// ErrUnservable means some customer cannot be visited even by an empty vehicle.
var ErrUnservable = errors.New("opt: customer cannot be served by any vehicle")

// ConstructOptions tunes the restricted candidate list builder.
type ConstructOptions struct {
	// RCLSize is the number of best candidates to choose from. 0 and 1
	// both mean pure greedy.
	RCLSize int
	// Value ranks candidate stops, lower first. Defaults to ServiceStart.
	Value        func(model.Stop) float64
	VehicleLimit bool
}

// ServiceStart ranks a candidate by the time its service would begin.
func ServiceStart(s model.Stop) float64 { return float64(s.ServiceStartedAt) }

type candidate struct {
	index int
	stop  model.Stop
	value float64
}

// Construct builds a solution route by route. Each step collects the
// unassigned customers that can be appended to the open route, ranks them
// and picks one of the best RCLSize at random. When nothing fits the route
// is sealed and a new one opened. rng may be nil when RCLSize <= 1.
func Construct(inst *model.Instance, rng *rand.Rand, o ConstructOptions) (*model.Solution, error) {
	value := o.Value
	if value == nil {
		value = ServiceStart
	}
	var opts []model.SolutionOption
	if o.VehicleLimit {
		opts = append(opts, model.WithVehicleLimit())
	}
	sol := model.NewSolution(inst.Vehicles, opts...)
	unassigned := slices.Clone(inst.Customers)
	cands := make([]candidate, 0, len(unassigned))

	var route *model.Route
	for len(unassigned) > 0 {
		if route == nil {
			route = sol.CreateRoute(inst.Depot, inst.Capacity)
		}
		cands = cands[:0]
		for i, c := range unassigned {
			if stop, ok := route.CanAdd(c); ok {
				cands = append(cands, candidate{index: i, stop: stop, value: value(stop)})
			}
		}
		if len(cands) == 0 {
			if route.Len() == 1 {
				return nil, fmt.Errorf("%w: customer %d", ErrUnservable, unassigned[0].ID)
			}
			route.Seal()
			route = nil
			continue
		}
		slices.SortStableFunc(cands, func(a, b candidate) int { return cmp.Compare(a.value, b.value) })

		pick := cands[0]
		if k := min(o.RCLSize, len(cands)); k > 1 {
			pick = cands[rng.Intn(k)]
		}
		route.Add(pick.stop.Customer)
		unassigned = slices.Delete(unassigned, pick.index, pick.index+1)
	}
	if route != nil && !route.IsSealed() {
		route.Seal()
	}
	return sol, nil
}

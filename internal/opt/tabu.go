package opt

import (
	"cmp"
	"context"
	"math"
	"slices"

	"vrptw/internal/model"
)

// Tabu repeatedly relocates the customer whose removal saves the most
// distance (or the lone customer of a route, which frees a vehicle) next
// to its closest spatio-temporal neighbour. Recently moved customers are
// tabu for Tenure moves.
type Tabu struct {
	Tenure  int
	Initial Strategy
}

func NewTabu() *Tabu { return &Tabu{Tenure: 50} }

func (*Tabu) Name() string { return "tabu" }

func (s *Tabu) Solve(ctx context.Context, inst *model.Instance) *Stream {
	return start(ctx, s.Name(), func(ctx context.Context, t *tracker, emit emitFunc) error {
		initial, ok, err := bootstrap(ctx, s.Initial, inst, emit)
		if !ok {
			return err
		}
		neighbors := rankNeighbors(inst)
		list := newTabuList(s.Tenure)
		incumbent, previous := initial, initial

		for ctx.Err() == nil {
			t.iteration()
			c := tabuCandidate(previous, list)
			if c == nil {
				list.release()
				continue
			}
			next, ok := relocateNearest(previous, c, neighbors[c])
			list.push(c)
			if !ok {
				t.infeasibleMove()
				continue
			}
			t.accept()
			previous = next
			if next.Less(incumbent) {
				t.improve()
				incumbent = next
				if !emit(next) {
					return nil
				}
			}
		}
		return nil
	})
}

// tabuCandidate picks the customer to move next: the customer of a
// single-customer route if one is not tabu, else the non-tabu customer
// whose removal shortens its route the most.
func tabuCandidate(sol *model.Solution, list *tabuList) *model.Customer {
	var best *model.Customer
	bestGain := math.Inf(-1)
	for i := 0; i < sol.RouteCount(); i++ {
		r := sol.Route(i)
		if r.Len() == 3 {
			if c := r.At(1).Customer; !list.contains(c) {
				return c
			}
			continue
		}
		for j := 1; j < r.Len()-1; j++ {
			c := r.At(j).Customer
			if list.contains(c) {
				continue
			}
			prev, next := r.At(j-1).Customer.Position, r.At(j+1).Customer.Position
			gain := model.Distance(prev, c.Position) + model.Distance(c.Position, next) - model.Distance(prev, next)
			if gain > bestGain {
				best, bestGain = c, gain
			}
		}
	}
	return best
}

// relocateNearest tries c right before, then right after, each neighbour in
// rank order and returns the first feasible move.
func relocateNearest(sol *model.Solution, c *model.Customer, neighbors []*model.Customer) (*model.Solution, bool) {
	for _, n := range neighbors {
		if next, ok := sol.TryMoveNextTo(c, n); ok {
			return next, true
		}
		if next, ok := sol.TryMoveAfter(c, n); ok {
			return next, true
		}
	}
	return nil, false
}

// rankNeighbors orders, for every customer, all other customers by
// euclidean distance plus the gap between ready times.
func rankNeighbors(inst *model.Instance) map[*model.Customer][]*model.Customer {
	type scored struct {
		c     *model.Customer
		score float64
	}
	out := make(map[*model.Customer][]*model.Customer, len(inst.Customers))
	buf := make([]scored, 0, len(inst.Customers))
	for _, c := range inst.Customers {
		buf = buf[:0]
		for _, o := range inst.Customers {
			if o == c {
				continue
			}
			score := model.Distance(c.Position, o.Position) + math.Abs(float64(c.ReadyTime-o.ReadyTime))
			buf = append(buf, scored{o, score})
		}
		slices.SortStableFunc(buf, func(a, b scored) int { return cmp.Compare(a.score, b.score) })
		ranked := make([]*model.Customer, len(buf))
		for i, s := range buf {
			ranked[i] = s.c
		}
		out[c] = ranked
	}
	return out
}

// tabuList is a FIFO of recently moved customers.
type tabuList struct {
	tenure int
	queue  []*model.Customer
	count  map[*model.Customer]int
}

// newTabuList treats a negative tenure as 0.
func newTabuList(tenure int) *tabuList {
	return &tabuList{tenure: max(tenure, 0), count: map[*model.Customer]int{}}
}

func (l *tabuList) contains(c *model.Customer) bool { return l.count[c] > 0 }

func (l *tabuList) push(c *model.Customer) {
	l.queue = append(l.queue, c)
	l.count[c]++
	for len(l.queue) > l.tenure {
		l.release()
	}
}

// release drops the oldest entry.
func (l *tabuList) release() {
	if len(l.queue) == 0 {
		return
	}
	c := l.queue[0]
	l.queue = l.queue[1:]
	if l.count[c]--; l.count[c] == 0 {
		delete(l.count, c)
	}
}

func (l *tabuList) len() int { return len(l.queue) }

package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Solution is an ordered set of routes. Edits return a new Solution that
// shares every untouched *Route with the receiver.
type Solution struct {
	routes       []*Route
	vehicles     int
	vehicleLimit bool
}

type SolutionOption func(*Solution)

// WithVehicleLimit makes CreateRoute refuse to open more routes than the
// solution has vehicles.
func WithVehicleLimit() SolutionOption {
	return func(s *Solution) { s.vehicleLimit = true }
}

func NewSolution(vehicles int, opts ...SolutionOption) *Solution {
	s := &Solution{vehicles: vehicles}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Solution) derive(routes []*Route) *Solution {
	return &Solution{routes: routes, vehicles: s.vehicles, vehicleLimit: s.vehicleLimit}
}

func (s *Solution) Vehicles() int      { return s.vehicles }
func (s *Solution) RouteCount() int    { return len(s.routes) }
func (s *Solution) Route(i int) *Route { return s.routes[i] }

// Routes returns a copy of the route list.
func (s *Solution) Routes() []*Route { return slices.Clone(s.routes) }

func (s *Solution) Distance() float64 {
	var d float64
	for _, r := range s.routes {
		d += r.Distance()
	}
	return d
}

// CreateRoute opens a new empty route. It is meant for construction only:
// the returned route is appended to the receiver and grows in place.
func (s *Solution) CreateRoute(depot *Customer, capacity int) *Route {
	if s.vehicleLimit && len(s.routes) >= s.vehicles {
		violatef("create route", ErrVehicleLimit, "%d vehicles", s.vehicles)
	}
	r := NewRoute(depot, capacity)
	s.routes = append(s.routes, r)
	return r
}

func (s *Solution) indexOfRoute(r *Route) int {
	return slices.Index(s.routes, r)
}

// RouteOf returns the route visiting c and its position in the solution,
// or nil and -1 when c is not assigned.
func (s *Solution) RouteOf(c *Customer) (*Route, int) {
	for i, r := range s.routes {
		if j := r.IndexOf(c); j > 0 && j < r.Len()-1 {
			return r, i
		}
	}
	return nil, -1
}

// TryMove relocates c into target right before the stop at index. It fails
// when the insert is infeasible or when c already sits on target. A source
// route left without customers is dropped, freeing its vehicle.
func (s *Solution) TryMove(c *Customer, target *Route, index int) (*Solution, bool) {
	const op = "move"
	ti := s.indexOfRoute(target)
	if ti < 0 {
		violate(op, ErrRouteNotMember)
	}
	newTarget, ok := target.TryInsert(c, index)
	if !ok {
		return nil, false
	}
	source, si := s.RouteOf(c)
	if source == nil {
		violatef(op, ErrCustomerUnassigned, "customer %d", c.ID)
	}
	if source == target {
		return nil, false
	}
	newSource := source.Remove(c)

	routes := slices.Clone(s.routes)
	routes[ti] = newTarget
	if newSource.Len() == 2 {
		routes = slices.Delete(routes, si, si+1)
	} else {
		routes[si] = newSource
	}
	return s.derive(routes), true
}

// TryMoveNextTo relocates c so that it is visited right before target.
func (s *Solution) TryMoveNextTo(c, target *Customer) (*Solution, bool) {
	r, _ := s.mustRouteOf("move next to", target)
	return s.TryMove(c, r, r.IndexOf(target))
}

// TryMoveAfter relocates c so that it is visited right after target.
func (s *Solution) TryMoveAfter(c, target *Customer) (*Solution, bool) {
	r, _ := s.mustRouteOf("move after", target)
	return s.TryMove(c, r, r.IndexOf(target)+1)
}

func (s *Solution) mustRouteOf(op string, c *Customer) (*Route, int) {
	r, i := s.RouteOf(c)
	if r == nil {
		violatef(op, ErrCustomerUnassigned, "customer %d", c.ID)
	}
	return r, i
}

// TryRemoveCustomer moves c out of its route into a new route of its own.
// It fails when c is the only customer of its route.
func (s *Solution) TryRemoveCustomer(c *Customer) (*Solution, bool) {
	const op = "remove customer"
	source, si := s.mustRouteOf(op, c)
	if source.Len() == 3 {
		return nil, false
	}
	single := NewRoute(source.Depot(), source.Capacity())
	single.add(op, c)
	single.Seal()

	routes := make([]*Route, 0, len(s.routes)+1)
	routes = append(routes, s.routes[:si]...)
	routes = append(routes, s.routes[si+1:]...)
	routes = append(routes, source.Remove(c), single)
	return s.derive(routes), true
}

// SplitRoute replaces r with the two halves of r.Split, appended last.
func (s *Solution) SplitRoute(r *Route) *Solution {
	i := s.indexOfRoute(r)
	if i < 0 {
		violate("split route", ErrRouteNotMember)
	}
	a, b := r.Split()
	routes := make([]*Route, 0, len(s.routes)+1)
	routes = append(routes, s.routes[:i]...)
	routes = append(routes, s.routes[i+1:]...)
	routes = append(routes, a, b)
	return s.derive(routes)
}

// Compare orders solutions by route count, then by distance.
func (s *Solution) Compare(o *Solution) int {
	switch {
	case len(s.routes) < len(o.routes):
		return -1
	case len(s.routes) > len(o.routes):
		return 1
	}
	sd, od := s.Distance(), o.Distance()
	switch {
	case sd < od:
		return -1
	case sd > od:
		return 1
	}
	return 0
}

// Less reports whether s is strictly better than o.
func (s *Solution) Less(o *Solution) bool { return s.Compare(o) < 0 }

func (s *Solution) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(s.routes)))
	sb.WriteByte('\n')
	for i, r := range s.routes {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, r)
	}
	fmt.Fprintf(&sb, "%.2f\n", s.Distance())
	return sb.String()
}

// Validate checks that every route is sealed and feasible and that no
// customer is visited twice.
func (s *Solution) Validate() error {
	seen := map[*Customer]int{}
	for i, r := range s.routes {
		if !r.IsSealed() {
			return fmt.Errorf("route %d: %w", i+1, ErrRouteNotSealed)
		}
		if r.Demand() > r.Capacity() {
			return fmt.Errorf("route %d: demand %d exceeds capacity %d", i+1, r.Demand(), r.Capacity())
		}
		for j := 1; j < r.Len(); j++ {
			st, prev := r.At(j), r.At(j-1)
			travel, _ := TravelDiff(prev.Customer.Position, st.Customer.Position)
			earliest := max(st.Customer.ReadyTime, prev.ServiceCompletedAt()+travel)
			if st.ServiceStartedAt < earliest {
				return fmt.Errorf("route %d stop %d: service at %d before %d", i+1, j, st.ServiceStartedAt, earliest)
			}
			if st.ServiceStartedAt > st.Customer.DueTime {
				return fmt.Errorf("route %d stop %d: service at %d after due %d", i+1, j, st.ServiceStartedAt, st.Customer.DueTime)
			}
			if j == r.Len()-1 {
				continue
			}
			if prevRoute, dup := seen[st.Customer]; dup {
				return fmt.Errorf("customer %d visited by routes %d and %d", st.Customer.ID, prevRoute, i+1)
			}
			seen[st.Customer] = i + 1
		}
	}
	return nil
}

// Covers reports whether every customer of inst is visited exactly once.
func (s *Solution) Covers(inst *Instance) bool {
	n := 0
	for _, r := range s.routes {
		n += len(r.Customers())
	}
	if n != len(inst.Customers) {
		return false
	}
	for _, c := range inst.Customers {
		if r, _ := s.RouteOf(c); r == nil {
			return false
		}
	}
	return true
}

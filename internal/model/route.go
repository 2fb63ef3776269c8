package model

import (
	"fmt"
	"slices"
	"strings"
)

// Route is an ordered, feasible sequence of stops starting at the depot.
//
// A route under construction grows in place through TryAdd/Add/Seal. Once
// sealed (first and last stop are the depot) it is treated as a value:
// TryInsert, RemoveAt, Remove and Split return new routes and never touch the
// receiver.
type Route struct {
	stops    []Stop
	capacity int
}

// NewRoute returns a route holding only the depot, with service at time 0.
func NewRoute(depot *Customer, capacity int) *Route {
	return &Route{stops: []Stop{{Customer: depot}}, capacity: capacity}
}

func routeFrom(prefix []Stop, capacity, extra int) *Route {
	stops := make([]Stop, len(prefix), len(prefix)+extra)
	copy(stops, prefix)
	return &Route{stops: stops, capacity: capacity}
}

func (r *Route) Capacity() int     { return r.capacity }
func (r *Route) Depot() *Customer  { return r.stops[0].Customer }
func (r *Route) Len() int          { return len(r.stops) }
func (r *Route) At(i int) Stop     { return r.stops[i] }
func (r *Route) Time() int         { return r.last().ServiceCompletedAt() }
func (r *Route) Distance() float64 { return r.last().Distance }
func (r *Route) Demand() int       { return r.last().Demand }
func (r *Route) Position() Point   { return r.last().Customer.Position }

func (r *Route) last() Stop { return r.stops[len(r.stops)-1] }

// Stops returns a copy of the stop sequence.
func (r *Route) Stops() []Stop { return slices.Clone(r.stops) }

// IsSealed reports whether the route has returned to its depot.
func (r *Route) IsSealed() bool {
	return len(r.stops) > 1 && r.last().Customer == r.Depot()
}

// Customers returns the visited customers without the depot stops.
func (r *Route) Customers() []*Customer {
	end := len(r.stops)
	if r.IsSealed() {
		end--
	}
	out := make([]*Customer, 0, end-1)
	for _, s := range r.stops[1:end] {
		out = append(out, s.Customer)
	}
	return out
}

// IndexOf returns the stop index of c, or -1. The leading depot stop is not
// considered, so the result for the depot of a sealed route is its last index.
func (r *Route) IndexOf(c *Customer) int {
	for i := 1; i < len(r.stops); i++ {
		if r.stops[i].Customer == c {
			return i
		}
	}
	return -1
}

func (r *Route) Contains(c *Customer) bool { return r.IndexOf(c) > 0 }

// CanAdd computes the stop that appending c would produce. It fails when c
// is already on the route, when capacity would be exceeded, when c cannot be
// reached before its due time, or when the vehicle could not get back to the
// depot in time afterwards. The depot itself skips the last check.
func (r *Route) CanAdd(c *Customer) (Stop, bool) {
	if r.Contains(c) {
		return Stop{}, false
	}
	demand := r.Demand() + c.Demand
	if demand > r.capacity {
		return Stop{}, false
	}

	last := r.last()
	travel, dist := TravelDiff(last.Customer.Position, c.Position)
	start := last.ServiceCompletedAt() + travel
	if start > c.DueTime {
		return Stop{}, false
	}
	if start < c.ReadyTime {
		start = c.ReadyTime
	}
	stop := Stop{Customer: c, ServiceStartedAt: start, Distance: last.Distance + dist, Demand: demand}

	depot := r.Depot()
	if c == depot {
		return stop, true
	}
	back, _ := TravelDiff(c.Position, depot.Position)
	if stop.ServiceCompletedAt()+back > depot.DueTime {
		return Stop{}, false
	}
	return stop, true
}

// TryAdd appends c when CanAdd allows it.
func (r *Route) TryAdd(c *Customer) bool {
	stop, ok := r.CanAdd(c)
	if !ok {
		return false
	}
	r.stops = append(r.stops, stop)
	return true
}

// Add appends c and panics with ErrInfeasibleAdd when it does not fit.
func (r *Route) Add(c *Customer) { r.add("add", c) }

func (r *Route) add(op string, c *Customer) {
	if !r.TryAdd(c) {
		violatef(op, ErrInfeasibleAdd, "customer %d", c.ID)
	}
}

// Seal returns the route to its depot.
func (r *Route) Seal() {
	if r.IsSealed() {
		violate("seal", ErrRouteSealed)
	}
	r.add("seal", r.Depot())
}

func (r *Route) mustBeSealed(op string) {
	if !r.IsSealed() {
		violate(op, ErrRouteNotSealed)
	}
}

// TryInsert returns a copy of the route with c visited right before the stop
// at index. Valid indexes are 1..Len()-1. The stops after the insertion point
// are replayed, so a shifted timeline that breaks any later time window makes
// the insert fail as a whole.
func (r *Route) TryInsert(c *Customer, index int) (*Route, bool) {
	const op = "insert"
	r.mustBeSealed(op)
	if index < 1 || index > len(r.stops)-1 {
		violatef(op, ErrIndexOutOfRange, "%d not in [1, %d]", index, len(r.stops)-1)
	}

	nr := routeFrom(r.stops[:index], r.capacity, len(r.stops)+1-index)
	if !nr.TryAdd(c) {
		return nil, false
	}
	for _, s := range r.stops[index:] {
		if !nr.TryAdd(s.Customer) {
			return nil, false
		}
	}
	return nr, true
}

// RemoveAt returns a copy of the route without the stop at index. The depot
// stops cannot be removed, so valid indexes are 1..Len()-2.
func (r *Route) RemoveAt(index int) *Route {
	const op = "remove at"
	r.mustBeSealed(op)
	if index < 1 || index >= len(r.stops)-1 {
		violatef(op, ErrIndexOutOfRange, "%d not in [1, %d]", index, len(r.stops)-2)
	}
	return r.without(op, index)
}

// Remove returns a copy of the route without c.
func (r *Route) Remove(c *Customer) *Route {
	const op = "remove"
	r.mustBeSealed(op)
	if c == r.Depot() {
		violate(op, ErrDepotRemoval)
	}
	i := r.IndexOf(c)
	if i < 0 {
		violatef(op, ErrCustomerNotInRoute, "customer %d", c.ID)
	}
	return r.without(op, i)
}

// without keeps the stops before index untouched and replays the rest.
// Dropping a visit never delays later ones, so the replay cannot fail on a
// feasible route.
func (r *Route) without(op string, index int) *Route {
	nr := routeFrom(r.stops[:index], r.capacity, len(r.stops)-1-index)
	for _, s := range r.stops[index+1:] {
		nr.add(op, s.Customer)
	}
	return nr
}

// Split deals the customers out into two new sealed routes: stops at even
// indexes go to the first, odd indexes to the second.
func (r *Route) Split() (*Route, *Route) {
	const op = "split"
	r.mustBeSealed(op)
	depot := r.Depot()
	a, b := NewRoute(depot, r.capacity), NewRoute(depot, r.capacity)
	for i := 1; i < len(r.stops)-1; i++ {
		if i%2 == 0 {
			a.add(op, r.stops[i].Customer)
		} else {
			b.add(op, r.stops[i].Customer)
		}
	}
	a.Seal()
	b.Seal()
	return a, b
}

func (r *Route) String() string {
	var sb strings.Builder
	for i, s := range r.stops {
		if i > 0 {
			sb.WriteString("->")
		}
		fmt.Fprintf(&sb, "%d(%d)", s.Customer.ID, s.ServiceStartedAt)
	}
	return sb.String()
}

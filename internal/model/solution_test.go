package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRouteVehicleLimit(t *testing.T) {
	depot := depotAt(0, 0, 0)

	s := NewSolution(1, WithVehicleLimit())
	s.CreateRoute(depot, 0)
	requireContract(t, ErrVehicleLimit, func() { s.CreateRoute(depot, 0) })

	unlimited := NewSolution(0)
	unlimited.CreateRoute(depot, 0)
	unlimited.CreateRoute(depot, 0)
	assert.Equal(t, 2, unlimited.RouteCount(), "limit is off by default")
}

func TestTryMoveInvalidTarget(t *testing.T) {
	depot := depotAt(0, 0, 0)
	s := NewSolution(0)
	r := NewRoute(depot, 0)
	requireContract(t, ErrRouteNotMember, func() { s.TryMove(depot.Clone(), r, 0) })
}

func TestTryMoveTargetFull(t *testing.T) {
	depot := depotAt(0, 0, 0)
	customer := &Customer{ID: 1, Demand: 1}
	s := NewSolution(2)
	r1 := s.CreateRoute(depot, 1)
	r1.Add(customer)
	r1.Seal()
	r2 := s.CreateRoute(depot, 0)
	r2.Seal()

	_, ok := s.TryMove(customer, r2, 1)
	assert.False(t, ok)
}

func TestTryMoveKeepsNonEmpty(t *testing.T) {
	depot := depotAt(0, 0, 0)
	c1, c2 := &Customer{ID: 1}, &Customer{ID: 2}
	s := NewSolution(2)
	r1 := s.CreateRoute(depot, 0)
	r1.Add(c1)
	r1.Add(c2)
	r1.Seal()
	r2 := s.CreateRoute(depot, 0)
	r2.Seal()

	ns, ok := s.TryMove(c2, r2, 1)
	require.True(t, ok)
	require.Equal(t, 2, ns.RouteCount())
	assert.Equal(t, []int{0, 1, 0}, idsOf(ns.Route(0)))
	assert.Equal(t, []int{0, 2, 0}, idsOf(ns.Route(1)))

	assert.Equal(t, []int{0, 1, 2, 0}, idsOf(s.Route(0)), "receiver is untouched")
	assert.Equal(t, []int{0, 0}, idsOf(s.Route(1)))
}

func TestTryMoveRemovesEmpty(t *testing.T) {
	depot := depotAt(0, 0, 0)
	c := &Customer{ID: 1}
	s := NewSolution(2)
	r1 := s.CreateRoute(depot, 0)
	r1.Add(c)
	r1.Seal()
	r2 := s.CreateRoute(depot, 0)
	r2.Seal()

	ns, ok := s.TryMove(c, r2, 1)
	require.True(t, ok)
	require.Equal(t, 1, ns.RouteCount())
	assert.Equal(t, []int{0, 1, 0}, idsOf(ns.Route(0)))
}

func TestTryMoveSameRoute(t *testing.T) {
	depot := depotAt(0, 0, 100)
	a := &Customer{ID: 1, DueTime: 100}
	b := &Customer{ID: 2, DueTime: 100}
	s := NewSolution(1)
	r := s.CreateRoute(depot, 10)
	r.Add(a)
	r.Add(b)
	r.Seal()

	_, ok := s.TryMove(a, r, 1)
	assert.False(t, ok)
	_, ok = s.TryMove(a, r, 3)
	assert.False(t, ok)
}

func TestTryMoveSharesUntouchedRoutes(t *testing.T) {
	depot := depotAt(0, 0, 100)
	s := NewSolution(3)
	cs := make([]*Customer, 3)
	for i := range cs {
		cs[i] = &Customer{ID: i + 1, Position: Point{float64(i + 1), 0}, DueTime: 100}
		r := s.CreateRoute(depot, 10)
		r.Add(cs[i])
		r.Seal()
	}

	ns, ok := s.TryMove(cs[0], s.Route(1), 1)
	require.True(t, ok)
	require.Equal(t, 2, ns.RouteCount())
	assert.Same(t, s.Route(2), ns.Route(1), "third route is shared, not copied")
	assert.True(t, ns.Less(s))
	require.NoError(t, ns.Validate())
}

func TestTryMoveNextTo(t *testing.T) {
	depot := depotAt(0, 0, 100)
	a := &Customer{ID: 1, Position: Point{1, 0}, DueTime: 100}
	b := &Customer{ID: 2, Position: Point{2, 0}, DueTime: 100}
	c := &Customer{ID: 3, Position: Point{0, 1}, DueTime: 100}
	s := NewSolution(2)
	r1 := s.CreateRoute(depot, 10)
	r1.Add(a)
	r1.Add(b)
	r1.Seal()
	r2 := s.CreateRoute(depot, 10)
	r2.Add(c)
	r2.Seal()

	before, ok := s.TryMoveNextTo(c, b)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 3, 2, 0}, idsOf(before.Route(0)))
	assert.Equal(t, 1, before.RouteCount())

	after, ok := s.TryMoveAfter(c, b)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3, 0}, idsOf(after.Route(0)))

	requireContract(t, ErrCustomerUnassigned, func() { s.TryMoveNextTo(c, &Customer{ID: 9}) })
}

func TestTryRemoveCustomer(t *testing.T) {
	depot := depotAt(0, 0, 100)
	a := &Customer{ID: 1, Position: Point{1, 0}, DueTime: 100}
	b := &Customer{ID: 2, Position: Point{2, 0}, DueTime: 100}
	s := NewSolution(2)
	r := s.CreateRoute(depot, 10)
	r.Add(a)
	r.Add(b)
	r.Seal()

	ns, ok := s.TryRemoveCustomer(a)
	require.True(t, ok)
	require.Equal(t, 2, ns.RouteCount())
	assert.Equal(t, []int{0, 2, 0}, idsOf(ns.Route(0)))
	assert.Equal(t, []int{0, 1, 0}, idsOf(ns.Route(1)))

	_, ok = ns.TryRemoveCustomer(b)
	assert.False(t, ok, "would empty its route")
}

func TestSplitRoute(t *testing.T) {
	depot := depotAt(0, 0, 100)
	a := &Customer{ID: 1, Position: Point{1, 0}, DueTime: 100}
	b := &Customer{ID: 2, Position: Point{2, 0}, DueTime: 100}
	s := NewSolution(2)
	r := s.CreateRoute(depot, 10)
	r.Add(a)
	r.Add(b)
	r.Seal()

	ns := s.SplitRoute(r)
	require.Equal(t, 2, ns.RouteCount())
	assert.InDelta(t, 6.0, ns.Distance(), 1e-9)
	assert.True(t, s.Less(ns))

	requireContract(t, ErrRouteNotMember, func() { s.SplitRoute(NewRoute(depot, 1)) })
}

func TestSolutionOrdering(t *testing.T) {
	depot := depotAt(0, 0, 100)
	mk := func(xs ...float64) *Solution {
		s := NewSolution(len(xs))
		for i, x := range xs {
			r := s.CreateRoute(depot, 10)
			r.Add(&Customer{ID: i + 1, Position: Point{x, 0}, DueTime: 100})
			r.Seal()
		}
		return s
	}
	one := mk(40)
	two := mk(1, 1)
	twoLonger := mk(1, 2)

	assert.True(t, one.Less(two), "fewer routes wins over distance")
	assert.True(t, two.Less(twoLonger))
	assert.False(t, two.Less(two))
	assert.Equal(t, 0, two.Compare(mk(1, 1)))
	assert.Equal(t, 1, twoLonger.Compare(two))
}

func TestSolutionString(t *testing.T) {
	depot := depotAt(0, 0, 100)
	s := NewSolution(2)
	r := s.CreateRoute(depot, 10)
	r.Add(&Customer{ID: 1, Position: Point{1, 0}, DueTime: 100})
	r.Seal()
	r = s.CreateRoute(depot, 10)
	r.Add(&Customer{ID: 2, Position: Point{0, 2}, ReadyTime: 3, DueTime: 100})
	r.Seal()

	want := "2\n1: 0(0)->1(1)->0(2)\n2: 0(0)->2(3)->0(5)\n6.00\n"
	assert.Equal(t, want, s.String())
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		NewRoute(depotAt(0, 0, 0), 0).RemoveAt(1)
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRouteNotSealed))
	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "remove at", ce.Op)

	assert.Panics(t, func() {
		var err error
		defer Recover(&err)
		panic("boom")
	})
}

func TestInstanceValidate(t *testing.T) {
	depot := depotAt(0, 0, 10)
	c := &Customer{ID: 1}
	assert.NoError(t, (&Instance{Vehicles: 1, Capacity: 1, Depot: depot, Customers: []*Customer{c}}).Validate())
	assert.Error(t, (&Instance{Customers: []*Customer{c}}).Validate())
	assert.Error(t, (&Instance{Depot: depot, Customers: []*Customer{c, c}}).Validate())
	assert.Error(t, (&Instance{Depot: depot, Customers: []*Customer{depot}}).Validate())
	assert.Error(t, (&Instance{Depot: depot, Capacity: -1}).Validate())
}

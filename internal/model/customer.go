package model

import (
	"errors"
	"fmt"
	"math"
)

type Point struct{ X, Y float64 }

// Customer is a node to visit. Identity is the pointer: two customers with
// equal fields are still different customers, and the depot is a Customer too.
type Customer struct {
	ID          int
	Position    Point
	Demand      int
	ReadyTime   int
	DueTime     int
	ServiceTime int
}

// Clone returns a customer with the same fields and a new identity.
func (c *Customer) Clone() *Customer {
	cp := *c
	return &cp
}

// Instance is one CVRPTW problem. It is read-only once a search starts.
type Instance struct {
	Name      string
	Vehicles  int
	Capacity  int
	Depot     *Customer
	Customers []*Customer
}

// Validate checks the structural assumptions the search relies on.
func (in *Instance) Validate() error {
	if in.Depot == nil {
		return errors.New("instance: depot is required")
	}
	if in.Vehicles < 0 {
		return fmt.Errorf("instance: vehicles must be >= 0, got %d", in.Vehicles)
	}
	if in.Capacity < 0 {
		return fmt.Errorf("instance: capacity must be >= 0, got %d", in.Capacity)
	}
	seen := make(map[*Customer]struct{}, len(in.Customers))
	for i, c := range in.Customers {
		if c == nil {
			return fmt.Errorf("instance: customer %d is nil", i)
		}
		if c == in.Depot {
			return fmt.Errorf("instance: depot listed as customer %d", c.ID)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("instance: customer %d listed twice", c.ID)
		}
		if c.Demand < 0 {
			return fmt.Errorf("instance: customer %d has negative demand", c.ID)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// TravelDiff returns the integer travel time and euclidean distance between
// two points. Travel time is the distance rounded up.
func TravelDiff(a, b Point) (int, float64) {
	d := math.Hypot(b.X-a.X, b.Y-a.Y)
	return int(math.Ceil(d)), d
}

// Distance is the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Stop is a scheduled visit plus the route state accumulated up to it.
type Stop struct {
	Customer         *Customer
	ServiceStartedAt int
	Distance         float64
	Demand           int
}

func (s Stop) ServiceCompletedAt() int { return s.ServiceStartedAt + s.Customer.ServiceTime }

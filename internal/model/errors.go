package model

import (
	"errors"
	"fmt"
)

// Contract violations. These are never a search outcome: operations that
// detect them panic with a *ContractError wrapping one of these values.
var (
	ErrRouteNotSealed     = errors.New("route is not sealed")
	ErrRouteSealed        = errors.New("route is already sealed")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrDepotRemoval       = errors.New("cannot remove depot")
	ErrCustomerNotInRoute = errors.New("customer is not part of route")
	ErrCustomerUnassigned = errors.New("customer is not assigned to any route")
	ErrRouteNotMember     = errors.New("route is not part of solution")
	ErrInfeasibleAdd      = errors.New("customer cannot be appended to route")
	ErrVehicleLimit       = errors.New("creating a route would exceed the vehicle limit")
)

// ContractError reports a violated precondition of a model operation.
type ContractError struct {
	Op  string
	Err error
}

func (e *ContractError) Error() string { return "model: " + e.Op + ": " + e.Err.Error() }

func (e *ContractError) Unwrap() error { return e.Err }

func violate(op string, err error) {
	panic(&ContractError{Op: op, Err: err})
}

func violatef(op string, err error, format string, args ...any) {
	panic(&ContractError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)})
}

// Recover turns a ContractError panic into an error stored in *errp.
// Any other panic value is re-raised. Use as: defer model.Recover(&err).
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ce, ok := r.(*ContractError)
	if !ok {
		panic(r)
	}
	*errp = ce
}

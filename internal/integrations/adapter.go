package integrations

import (
	"context"

	"vrptw/internal/model"
)

// Source loads a problem instance from somewhere outside the solver.
type Source interface {
	Name() string
	Load(ctx context.Context) (*model.Instance, error)
}

package opt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/model"
)

func TestTabuListFIFO(t *testing.T) {
	a, b, c := &model.Customer{ID: 1}, &model.Customer{ID: 2}, &model.Customer{ID: 3}
	l := newTabuList(2)
	l.push(a)
	l.push(b)
	assert.True(t, l.contains(a))
	assert.True(t, l.contains(b))

	l.push(c)
	assert.False(t, l.contains(a), "oldest entry should expire")
	assert.True(t, l.contains(c))
	assert.Equal(t, 2, l.len())

	l.release()
	assert.False(t, l.contains(b))
	l.release()
	l.release()
	assert.Equal(t, 0, l.len())
}

func TestTabuListNegativeTenure(t *testing.T) {
	a := &model.Customer{ID: 1}
	l := newTabuList(-1)
	l.push(a)
	assert.False(t, l.contains(a))
	assert.Equal(t, 0, l.len())

	sols, err := collect(t, &Tabu{Tenure: -1}, lineInstance(5), 50*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, sols)
}

func TestTabuListRepeatedEntry(t *testing.T) {
	a := &model.Customer{ID: 1}
	l := newTabuList(3)
	l.push(a)
	l.push(a)
	l.release()
	assert.True(t, l.contains(a), "second entry is still queued")
	l.release()
	assert.False(t, l.contains(a))
}

func TestTabuCandidatePrefersSingletonRoute(t *testing.T) {
	sol, err := Construct(lineInstance(5), nil, ConstructOptions{})
	require.NoError(t, err)
	l := newTabuList(10)
	c := tabuCandidate(sol, l)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.ID)

	l.push(c)
	c = tabuCandidate(sol, l)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.ID)

	l.push(c)
	assert.Nil(t, tabuCandidate(sol, l))
}

func TestTabuCandidateLargestSaving(t *testing.T) {
	inst := lineInstance(10)
	// B sits off the axis, so dropping it saves more than dropping A
	inst.Customers[1].Position = model.Point{X: 1, Y: 3}
	sol, err := Construct(inst, nil, ConstructOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, sol.RouteCount())
	c := tabuCandidate(sol, newTabuList(10))
	require.NotNil(t, c)
	assert.Equal(t, 2, c.ID)
}

func TestRankNeighbors(t *testing.T) {
	inst := lineInstance(10)
	extra := &model.Customer{ID: 3, Position: model.Point{X: 1, Y: 0.5}, ReadyTime: 50, DueTime: 100}
	inst.Customers = append(inst.Customers, extra)
	ranked := rankNeighbors(inst)
	a := inst.Customers[0]
	require.Len(t, ranked[a], 2)
	assert.Equal(t, 2, ranked[a][0].ID, "ready time gap outweighs proximity")
	assert.Equal(t, 3, ranked[a][1].ID)
}

// fixed emits one prepared solution.
type fixed struct{ sol *model.Solution }

func (fixed) Name() string { return "fixed" }

func (f fixed) Solve(ctx context.Context, _ *model.Instance) *Stream {
	return start(ctx, f.Name(), func(ctx context.Context, _ *tracker, emit emitFunc) error {
		emit(f.sol)
		return nil
	})
}

func TestTabuMergesRoutes(t *testing.T) {
	inst := lineInstance(10)
	a, b := inst.Customers[0], inst.Customers[1]
	split := model.NewSolution(inst.Vehicles)
	for _, c := range []*model.Customer{a, b} {
		r := split.CreateRoute(inst.Depot, inst.Capacity)
		r.Add(c)
		r.Seal()
	}

	ts := &Tabu{Tenure: 5, Initial: fixed{split}}
	sols, err := collect(t, ts, inst, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.Same(t, split, sols[0])
	assert.Equal(t, 1, sols[1].RouteCount())
	assert.Equal(t, "0(0)->1(1)->2(2)->0(4)", sols[1].Route(0).String())
}

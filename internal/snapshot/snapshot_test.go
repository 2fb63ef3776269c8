package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrptw/internal/model"
)

func solution(t *testing.T, capacity int) *model.Solution {
	t.Helper()
	depot := &model.Customer{ID: 0, DueTime: 100}
	sol := model.NewSolution(2)
	r := sol.CreateRoute(depot, capacity)
	for i, x := range []float64{1, 2} {
		c := &model.Customer{ID: i + 1, Position: model.Point{X: x}, Demand: 5, DueTime: 100}
		if !r.TryAdd(c) {
			r.Seal()
			r = sol.CreateRoute(depot, capacity)
			r.Add(c)
		}
	}
	r.Seal()
	return sol
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestObserveThrottlesLatest(t *testing.T) {
	base := filepath.Join(t.TempDir(), "c101")
	w := New(base, nil, time.Hour, nil)
	first, second := solution(t, 5), solution(t, 10)

	require.NoError(t, w.Observe(first))
	assert.Equal(t, first.String(), read(t, w.Path("latest")))

	require.NoError(t, w.Observe(second))
	assert.Equal(t, first.String(), read(t, w.Path("latest")), "second write inside the interval is deferred")

	require.NoError(t, w.Close())
	assert.Equal(t, second.String(), read(t, w.Path("latest")))
	assert.Equal(t, second.String(), read(t, w.Path("final")))
}

func TestObserveKeepsBest(t *testing.T) {
	base := filepath.Join(t.TempDir(), "c101")
	w := New(base, []Checkpoint{{Label: "early", After: time.Nanosecond}}, 0, nil)
	better, worse := solution(t, 10), solution(t, 5)
	require.True(t, better.Less(worse))

	require.NoError(t, w.Observe(better))
	require.NoError(t, w.Observe(worse))
	assert.Equal(t, better.String(), read(t, w.Path("latest")))

	require.NoError(t, w.checkpoint(time.Second))
	assert.Equal(t, better.String(), read(t, w.Path("early")))

	require.NoError(t, w.Close())
	assert.Equal(t, better.String(), read(t, w.Path("latest")))
	assert.Equal(t, better.String(), read(t, w.Path("final")))
}

func TestCheckpoints(t *testing.T) {
	base := filepath.Join(t.TempDir(), "c101")
	w := New(base, []Checkpoint{{Label: "early", After: time.Millisecond}, {Label: "late", After: time.Hour}}, 0, nil)
	w.tick = 5 * time.Millisecond
	sol := solution(t, 10)
	require.NoError(t, w.Observe(sol))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		_, err := os.Stat(w.Path("early"))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, sol.String(), read(t, w.Path("early")))
	_, err := os.Stat(w.Path("late"))
	assert.True(t, os.IsNotExist(err))
}

func TestCheckpointWaitsForSolution(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "c101"), []Checkpoint{{Label: "early", After: time.Nanosecond}}, 0, nil)
	require.NoError(t, w.checkpoint(time.Second))
	assert.Empty(t, w.written)

	require.NoError(t, w.Observe(solution(t, 10)))
	require.NoError(t, w.checkpoint(time.Second))
	assert.True(t, w.written["early"])
}

func TestCloseWithoutSolution(t *testing.T) {
	dir := t.TempDir()
	w := New(filepath.Join(dir, "c101"), nil, 0, nil)
	require.NoError(t, w.Close())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteAtomicMissingDir(t *testing.T) {
	err := writeAtomic(filepath.Join(t.TempDir(), "missing", "x.txt"), "body")
	assert.Error(t, err)
}

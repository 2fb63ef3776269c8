package api

import (
	"sync"
)

// SolutionEvent is pushed to subscribers of a run whenever the run emits a
// solution or finishes.
type SolutionEvent struct {
	Type     string  `json:"type"`
	RunID    string  `json:"runId"`
	Seq      int     `json:"seq"`
	Routes   int     `json:"routes"`
	Distance float64 `json:"distance"`
	Body     string  `json:"body,omitempty"`
	Status   string  `json:"status,omitempty"`
}

const (
	EventSolution = "solution"
	EventFinished = "finished"
)

type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan SolutionEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan SolutionEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan SolutionEvent {
	ch := make(chan SolutionEvent, 8)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan SolutionEvent]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan SolutionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

// Publish never blocks: slow subscribers miss intermediate solutions.
func (b *Broker) Publish(runID string, evt SolutionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

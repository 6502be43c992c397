package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/target/scriptcheck/internal/domain/model"
)

// MemoryHistory is an in-memory core.HistoryRepository. Append is first
// writer wins per (workflow, seq), like the Postgres unique key.
type MemoryHistory struct {
	mu     sync.Mutex
	events map[string]map[int]model.HistoryEvent
	// AppendErr, when set, fails every Append. Use SetAppendErr while a
	// run is in flight.
	AppendErr error
	failNext  map[string]error
}

// SetAppendErr changes AppendErr under the history lock.
func (h *MemoryHistory) SetAppendErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AppendErr = err
}

// FailNextAppend fails the next Append of activity with err. It models a
// worker that dies after a stage ran but before its step was recorded.
func (h *MemoryHistory) FailNextAppend(activity string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failNext == nil {
		h.failNext = make(map[string]error)
	}
	h.failNext[activity] = err
}

// NewMemoryHistory returns an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{events: make(map[string]map[int]model.HistoryEvent)}
}

func (h *MemoryHistory) Append(_ context.Context, ev *model.HistoryEvent) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.AppendErr != nil {
		return false, h.AppendErr
	}
	if err, ok := h.failNext[ev.Activity]; ok {
		delete(h.failNext, ev.Activity)
		return false, err
	}
	run, ok := h.events[ev.WorkflowID]
	if !ok {
		run = make(map[int]model.HistoryEvent)
		h.events[ev.WorkflowID] = run
	}
	if _, dup := run[ev.Seq]; dup {
		return false, nil
	}
	run[ev.Seq] = *ev
	return true, nil
}

func (h *MemoryHistory) List(_ context.Context, workflowID string) ([]model.HistoryEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HistoryEvent, 0, len(h.events[workflowID]))
	for _, ev := range h.events[workflowID] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Activities returns the recorded activity names of a run in step order.
func (h *MemoryHistory) Activities(workflowID string) []string {
	events, _ := h.List(context.Background(), workflowID)
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Activity)
	}
	return names
}

// Truncate drops every step at or after seq, simulating a crash mid-run.
func (h *MemoryHistory) Truncate(workflowID string, seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.events[workflowID] {
		if s >= seq {
			delete(h.events[workflowID], s)
		}
	}
}

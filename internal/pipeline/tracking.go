package pipeline

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"greentwin/internal/model"
)

const defaultErrorHistory = 200

// Tracker holds the latest status published by each machine worker and a
// bounded history of recent errors. It is the only state shared between
// workers and the status API.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]model.MachineStatus
	errors   []model.ErrorDetail
	next     int
	full     bool
}

func NewTracker(history int) *Tracker {
	if history <= 0 {
		history = defaultErrorHistory
	}
	return &Tracker{
		statuses: make(map[string]model.MachineStatus),
		errors:   make([]model.ErrorDetail, history),
	}
}

// UpdateStatus replaces the published status of a machine
func (t *Tracker) UpdateStatus(s model.MachineStatus) {
	t.mu.Lock()
	t.statuses[s.MachineID] = s
	t.mu.Unlock()
}

// Status returns the published status of a machine
func (t *Tracker) Status(machineID string) (model.MachineStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[machineID]
	return s, ok
}

// Statuses returns all machine statuses ordered by machine id
func (t *Tracker) Statuses() []model.MachineStatus {
	t.mu.RLock()
	out := make([]model.MachineStatus, 0, len(t.statuses))
	for _, s := range t.statuses {
		out = append(out, s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MachineID < out[j].MachineID })
	return out
}

// RecordError appends an error to the ring, overwriting the oldest entry when full
func (t *Tracker) RecordError(stage, machineID string, err error) model.ErrorDetail {
	detail := model.ErrorDetail{
		ID:        uuid.NewString(),
		Stage:     stage,
		MachineID: machineID,
		Message:   err.Error(),
		Severity:  determineSeverity(stage, err),
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	t.errors[t.next] = detail
	t.next = (t.next + 1) % len(t.errors)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
	return detail
}

// Errors returns recorded errors, newest first
func (t *Tracker) Errors() []model.ErrorDetail {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = len(t.errors)
	}
	out := make([]model.ErrorDetail, 0, n)
	for i := 1; i <= n; i++ {
		idx := (t.next - i + len(t.errors)) % len(t.errors)
		out = append(out, t.errors[idx])
	}
	return out
}

func determineSeverity(stage string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidReading):
		return "low"
	case stage == "persist":
		return "high"
	case stage == "train", stage == "load":
		return "medium"
	case stage == "sink":
		return "medium"
	default:
		return "low"
	}
}

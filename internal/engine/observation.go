package engine

import (
	"time"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
)

// Observation is what an observer sees of one task at a point in time.
// Task is shared between observers and must be treated as read-only.
type Observation struct {
	TaskID string
	// Task is the last applied snapshot, nil until the first successful fetch.
	Task *domain.Task
	// Err is the error of the last applied fetch. A failed refresh keeps the previous Task.
	Err error
	// Seq is the sequence number of the last applied fetch.
	Seq       uint64
	UpdatedAt time.Time
}

// Loading reports that nothing has been fetched for the task yet.
func (o Observation) Loading() bool {
	return o.Task == nil && o.Err == nil
}

// Terminal reports that the snapshot is completed or failed.
func (o Observation) Terminal() bool {
	return o.Task != nil && o.Task.Status.IsTerminal()
}

// Handle is one observer's registration on a task.
type Handle struct {
	id      string
	taskID  string
	updates chan Observation
}

func (h *Handle) ID() string     { return h.id }
func (h *Handle) TaskID() string { return h.taskID }

// Updates delivers observations for the task. Only the latest undelivered observation is kept,
// so a slow reader skips intermediate states. The channel is closed when the handle is released.
func (h *Handle) Updates() <-chan Observation {
	return h.updates
}

// offer must be called with the engine lock held.
func (h *Handle) offer(obs Observation) {
	select {
	case h.updates <- obs:
		return
	default:
	}

	select {
	case <-h.updates:
	default:
	}
	h.updates <- obs
}

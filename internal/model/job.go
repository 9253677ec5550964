package model

import "time"

// RefreshStatus is the job state machine. Pending and the terminal states
// are the only rest states; in_progress must not survive a worker crash
// (the sweep recovers it back to pending after the claim timeout).
type RefreshStatus string

const (
	StatusPending    RefreshStatus = "pending"
	StatusInProgress RefreshStatus = "in_progress"
	StatusDone       RefreshStatus = "done"
	StatusFailed     RefreshStatus = "failed"
)

// Terminal reports whether the status is a final rest state.
func (s RefreshStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// RefreshReason records why a refresh was requested.
type RefreshReason string

const (
	ReasonManual    RefreshReason = "manual"
	ReasonScheduled RefreshReason = "scheduled"
	ReasonStale     RefreshReason = "stale"
	ReasonNewPlace  RefreshReason = "new_place"
)

// DefaultPriority returns the priority band for a reason, used when the
// caller does not pass an explicit priority. Manual triggers outrank
// everything else.
func (r RefreshReason) DefaultPriority() int {
	switch r {
	case ReasonManual:
		return 100
	case ReasonNewPlace:
		return 50
	case ReasonStale:
		return 20
	default:
		return 10
	}
}

// Valid reports whether the reason is one of the known variants.
func (r RefreshReason) Valid() bool {
	switch r {
	case ReasonManual, ReasonScheduled, ReasonStale, ReasonNewPlace:
		return true
	}
	return false
}

// RefreshJob is a queued unit of "re-fetch and re-normalize this place".
// At most one job per place may be pending or in progress at a time.
type RefreshJob struct {
	ID         string        `json:"id"`
	PlaceID    int64         `json:"place_id"`
	Reason     RefreshReason `json:"reason"`
	Priority   int           `json:"priority"`
	Status     RefreshStatus `json:"status"`
	Attempts   int           `json:"attempts"`
	CreatedAt  time.Time     `json:"created_at"`
	ClaimedAt  *time.Time    `json:"claimed_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
}

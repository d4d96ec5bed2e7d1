package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusStopped   JobStatus = "stopped"
)

// Job is the client view of one copy operation. The server owns every
// field; the client only writes provisional statuses during an optimistic
// mutation.
type Job struct {
	ID             string     `json:"id"`
	Owner          string     `json:"phone_number"`
	SourceChannel  string     `json:"source_channel"`
	TargetChannel  string     `json:"target_channel"`
	Status         JobStatus  `json:"status"`
	RealTime       bool       `json:"real_time"`
	CopyMedia      bool       `json:"copy_media"`
	MessagesCopied int        `json:"messages_copied"`
	MessagesFailed int        `json:"messages_failed"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StatusMessage  string     `json:"status_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CopySpec is what the user supplies when creating a job; the server
// assigns the id and the initial status.
type CopySpec struct {
	Owner         string `json:"phone_number"`
	SourceChannel string `json:"source_channel"`
	TargetChannel string `json:"target_channel"`
	RealTime      bool   `json:"real_time"`
	CopyMedia     bool   `json:"copy_media"`
}

func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	}
	return false
}

// Active reports whether the job still demands the fast poll cadence.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// transitions holds the only edges of the job state machine. User commands
// originate a subset of these; the rest arrive through polling.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusStopped},
	JobStatusRunning: {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusStopped},
	JobStatusPaused:  {JobStatusRunning, JobStatusStopped},
}

func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

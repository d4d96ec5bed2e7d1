// Package usage holds the plan-limit snapshot that gates job creation.
// The snapshot is fetched from the service and evaluated locally; the
// server's own validation on create remains the final authority.
package usage

import "fmt"

// Stats mirrors the service's usage report for the current user.
type Stats struct {
	Owner               string  `json:"phone_number"`
	Plan                string  `json:"plan"`
	UsageCount          int     `json:"usage_count"`
	UsageLimit          int     `json:"usage_limit"`
	UsagePercentage     float64 `json:"usage_percentage"`
	MessagesCopiedToday int     `json:"messages_copied_today"`

	ActiveJobs     int `json:"active_jobs_count"`
	TotalJobs      int `json:"total_jobs_count"`
	HistoricalJobs int `json:"historical_jobs_count"`
	RealtimeJobs   int `json:"realtime_jobs_count"`

	HistoricalJobsLimit int `json:"historical_jobs_limit"`
	RealtimeJobsLimit   int `json:"realtime_jobs_limit"`

	CanCreateJob           bool `json:"can_create_job"`
	CanCreateHistoricalJob bool `json:"can_create_historical_job"`
	CanCreateRealtimeJob   bool `json:"can_create_realtime_job"`

	MessageLimitBlockedReason string `json:"message_limit_blocked_reason,omitempty"`
	HistoricalBlockedReason   string `json:"historical_job_blocked_reason,omitempty"`
	RealtimeBlockedReason     string `json:"realtime_job_blocked_reason,omitempty"`
	LimitMessage              string `json:"limit_message,omitempty"`
}

// BlockedError carries the user-facing reason a create was refused
// without a network call.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("job creation blocked: %s", e.Reason)
}

// AllowCreate evaluates the snapshot against the requested job kind.
func (s Stats) AllowCreate(realTime bool) error {
	if !s.CanCreateJob {
		return &BlockedError{Reason: reasonOr(s.MessageLimitBlockedReason, "daily message limit reached")}
	}

	if realTime {
		if !s.CanCreateRealtimeJob {
			return &BlockedError{Reason: reasonOr(s.RealtimeBlockedReason, "real-time job limit reached")}
		}
		return nil
	}

	if !s.CanCreateHistoricalJob {
		return &BlockedError{Reason: reasonOr(s.HistoricalBlockedReason, "historical job limit reached")}
	}

	return nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

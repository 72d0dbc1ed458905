package domain

import "time"

type RunStatus string

const (
	RunCompleted         RunStatus = "completed"
	RunSkippedInProgress RunStatus = "skipped_in_progress"
	RunSkippedQuota      RunStatus = "skipped_quota"
)

// RunStats holds statistics about a single orchestrator run.
type RunStats struct {
	Mode          string
	Status        RunStatus
	Targets       int
	TargetsFailed int
	Fetched       int
	Created       int
	Updated       int
	Failed        int
	Published     int
	PublishFailed int
	Duration      time.Duration
}

package video

import "strings"

// Status is the internal vocabulary for provider job states.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

// ParseProviderStatus maps a provider status string to Status. Values outside
// the known vocabulary map to StatusUnknown; callers log them and keep polling.
func ParseProviderStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CREATED", "QUEUED", "PENDING":
		return StatusQueued
	case "PROCESSING", "IN_PROGRESS", "RUNNING":
		return StatusProcessing
	case "COMPLETED", "SUCCEEDED", "SUCCESS":
		return StatusCompleted
	case "FAILED", "ERROR":
		return StatusFailed
	case "CANCELLED", "CANCELED":
		return StatusCancelled
	}
	return StatusUnknown
}

// Terminal reports whether polling should stop at s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// FailureKind classifies why a generation did not succeed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureInput      FailureKind = "invalid_input"
	FailureSubmission FailureKind = "submission"
	FailureProvider   FailureKind = "provider"
	FailureCancelled  FailureKind = "cancelled"
	FailureNoArtifact FailureKind = "no_artifact"
	FailureTimeout    FailureKind = "timeout"
)

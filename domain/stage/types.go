package stage

import (
	"fmt"
	"time"
)

// StageName represents one of the independent post-upload analyses
type StageName string

// Predefined stage names
const (
	StageSummary          StageName = "summary"
	StageFeatureSelection StageName = "feature_selection"
	StageVisualization    StageName = "visualization"
)

// AllStages lists the stages in display order
var AllStages = []StageName{StageSummary, StageFeatureSelection, StageVisualization}

// ParseStageName accepts the canonical names plus a few short aliases
func ParseStageName(s string) (StageName, error) {
	switch s {
	case "summary", "eda":
		return StageSummary, nil
	case "feature_selection", "feature-selection", "features":
		return StageFeatureSelection, nil
	case "visualization", "visualize", "chart":
		return StageVisualization, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Status is the lifecycle tag of a StageResult
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// StageResult holds the latest outcome of a single stage.
// Exactly one of Value (Ready) or Reason (Failed) is meaningful.
type StageResult[T any] struct {
	Status    Status    `json:"status"`
	Value     T         `json:"value,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Pending returns an empty result
func Pending[T any]() StageResult[T] {
	return StageResult[T]{Status: StatusPending}
}

// Ready wraps a successful value
func Ready[T any](value T) StageResult[T] {
	return StageResult[T]{Status: StatusReady, Value: value, UpdatedAt: time.Now()}
}

// Failed records a failure reason
func Failed[T any](reason string) StageResult[T] {
	return StageResult[T]{Status: StatusFailed, Reason: reason, UpdatedAt: time.Now()}
}

func (r StageResult[T]) IsPending() bool { return r.Status == StatusPending }
func (r StageResult[T]) IsReady() bool   { return r.Status == StatusReady }
func (r StageResult[T]) IsFailed() bool  { return r.Status == StatusFailed }

package ports

import (
	"context"

	"dataexplorer/domain/core"
	"dataexplorer/domain/workflow"
)

// UploadResponse is the analysis service's answer to a successful upload
type UploadResponse struct {
	SessionID   core.SessionID
	Columns     []string
	DownloadURL string
	Message     string
}

// FeatureSelectionRequest scopes a feature-selection run
type FeatureSelectionRequest struct {
	Filename  string
	Threshold float64
}

// VisualizationRequest scopes a chart rendering
type VisualizationRequest struct {
	Filename   string
	Parameters workflow.VisualizationParameters
}

// AskRequest is a free-form question about the active session's dataset
type AskRequest struct {
	SessionID core.SessionID
	Question  string
}

// AnalysisService is the remote analysis contract consumed by the orchestrator.
// Every method returns an error for transport failures, non-success statuses,
// and explicit `{error: ...}` payloads.
type AnalysisService interface {
	Upload(ctx context.Context, file workflow.FileCandidate) (*UploadResponse, error)
	FetchCleanedFile(ctx context.Context, downloadURL string) ([]byte, error)
	RunSummary(ctx context.Context, filename string) (*workflow.Summary, error)
	RunFeatureSelection(ctx context.Context, req FeatureSelectionRequest) (*workflow.FeatureSelection, error)
	RunVisualization(ctx context.Context, req VisualizationRequest) (*workflow.Visualization, error)
	Ask(ctx context.Context, req AskRequest) (string, error)
}

package workflow

import (
	"fmt"
	"path"
	"strings"

	"dataexplorer/domain/core"
	"dataexplorer/domain/dataset"
)

// Session is the server-assigned scope for every analysis call
type Session struct {
	ID core.SessionID `json:"id"`
}

// Phase is the coarse state of the workflow as a whole. The three analysis
// stages advance independently and are tracked per slot, not here.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseUploaded  Phase = "uploaded"
)

// UploadOutcome is the terminal status of the most recent upload attempt
type UploadOutcome string

const (
	UploadNone      UploadOutcome = ""
	UploadSucceeded UploadOutcome = "succeeded"
	UploadFailed    UploadOutcome = "failed"
)

// UploadStatus is visible to the caller after every upload attempt
type UploadStatus struct {
	Outcome UploadOutcome `json:"outcome"`
	Code    string        `json:"code,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// FileCandidate is the staged file awaiting upload
type FileCandidate struct {
	Name string
	Data []byte
}

// IsEmpty reports whether there is nothing to upload
func (f FileCandidate) IsEmpty() bool {
	return f.Name == "" || len(f.Data) == 0
}

// UploadArtifact is produced once per upload and immutable until the next one
type UploadArtifact struct {
	SessionID   core.SessionID    `json:"session_id"`
	Columns     dataset.ColumnSet `json:"columns"`
	DownloadURL string            `json:"download_url"`
	Message     string            `json:"message,omitempty"`
}

// Filename is the final path segment of the download reference. The analysis
// service accepts it as the cleaned-file identifier for every stage call.
func (a UploadArtifact) Filename() string {
	return FilenameFromURL(a.DownloadURL)
}

// FilenameFromURL extracts the final path segment, ignoring any query or fragment
func FilenameFromURL(downloadURL string) string {
	u := downloadURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if u == "" {
		return ""
	}
	return path.Base(u)
}

// ChartKind enumerates the chart types the visualization stage can render
type ChartKind string

const (
	ChartBar       ChartKind = "bar"
	ChartLine      ChartKind = "line"
	ChartHistogram ChartKind = "histogram"
	ChartBox       ChartKind = "box"
	ChartScatter   ChartKind = "scatter"
	ChartPie       ChartKind = "pie"
)

// ChartKinds lists every chart kind in selector order
var ChartKinds = []ChartKind{ChartBar, ChartLine, ChartHistogram, ChartBox, ChartScatter, ChartPie}

// ParseChartKind validates a chart kind name
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ChartKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownChartKind, s)
}

// VisualizationParameters is mutated solely by user input
type VisualizationParameters struct {
	Column    string    `json:"column"`
	ChartKind ChartKind `json:"chart_type"`
}

// DefaultVisualizationParameters picks the first column and a bar chart
func DefaultVisualizationParameters(columns dataset.ColumnSet) VisualizationParameters {
	first, _ := columns.First()
	return VisualizationParameters{Column: first, ChartKind: ChartBar}
}

// Validate checks the parameters against the current column set
func (p VisualizationParameters) Validate(columns dataset.ColumnSet) error {
	if !columns.Contains(p.Column) {
		return fmt.Errorf("%w: %q", core.ErrColumnNotFound, p.Column)
	}
	if _, err := ParseChartKind(string(p.ChartKind)); err != nil {
		return err
	}
	return nil
}

// Summary is the exploratory-analysis result. The service may answer with plain
// text, a JSON object, or both.
type Summary struct {
	Text   string                 `json:"text,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// FeatureSelection is the variance-threshold feature-selection result
type FeatureSelection struct {
	SelectedFeatures []string           `json:"selected_features"`
	Variances        map[string]float64 `json:"variances,omitempty"`
	Threshold        float64            `json:"threshold"`
}

// Visualization references a chart image rendered by the service
type Visualization struct {
	ImageURL   string                  `json:"image_url"`
	Parameters VisualizationParameters `json:"parameters"`
	ChartType  string                  `json:"chart_type,omitempty"` // as reported by the service
	Insight    string                  `json:"insight,omitempty"`
	Anomalies  []float64               `json:"anomalies,omitempty"`
}

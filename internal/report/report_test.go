package report

import (
	"strings"
	"testing"

	"dataexplorer/domain/core"
	domaindataset "dataexplorer/domain/dataset"
	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/dataset"
	"dataexplorer/internal/results"
	"dataexplorer/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadedState(t *testing.T) workflow.State {
	t.Helper()
	table, err := dataset.Materialize("a,b\n1,x|y\n3,4\n")
	require.NoError(t, err)

	params := domain.VisualizationParameters{Column: "a", ChartKind: domain.ChartBar}
	return workflow.State{
		Phase:      domain.PhaseUploaded,
		Upload:     domain.UploadStatus{Outcome: domain.UploadSucceeded},
		Session:    domain.Session{ID: core.SessionID("s-1")},
		HasSession: true,
		Artifact: &domain.UploadArtifact{
			SessionID:   "s-1",
			Columns:     domaindataset.ColumnSet{"a", "b"},
			DownloadURL: "http://svc/download/cleaned_d.csv",
		},
		Columns:    domaindataset.ColumnSet{"a", "b"},
		Parameters: params,
		Results: results.Snapshot{
			Preview: table,
			Summary: stage.Ready(domain.Summary{Text: "EDA Summary: 2 rows", Fields: map[string]interface{}{"rows": 2}}),
			FeatureSelection: stage.Failed[domain.FeatureSelection]("service unavailable"),
			Visualization:    stage.Pending[domain.Visualization](),
			InFlight:         map[stage.StageName]bool{stage.StageVisualization: true},
		},
	}
}

func TestRenderShowsEachSlotIndependently(t *testing.T) {
	md := Render(uploadedState(t))

	assert.True(t, strings.HasPrefix(md, "# Data Explorer Report"))
	assert.Contains(t, md, "- Session: `s-1`")
	assert.Contains(t, md, "[cleaned_d.csv](http://svc/download/cleaned_d.csv)")
	assert.Contains(t, md, "Showing 2 of 2 rows.")
	assert.Contains(t, md, "| a | b |")
	assert.Contains(t, md, `| 1 | x\|y |`)
	assert.Contains(t, md, "EDA Summary: 2 rows")
	assert.Contains(t, md, "- **rows**: 2")
	assert.Contains(t, md, "**Failed:** service unavailable")
	assert.Contains(t, md, "Requested: bar chart of `a`")
	assert.Contains(t, md, "_Running..._")
}

func TestRenderReadyVisualizationAndFeatures(t *testing.T) {
	st := uploadedState(t)
	st.Results.FeatureSelection = stage.Ready(domain.FeatureSelection{
		SelectedFeatures: []string{"a"},
		Variances:        map[string]float64{"b": 0.5, "a": 2},
	})
	st.Results.Visualization = stage.Ready(domain.Visualization{
		ImageURL:   "http://svc/download/a.png",
		Parameters: st.Parameters,
		ChartType:  "histogram",
		Insight:    "Column 'a' has 2 unique values.",
		Anomalies:  []float64{99},
	})

	md := Render(st)
	assert.Contains(t, md, "Selected features: a")
	assert.Less(t, strings.Index(md, "| a | 2.0000 |"), strings.Index(md, "| b | 0.5000 |"))
	assert.Contains(t, md, "![bar chart of a](http://svc/download/a.png)")
	assert.Contains(t, md, "Rendered as: histogram")
	assert.Contains(t, md, "> Column 'a' has 2 unique values.")
	assert.Contains(t, md, "Anomalies: 99")
}

func TestRenderBeforeUpload(t *testing.T) {
	md := Render(workflow.State{Phase: domain.PhaseIdle})
	assert.Contains(t, md, "- Session: none")
	assert.Contains(t, md, "No dataset has been uploaded yet")
	assert.NotContains(t, md, "## Summary")
}

func TestRenderHTML(t *testing.T) {
	out := string(RenderHTML(uploadedState(t)))
	assert.Contains(t, out, "<title>Data Explorer Report</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, `target="_blank"`)
}

package ui

import (
	"context"
	"testing"

	"dataexplorer/domain/core"
	domaindataset "dataexplorer/domain/dataset"
	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/dataset"
	"dataexplorer/internal/results"
	"dataexplorer/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockWorkflow is a mock implementation of Workflow
type MockWorkflow struct {
	mock.Mock
	state workflow.State
	subs  []func(workflow.State)
}

func (m *MockWorkflow) Snapshot() workflow.State { return m.state }

func (m *MockWorkflow) Subscribe(fn func(workflow.State)) func() {
	m.subs = append(m.subs, fn)
	return func() {}
}

func (m *MockWorkflow) Upload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockWorkflow) SetVisualizationParameters(ctx context.Context, params domain.VisualizationParameters) error {
	args := m.Called(ctx, params)
	if err := args.Error(0); err != nil {
		return err
	}
	m.state.Parameters = params
	return nil
}

// issuedParameters lists visualization requests in the order they were made
func (m *MockWorkflow) issuedParameters() []domain.VisualizationParameters {
	var out []domain.VisualizationParameters
	for _, c := range m.Calls {
		if c.Method == "SetVisualizationParameters" {
			out = append(out, c.Arguments.Get(1).(domain.VisualizationParameters))
		}
	}
	return out
}

func (m *MockWorkflow) RetryFailed(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

func (m *MockWorkflow) Ask(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

func uploadedState(t *testing.T) workflow.State {
	t.Helper()
	table, err := dataset.Materialize("a,b\n1,2\n3,4\n")
	require.NoError(t, err)
	columns := domaindataset.ColumnSet{"a", "b"}
	return workflow.State{
		Phase:      domain.PhaseUploaded,
		Session:    domain.Session{ID: core.SessionID("s-1")},
		HasSession: true,
		Artifact:   &domain.UploadArtifact{SessionID: "s-1", Columns: columns, DownloadURL: "http://svc/download/cleaned_d.csv"},
		Columns:    columns,
		Parameters: domain.VisualizationParameters{Column: "a", ChartKind: domain.ChartBar},
		Results: results.Snapshot{
			Preview:          table,
			Summary:          stage.Ready(domain.Summary{Text: "EDA Summary: Data Overview: 2 rows, 2 columns."}),
			FeatureSelection: stage.Failed[domain.FeatureSelection]("service unavailable"),
			Visualization:    stage.Pending[domain.Visualization](),
			InFlight:         map[stage.StageName]bool{stage.StageVisualization: true},
		},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestColumnAndChartKeysFireVisualization(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	ctx := context.Background()
	m := NewModel(ctx, wf, Options{})

	wf.On("SetVisualizationParameters", ctx, domain.VisualizationParameters{Column: "b", ChartKind: domain.ChartBar}).Return(nil).Once()
	m, _ = press(t, m, runes("l"))
	assert.Equal(t, "b", m.state.Parameters.Column)

	wf.On("SetVisualizationParameters", ctx, domain.VisualizationParameters{Column: "b", ChartKind: domain.ChartLine}).Return(nil).Once()
	m, _ = press(t, m, runes("c"))

	// wraps around to the first column
	wf.On("SetVisualizationParameters", ctx, domain.VisualizationParameters{Column: "a", ChartKind: domain.ChartLine}).Return(nil).Once()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})

	wf.AssertExpectations(t)
	assert.Equal(t, domain.VisualizationParameters{Column: "a", ChartKind: domain.ChartLine}, m.state.Parameters)
}

func TestRapidSelectionsIssueInPressOrder(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	ctx := context.Background()
	wf.On("SetVisualizationParameters", ctx, mock.Anything).Return(nil)
	m := NewModel(ctx, wf, Options{})

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	// a refresh between presses must not roll the selection back
	next, _ := m.Update(stateChangedMsg{})
	m = next.(Model)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})

	want := []domain.VisualizationParameters{
		{Column: "a", ChartKind: domain.ChartPie},
		{Column: "a", ChartKind: domain.ChartScatter},
	}
	assert.Equal(t, want, wf.issuedParameters())
	assert.Equal(t, want[1], wf.Snapshot().Parameters)
	assert.Equal(t, want[1], m.state.Parameters)
}

func TestVisualizationErrorShown(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	ctx := context.Background()
	wf.On("SetVisualizationParameters", ctx, mock.Anything).Return(assert.AnError)
	m := NewModel(ctx, wf, Options{})

	m, cmd := press(t, m, runes("l"))
	assert.Nil(t, cmd)
	assert.Equal(t, "a", m.state.Parameters.Column)
	assert.Contains(t, m.View(), assert.AnError.Error())
}

func TestSelectorsIgnoredBeforeUpload(t *testing.T) {
	wf := &MockWorkflow{state: workflow.State{Phase: domain.PhaseIdle}}
	m := NewModel(context.Background(), wf, Options{})

	_, cmd := press(t, m, runes("l"))
	assert.Nil(t, cmd)
	wf.AssertNotCalled(t, "SetVisualizationParameters", mock.Anything, mock.Anything)
}

func TestRetryKey(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	ctx := context.Background()
	wf.On("RetryFailed", ctx).Return(1)
	m := NewModel(ctx, wf, Options{})

	m, cmd := press(t, m, runes("r"))
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	assert.Contains(t, next.(Model).View(), "1 stage retried")
}

func TestAskFlow(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	ctx := context.Background()
	wf.On("Ask", ctx, "rows?").Return("There are 2 rows.", nil)
	m := NewModel(ctx, wf, Options{})

	m, _ = press(t, m, runes("a"))
	assert.True(t, m.asking)
	m, _ = press(t, m, runes("rows?"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.asking)
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	view := next.(Model).View()
	assert.Contains(t, view, "Q: rows?")
	assert.Contains(t, view, "There are 2 rows.")
}

func TestViewRendersSlotsIndependently(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	m := NewModel(context.Background(), wf, Options{})

	view := m.View()
	assert.Contains(t, view, "Preview (2 of 2 rows)")
	assert.Contains(t, view, "EDA Summary: Data Overview")
	assert.Contains(t, view, "failed: service unavailable")
	assert.Contains(t, view, "press r to retry")
	assert.Contains(t, view, "running")
}

func TestStateChangeRefreshesSnapshot(t *testing.T) {
	wf := &MockWorkflow{state: uploadedState(t)}
	m := NewModel(context.Background(), wf, Options{})
	require.Len(t, wf.subs, 1)

	st := uploadedState(t)
	st.Results.Visualization = stage.Ready(domain.Visualization{
		ImageURL:   "http://svc/download/a_bar.png",
		Parameters: st.Parameters,
		Insight:    "Column 'a' has 2 unique values.",
	})
	st.Results.InFlight = map[stage.StageName]bool{}
	wf.state = st
	wf.subs[0](st)

	next, cmd := m.Update(stateChangedMsg{})
	assert.NotNil(t, cmd)
	view := next.(Model).View()
	assert.Contains(t, view, "http://svc/download/a_bar.png")
	assert.Contains(t, view, "Column 'a' has 2 unique values.")
}

func TestUploadFailureShown(t *testing.T) {
	st := workflow.State{
		Phase:     domain.PhaseIdle,
		Candidate: "d.csv",
		Upload:    domain.UploadStatus{Outcome: domain.UploadFailed, Reason: "upload failed: 502"},
	}
	wf := &MockWorkflow{state: st}
	m := NewModel(context.Background(), wf, Options{})
	assert.Contains(t, m.View(), "upload failed: 502")
	assert.Contains(t, m.View(), "d.csv (not uploaded)")
}

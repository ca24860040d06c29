package results

import (
	"fmt"
	"sync"
	"testing"

	"dataexplorer/domain/core"
	"dataexplorer/domain/dataset"
	"dataexplorer/domain/stage"
	"dataexplorer/domain/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewTable() *dataset.Table {
	return &dataset.Table{
		Columns:   dataset.ColumnSet{"a", "b"},
		Rows:      []dataset.CleanedRow{dataset.NewRow(dataset.ColumnSet{"a", "b"}, []string{"1", "2"})},
		TotalRows: 1,
	}
}

func TestNewCacheIsEmpty(t *testing.T) {
	c := NewCache()
	snap := c.Snapshot()

	assert.Nil(t, snap.Preview)
	assert.True(t, snap.Summary.IsPending())
	assert.True(t, snap.FeatureSelection.IsPending())
	assert.True(t, snap.Visualization.IsPending())
	assert.False(t, snap.HasResults())
	assert.False(t, c.HasResults())
}

func TestBeginRejectsUnknownStage(t *testing.T) {
	_, err := NewCache().Begin("predict")
	assert.ErrorIs(t, err, core.ErrUnknownStage)
}

func TestLatestIssuedWinsRegardlessOfArrivalOrder(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	first, err := c.Begin(stage.StageVisualization)
	require.NoError(t, err)
	second, err := c.Begin(stage.StageVisualization)
	require.NoError(t, err)

	newer := workflow.Visualization{ImageURL: "/static/second.png"}
	older := workflow.Visualization{ImageURL: "/static/first.png"}

	assert.True(t, c.SetVisualization(second, stage.Ready(newer)))
	assert.False(t, c.SetVisualization(first, stage.Ready(older)), "older ticket must be discarded")

	assert.Equal(t, "/static/second.png", c.Snapshot().Visualization.Value.ImageURL)
}

func TestOlderResponseIsDiscardedEvenBeforeNewerArrives(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	first, _ := c.Begin(stage.StageSummary)
	_, _ = c.Begin(stage.StageSummary)

	assert.False(t, c.SetSummary(first, stage.Ready(workflow.Summary{Text: "stale"})))
	snap := c.Snapshot()
	assert.True(t, snap.Summary.IsPending())
	assert.True(t, snap.InFlight[stage.StageSummary])
}

func TestResetDiscardsOutstandingTickets(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	ticket, _ := c.Begin(stage.StageFeatureSelection)
	epoch := c.Reset(previewTable())

	assert.Equal(t, int64(2), epoch)
	assert.False(t, c.Current(ticket))
	assert.False(t, c.SetFeatureSelection(ticket, stage.Ready(workflow.FeatureSelection{SelectedFeatures: []string{"a"}})))
	assert.True(t, c.Snapshot().FeatureSelection.IsPending())
}

func TestResetClearsEverySlot(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	s, _ := c.Begin(stage.StageSummary)
	f, _ := c.Begin(stage.StageFeatureSelection)
	v, _ := c.Begin(stage.StageVisualization)
	require.True(t, c.SetSummary(s, stage.Ready(workflow.Summary{Text: "ok"})))
	require.True(t, c.SetFailed(f, "boom"))
	require.True(t, c.SetVisualization(v, stage.Ready(workflow.Visualization{ImageURL: "x.png"})))

	fresh := &dataset.Table{Columns: dataset.ColumnSet{"z"}, Rows: []dataset.CleanedRow{}}
	c.Reset(fresh)

	snap := c.Snapshot()
	assert.True(t, snap.Summary.IsPending())
	assert.True(t, snap.FeatureSelection.IsPending())
	assert.True(t, snap.Visualization.IsPending())
	assert.Equal(t, dataset.ColumnSet{"z"}, snap.Preview.Columns)
	assert.Empty(t, snap.InFlight)
}

func TestSlotsAreIndependent(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	s, _ := c.Begin(stage.StageSummary)
	f, _ := c.Begin(stage.StageFeatureSelection)
	v, _ := c.Begin(stage.StageVisualization)

	require.True(t, c.SetFailed(s, "eda crashed"))
	require.True(t, c.SetFeatureSelection(f, stage.Ready(workflow.FeatureSelection{SelectedFeatures: []string{"a", "b"}})))

	snap := c.Snapshot()
	assert.True(t, snap.Summary.IsFailed())
	assert.Equal(t, "eda crashed", snap.Reason(stage.StageSummary))
	assert.True(t, snap.FeatureSelection.IsReady())
	assert.True(t, snap.Visualization.IsPending())
	assert.True(t, snap.InFlight[stage.StageVisualization])
	assert.False(t, snap.InFlight[stage.StageSummary])

	require.True(t, c.SetVisualization(v, stage.Ready(workflow.Visualization{ImageURL: "c.png"})))
	assert.Equal(t, stage.StatusReady, c.Snapshot().Status(stage.StageVisualization))
	assert.True(t, c.Snapshot().Summary.IsFailed())
}

func TestTicketMustMatchSlot(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	s, _ := c.Begin(stage.StageSummary)
	assert.False(t, c.SetVisualization(s, stage.Ready(workflow.Visualization{ImageURL: "x"})))
	assert.True(t, c.Snapshot().Visualization.IsPending())
}

func TestPendingIsNeverWrittenBack(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	s, _ := c.Begin(stage.StageSummary)
	require.True(t, c.SetSummary(s, stage.Ready(workflow.Summary{Text: "done"})))

	again, _ := c.Begin(stage.StageSummary)
	assert.False(t, c.SetSummary(again, stage.Pending[workflow.Summary]()))
	assert.True(t, c.Snapshot().Summary.IsReady())
}

func TestFailedSlotCanBeReplacedByNewerRequest(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	first, _ := c.Begin(stage.StageFeatureSelection)
	require.True(t, c.SetFailed(first, "timeout"))

	retry, _ := c.Begin(stage.StageFeatureSelection)
	require.True(t, c.SetFeatureSelection(retry, stage.Ready(workflow.FeatureSelection{SelectedFeatures: []string{"a"}})))
	assert.True(t, c.Snapshot().FeatureSelection.IsReady())
}

func TestHasResultsDerivesFromContent(t *testing.T) {
	c := NewCache()
	assert.False(t, c.HasResults())

	c.Reset(nil)
	assert.False(t, c.HasResults())

	v, _ := c.Begin(stage.StageVisualization)
	require.True(t, c.SetFailed(v, "dataset has no columns"))
	assert.True(t, c.HasResults())

	// a preview with every stage still pending is not a result
	c.Reset(previewTable())
	snap := c.Snapshot()
	require.NotNil(t, snap.Preview)
	assert.True(t, snap.Summary.IsPending())
	assert.False(t, snap.HasResults())
	assert.False(t, c.HasResults())

	s, _ := c.Begin(stage.StageSummary)
	require.True(t, c.SetSummary(s, stage.Ready(workflow.Summary{Text: "ok"})))
	assert.True(t, c.HasResults())
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	snap := c.Snapshot()
	snap.Preview.Columns[0] = "mutated"
	assert.Equal(t, "a", c.Preview().Columns[0])
}

func TestConcurrentWritersKeepNewestTicket(t *testing.T) {
	c := NewCache()
	c.Reset(previewTable())

	const n = 50
	tickets := make([]Ticket, n)
	for i := range tickets {
		tickets[i], _ = c.Begin(stage.StageVisualization)
	}

	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.SetVisualization(tickets[i], stage.Ready(workflow.Visualization{ImageURL: fmt.Sprintf("chart-%d.png", i)}))
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	require.True(t, snap.Visualization.IsReady())
	assert.Equal(t, fmt.Sprintf("chart-%d.png", n-1), snap.Visualization.Value.ImageURL)
	assert.False(t, snap.InFlight[stage.StageVisualization])
}

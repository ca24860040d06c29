package results

import (
	"fmt"
	"sync"

	"dataexplorer/domain/core"
	"dataexplorer/domain/dataset"
	"dataexplorer/domain/stage"
	"dataexplorer/domain/workflow"
)

// Ticket tags a single stage request. A result is applied only when its ticket
// is still the newest one issued for that stage in the current epoch.
type Ticket struct {
	Stage stage.StageName `json:"stage"`
	Epoch int64           `json:"epoch"`
	Seq   int64           `json:"seq"`
}

// Snapshot is an immutable copy of the cache
type Snapshot struct {
	Epoch            int64
	Preview          *dataset.Table
	Summary          stage.StageResult[workflow.Summary]
	FeatureSelection stage.StageResult[workflow.FeatureSelection]
	Visualization    stage.StageResult[workflow.Visualization]
	InFlight         map[stage.StageName]bool
}

// HasResults is true once any stage slot has left Pending. The preview alone
// does not count.
func (s Snapshot) HasResults() bool {
	return !s.Summary.IsPending() || !s.FeatureSelection.IsPending() || !s.Visualization.IsPending()
}

// Status returns the lifecycle tag of one slot
func (s Snapshot) Status(name stage.StageName) stage.Status {
	switch name {
	case stage.StageSummary:
		return s.Summary.Status
	case stage.StageFeatureSelection:
		return s.FeatureSelection.Status
	case stage.StageVisualization:
		return s.Visualization.Status
	}
	return ""
}

// Reason returns the failure reason of one slot, if any
func (s Snapshot) Reason(name stage.StageName) string {
	switch name {
	case stage.StageSummary:
		return s.Summary.Reason
	case stage.StageFeatureSelection:
		return s.FeatureSelection.Reason
	case stage.StageVisualization:
		return s.Visualization.Reason
	}
	return ""
}

// Cache holds the preview table and one result slot per stage. Writes are
// last-issued-wins: a late response from an older request never overwrites a
// newer one, and nothing from a previous epoch survives Reset.
type Cache struct {
	mu  sync.RWMutex
	seq *SequenceManager

	epoch   int64
	latest  map[stage.StageName]int64
	applied map[stage.StageName]int64

	preview          *dataset.Table
	summary          stage.StageResult[workflow.Summary]
	featureSelection stage.StageResult[workflow.FeatureSelection]
	visualization    stage.StageResult[workflow.Visualization]
}

// NewCache returns an empty cache with every slot Pending
func NewCache() *Cache {
	c := &Cache{seq: NewSequenceManager()}
	c.clear()
	return c
}

func (c *Cache) clear() {
	c.latest = make(map[stage.StageName]int64, len(stage.AllStages))
	c.applied = make(map[stage.StageName]int64, len(stage.AllStages))
	c.preview = nil
	c.summary = stage.Pending[workflow.Summary]()
	c.featureSelection = stage.Pending[workflow.FeatureSelection]()
	c.visualization = stage.Pending[workflow.Visualization]()
}

// Reset starts a new epoch: all slots return to Pending, outstanding tickets
// become stale, and preview (which may be nil) replaces the old table.
func (c *Cache) Reset(preview *dataset.Table) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.clear()
	c.preview = preview
	return c.epoch
}

// Begin issues a ticket for a new request on the named stage
func (c *Cache) Begin(name stage.StageName) (Ticket, error) {
	if !knownStage(name) {
		return Ticket{}, fmt.Errorf("%w: %q", core.ErrUnknownStage, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := Ticket{Stage: name, Epoch: c.epoch, Seq: c.seq.Next()}
	c.latest[name] = t.Seq
	return t, nil
}

// Current reports whether t is still the newest ticket for its stage
func (c *Cache) Current(t Ticket) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acceptsLocked(t)
}

func (c *Cache) acceptsLocked(t Ticket) bool {
	return t.Epoch == c.epoch && t.Seq != 0 && c.latest[t.Stage] == t.Seq
}

// SetSummary applies r if t is current. It returns false when the write was
// discarded as stale.
func (c *Cache) SetSummary(t Ticket, r stage.StageResult[workflow.Summary]) bool {
	if t.Stage != stage.StageSummary || r.IsPending() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptsLocked(t) {
		return false
	}
	c.summary = r
	c.applied[t.Stage] = t.Seq
	return true
}

// SetFeatureSelection applies r if t is current
func (c *Cache) SetFeatureSelection(t Ticket, r stage.StageResult[workflow.FeatureSelection]) bool {
	if t.Stage != stage.StageFeatureSelection || r.IsPending() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptsLocked(t) {
		return false
	}
	c.featureSelection = r
	c.applied[t.Stage] = t.Seq
	return true
}

// SetVisualization applies r if t is current
func (c *Cache) SetVisualization(t Ticket, r stage.StageResult[workflow.Visualization]) bool {
	if t.Stage != stage.StageVisualization || r.IsPending() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptsLocked(t) {
		return false
	}
	c.visualization = r
	c.applied[t.Stage] = t.Seq
	return true
}

// SetFailed records a failure on whichever stage t belongs to
func (c *Cache) SetFailed(t Ticket, reason string) bool {
	switch t.Stage {
	case stage.StageSummary:
		return c.SetSummary(t, stage.Failed[workflow.Summary](reason))
	case stage.StageFeatureSelection:
		return c.SetFeatureSelection(t, stage.Failed[workflow.FeatureSelection](reason))
	case stage.StageVisualization:
		return c.SetVisualization(t, stage.Failed[workflow.Visualization](reason))
	}
	return false
}

// Preview returns the current preview table, or nil before the first upload
func (c *Cache) Preview() *dataset.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preview
}

// Epoch returns the current epoch
func (c *Cache) Epoch() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Snapshot copies the cache under a read lock
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inFlight := make(map[stage.StageName]bool, len(c.latest))
	for name, seq := range c.latest {
		inFlight[name] = seq > c.applied[name]
	}

	var preview *dataset.Table
	if c.preview != nil {
		preview = c.preview.Clone()
	}

	return Snapshot{
		Epoch:            c.epoch,
		Preview:          preview,
		Summary:          c.summary,
		FeatureSelection: c.featureSelection,
		Visualization:    c.visualization,
		InFlight:         inFlight,
	}
}

// HasResults reports whether any stage result is available to display
func (c *Cache) HasResults() bool {
	return c.Snapshot().HasResults()
}

func knownStage(name stage.StageName) bool {
	for _, s := range stage.AllStages {
		if s == name {
			return true
		}
	}
	return false
}

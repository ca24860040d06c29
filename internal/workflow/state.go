package workflow

import (
	domaindataset "dataexplorer/domain/dataset"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/results"
)

// State is an immutable view of everything a renderer needs
type State struct {
	Phase      domain.Phase
	Candidate  string
	Upload     domain.UploadStatus
	Session    domain.Session
	HasSession bool
	Artifact   *domain.UploadArtifact
	Columns    domaindataset.ColumnSet
	Parameters domain.VisualizationParameters
	Results    results.Snapshot
}

// HasResults is derived from the result slots, never stored
func (s State) HasResults() bool {
	return s.Results.HasResults()
}

// Snapshot returns the current state
func (o *Orchestrator) Snapshot() State {
	sess, hasSession := o.sessions.Get()

	o.mu.RLock()
	defer o.mu.RUnlock()

	st := State{
		Phase:      o.phase,
		Candidate:  o.candidate.Name,
		Upload:     o.status,
		Session:    sess,
		HasSession: hasSession,
		Parameters: o.params,
		Results:    o.cache.Snapshot(),
		Columns:    domaindataset.ColumnSet{},
	}
	if o.artifact != nil {
		a := *o.artifact
		a.Columns = o.artifact.Columns.Clone()
		st.Artifact = &a
		st.Columns = a.Columns.Clone()
	}
	return st
}

// Subscribe registers fn for every state change; the returned func
// unsubscribes. fn may be called from stage goroutines concurrently.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.subMu.Unlock()

	return func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

func (o *Orchestrator) notify() {
	o.subMu.Lock()
	if len(o.subs) == 0 {
		o.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subMu.Unlock()

	st := o.Snapshot()
	for _, fn := range fns {
		fn(st)
	}
}

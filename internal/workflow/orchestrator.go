package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dataexplorer/domain/core"
	domaindataset "dataexplorer/domain/dataset"
	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal"
	"dataexplorer/internal/dataset"
	"dataexplorer/internal/errors"
	"dataexplorer/internal/metrics"
	"dataexplorer/internal/results"
	"dataexplorer/internal/session"
	"dataexplorer/ports"

	"golang.org/x/sync/errgroup"
)

// noColumnsReason is recorded on the visualization slot when the upload
// produced no columns to chart
const noColumnsReason = "dataset has no columns"

// Options tunes the orchestrator
type Options struct {
	StageTimeout     time.Duration
	FeatureThreshold float64
	Preview          dataset.Options
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		StageTimeout: 2 * time.Minute,
		Preview:      dataset.DefaultOptions(),
	}
}

// Orchestrator owns the upload lifecycle and drives the three analysis stages.
// All state transitions happen under mu; stage goroutines only write through
// the result cache, which discards anything superseded.
type Orchestrator struct {
	service  ports.AnalysisService
	sessions *session.Store
	cache    *results.Cache
	preview  *dataset.PreviewBuilder
	recorder *metrics.Recorder
	logger   *internal.Logger
	opts     Options

	root   context.Context
	cancel context.CancelFunc
	stages errgroup.Group

	mu        sync.RWMutex
	phase     domain.Phase
	candidate domain.FileCandidate
	status    domain.UploadStatus
	artifact  *domain.UploadArtifact
	params    domain.VisualizationParameters

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// NewOrchestrator wires the orchestrator. recorder may be nil.
func NewOrchestrator(
	service ports.AnalysisService,
	sessions *session.Store,
	sheets dataset.RecordReader,
	recorder *metrics.Recorder,
	logger *internal.Logger,
	opts Options,
) *Orchestrator {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultOptions().StageTimeout
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	root, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		service:  service,
		sessions: sessions,
		cache:    results.NewCache(),
		preview:  dataset.NewPreviewBuilder(opts.Preview, sheets),
		recorder: recorder,
		logger:   logger.WithComponent("Orchestrator"),
		opts:     opts,
		root:     root,
		cancel:   cancel,
		phase:    domain.PhaseIdle,
		subs:     make(map[int]func(State)),
	}
}

// SelectFile stages a file for the next upload. Nothing else changes.
func (o *Orchestrator) SelectFile(file domain.FileCandidate) {
	o.mu.Lock()
	o.candidate = file
	o.mu.Unlock()
	o.notify()
}

// Upload sends the staged file, fetches and previews the cleaned result, then
// starts every analysis stage. On failure the previous phase, session and
// results are left exactly as they were.
func (o *Orchestrator) Upload(ctx context.Context) error {
	o.mu.Lock()
	if o.phase == domain.PhaseUploading {
		o.mu.Unlock()
		return errors.New(errors.CodeUploadInProgress, "an upload is already in progress")
	}
	if o.candidate.IsEmpty() {
		err := errors.New(errors.CodeNoFile, "no file selected")
		o.status = domain.UploadStatus{Outcome: domain.UploadFailed, Code: err.Code, Reason: err.Message}
		o.mu.Unlock()
		o.recorder.ObserveUpload(metrics.UploadFailed)
		o.notify()
		return err
	}
	previous := o.phase
	file := o.candidate
	o.phase = domain.PhaseUploading
	o.status = domain.UploadStatus{}
	o.mu.Unlock()
	o.notify()

	o.logger.Info("uploading %s (%d bytes)", file.Name, len(file.Data))
	artifact, table, err := o.transfer(ctx, file)
	if err != nil {
		return o.failUpload(previous, err)
	}

	o.mu.Lock()
	o.cache.Reset(table)
	o.artifact = artifact
	o.params = domain.DefaultVisualizationParameters(artifact.Columns)
	o.phase = domain.PhaseUploaded
	o.status = domain.UploadStatus{Outcome: domain.UploadSucceeded}
	launches := o.beginInitialStagesLocked()
	o.mu.Unlock()

	if err := o.sessions.Set(ctx, domain.Session{ID: artifact.SessionID}); err != nil {
		o.logger.Warn("session %s is active but was not persisted: %v", artifact.SessionID, err)
	}
	o.recorder.ObserveUpload(metrics.UploadSucceeded)
	o.logger.Info("upload complete: %s, %d columns, %d rows previewed of %d",
		artifact.Filename(), len(artifact.Columns), len(table.Rows), table.TotalRows)
	o.notify()

	for _, l := range launches {
		o.launch(l)
	}
	return nil
}

// transfer performs the two network calls of an upload and builds the preview
func (o *Orchestrator) transfer(ctx context.Context, file domain.FileCandidate) (*domain.UploadArtifact, *domaindataset.Table, error) {
	resp, err := o.service.Upload(ctx, file)
	if err != nil {
		return nil, nil, errors.UploadFailed(err)
	}

	body, err := o.service.FetchCleanedFile(ctx, resp.DownloadURL)
	if err != nil {
		return nil, nil, errors.FetchCleanedFileFailed(err)
	}

	artifact := &domain.UploadArtifact{
		SessionID:   resp.SessionID,
		Columns:     uniqueOrdered(resp.Columns),
		DownloadURL: resp.DownloadURL,
		Message:     resp.Message,
	}
	if artifact.Filename() == "" {
		return nil, nil, errors.UploadFailed(fmt.Errorf("download reference %q has no file name", resp.DownloadURL))
	}

	table, err := o.preview.Build(artifact.Filename(), body)
	if err != nil {
		return nil, nil, errors.FetchCleanedFileFailed(err)
	}
	if len(artifact.Columns) == 0 {
		artifact.Columns = table.Columns.Clone()
	}
	if artifact.SessionID.IsEmpty() {
		// Services that do not issue session ids are scoped by cleaned file.
		artifact.SessionID = core.SessionID(artifact.Filename())
	}
	return artifact, table, nil
}

func (o *Orchestrator) failUpload(previous domain.Phase, err error) error {
	o.mu.Lock()
	o.phase = previous
	o.status = domain.UploadStatus{
		Outcome: domain.UploadFailed,
		Code:    errors.GetCode(err),
		Reason:  err.Error(),
	}
	o.mu.Unlock()

	o.recorder.ObserveUpload(metrics.UploadFailed)
	o.logger.Warn("upload failed: %v", err)
	o.notify()
	return err
}

// stageLaunch is one stage request bound to its ticket and inputs
type stageLaunch struct {
	ticket   results.Ticket
	filename string
	params   domain.VisualizationParameters
}

// beginInitialStagesLocked issues tickets for the three post-upload requests.
// Caller holds mu.
func (o *Orchestrator) beginInitialStagesLocked() []stageLaunch {
	filename := o.artifact.Filename()
	launches := make([]stageLaunch, 0, len(stage.AllStages))
	for _, name := range stage.AllStages {
		ticket, err := o.cache.Begin(name)
		if err != nil {
			o.logger.Error("cannot start %s: %v", name, err)
			continue
		}
		if name == stage.StageVisualization && len(o.artifact.Columns) == 0 {
			o.cache.SetFailed(ticket, noColumnsReason)
			continue
		}
		launches = append(launches, stageLaunch{ticket: ticket, filename: filename, params: o.params})
	}
	return launches
}

// SetVisualizationParameters records new chart parameters and issues exactly
// one new visualization request. Only the most recently issued request can
// land in the slot.
func (o *Orchestrator) SetVisualizationParameters(ctx context.Context, params domain.VisualizationParameters) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "visualization not requested")
	}
	o.mu.Lock()
	if o.phase != domain.PhaseUploaded || o.artifact == nil {
		o.mu.Unlock()
		return errors.InvalidState("visualization parameters can only be set after a successful upload")
	}
	if err := params.Validate(o.artifact.Columns); err != nil {
		o.mu.Unlock()
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
	ticket, err := o.cache.Begin(stage.StageVisualization)
	if err != nil {
		o.mu.Unlock()
		return errors.Wrap(err, "failed to start visualization")
	}
	o.params = params
	launch := stageLaunch{ticket: ticket, filename: o.artifact.Filename(), params: params}
	o.mu.Unlock()

	o.logger.Debug("visualization requested: column=%s chart=%s seq=%d", params.Column, params.ChartKind, ticket.Seq)
	o.notify()
	o.launch(launch)
	return nil
}

// Retry re-issues a failed stage with the current inputs
func (o *Orchestrator) Retry(ctx context.Context, name stage.StageName) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "retry not issued")
	}
	o.mu.Lock()
	if o.phase != domain.PhaseUploaded || o.artifact == nil {
		o.mu.Unlock()
		return errors.InvalidState("nothing to retry before a successful upload")
	}
	if status := o.cache.Snapshot().Status(name); status != stage.StatusFailed {
		o.mu.Unlock()
		if status == "" {
			return errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("%w: %q", core.ErrUnknownStage, name))
		}
		return errors.InvalidState(fmt.Sprintf("stage %s is %s, only failed stages can be retried", name, status))
	}
	if name == stage.StageVisualization && len(o.artifact.Columns) == 0 {
		o.mu.Unlock()
		return errors.InvalidState(noColumnsReason)
	}
	ticket, err := o.cache.Begin(name)
	if err != nil {
		o.mu.Unlock()
		return errors.Wrap(err, "failed to retry stage")
	}
	launch := stageLaunch{ticket: ticket, filename: o.artifact.Filename(), params: o.params}
	o.mu.Unlock()

	o.logger.Info("retrying %s", name)
	o.notify()
	o.launch(launch)
	return nil
}

// RetryFailed retries every stage currently in Failed and reports how many
// were re-issued. It stops early once ctx is done.
func (o *Orchestrator) RetryFailed(ctx context.Context) int {
	n := 0
	for _, name := range stage.AllStages {
		if ctx.Err() != nil {
			break
		}
		if o.Snapshot().Results.Status(name) != stage.StatusFailed {
			continue
		}
		if err := o.Retry(ctx, name); err == nil {
			n++
		}
	}
	return n
}

// Ask sends a free-form question about the active session's dataset. The
// session may come from an earlier run restored from storage.
func (o *Orchestrator) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.InvalidInput("question must not be empty")
	}
	sess, ok := o.sessions.Get()
	if !ok || sess.ID.IsEmpty() {
		return "", errors.NoSession()
	}
	answer, err := o.service.Ask(ctx, ports.AskRequest{SessionID: sess.ID, Question: question})
	if err != nil {
		return "", errors.Wrap(err, "ask failed")
	}
	return answer, nil
}

func (o *Orchestrator) launch(l stageLaunch) {
	o.stages.Go(func() error {
		o.runStage(l)
		return nil
	})
}

// runStage performs one remote stage call and writes its outcome to the slot.
// Failures and panics never escape; they become Failed results.
func (o *Orchestrator) runStage(l stageLaunch) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(o.root, o.opts.StageTimeout)
	defer cancel()

	outcome := metrics.OutcomeStale
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in %s stage: %v", l.ticket.Stage, r)
			if o.cache.SetFailed(l.ticket, fmt.Sprintf("internal error: %v", r)) {
				outcome = metrics.OutcomeFailed
			}
		}
		o.recorder.ObserveStage(string(l.ticket.Stage), outcome, time.Since(start))
		o.logger.Debug("%s seq=%d finished as %s in %s", l.ticket.Stage, l.ticket.Seq, outcome, time.Since(start).Round(time.Millisecond))
		o.notify()
	}()

	var err error
	applied := false
	switch l.ticket.Stage {
	case stage.StageSummary:
		var summary *domain.Summary
		if summary, err = o.service.RunSummary(ctx, l.filename); err == nil {
			applied = o.cache.SetSummary(l.ticket, stage.Ready(*summary))
		}
	case stage.StageFeatureSelection:
		var fs *domain.FeatureSelection
		req := ports.FeatureSelectionRequest{Filename: l.filename, Threshold: o.opts.FeatureThreshold}
		if fs, err = o.service.RunFeatureSelection(ctx, req); err == nil {
			applied = o.cache.SetFeatureSelection(l.ticket, stage.Ready(*fs))
		}
	case stage.StageVisualization:
		var viz *domain.Visualization
		req := ports.VisualizationRequest{Filename: l.filename, Parameters: l.params}
		if viz, err = o.service.RunVisualization(ctx, req); err == nil {
			applied = o.cache.SetVisualization(l.ticket, stage.Ready(*viz))
		}
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownStage, l.ticket.Stage)
	}

	if err != nil {
		reason := o.failureReason(ctx, err)
		if o.cache.SetFailed(l.ticket, reason) {
			outcome = metrics.OutcomeFailed
			o.logger.Warn("%s failed: %s", l.ticket.Stage, reason)
		}
		return
	}
	if applied {
		outcome = metrics.OutcomeReady
	}
}

func (o *Orchestrator) failureReason(ctx context.Context, err error) string {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", o.opts.StageTimeout)
	}
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}

// Wait blocks until every stage request launched so far has finished
func (o *Orchestrator) Wait() {
	_ = o.stages.Wait()
}

// Close cancels in-flight stage requests and waits for them to finish
func (o *Orchestrator) Close() {
	o.cancel()
	o.Wait()
}

// uniqueOrdered drops blank and repeated names, keeping first occurrence
func uniqueOrdered(columns []string) domaindataset.ColumnSet {
	out := make(domaindataset.ColumnSet, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

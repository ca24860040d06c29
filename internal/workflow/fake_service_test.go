package workflow

import (
	"context"
	"fmt"
	"sync"

	"dataexplorer/domain/core"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/ports"
)

// fakeService is a scriptable AnalysisService. Gates block a call until closed
// or until the call's context ends.
type fakeService struct {
	mu sync.Mutex

	upload      *ports.UploadResponse
	uploadErr   error
	uploadGate  chan struct{}
	files       map[string][]byte
	fetchErr    error
	summaryErr  error
	featureErr  error
	vizErr      error
	askAnswer   string
	panicStage  string
	summaryGate map[string]chan struct{} // by filename
	vizGate     map[string]chan struct{} // by column

	calls       map[string]int
	vizRequests []ports.VisualizationRequest
	asked       []ports.AskRequest
}

func newFakeService() *fakeService {
	return &fakeService{
		files:       make(map[string][]byte),
		summaryGate: make(map[string]chan struct{}),
		vizGate:     make(map[string]chan struct{}),
		calls:       make(map[string]int),
		askAnswer:   "42",
	}
}

// stage prepares the next upload to return filename with the given CSV body
func (f *fakeService) stage(sessionID, filename, csv string, columns ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "http://svc/download/" + filename
	f.upload = &ports.UploadResponse{
		SessionID:   core.SessionID(sessionID),
		Columns:     columns,
		DownloadURL: url,
		Message:     "ok",
	}
	f.files[url] = []byte(csv)
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) enter(name string) {
	f.mu.Lock()
	f.calls[name]++
	panicking := f.panicStage == name
	f.mu.Unlock()
	if panicking {
		panic(name + " exploded")
	}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) Upload(ctx context.Context, file domain.FileCandidate) (*ports.UploadResponse, error) {
	f.enter("upload")
	f.mu.Lock()
	gate, resp, err := f.uploadGate, f.upload, f.uploadErr
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("no upload staged")
	}
	out := *resp
	return &out, nil
}

func (f *fakeService) FetchCleanedFile(ctx context.Context, downloadURL string) ([]byte, error) {
	f.enter("download")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	body, ok := f.files[downloadURL]
	if !ok {
		return nil, fmt.Errorf("no file at %s", downloadURL)
	}
	return body, nil
}

func (f *fakeService) RunSummary(ctx context.Context, filename string) (*domain.Summary, error) {
	f.enter("summary")
	f.mu.Lock()
	gate, err := f.summaryGate[filename], f.summaryErr
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &domain.Summary{Text: "summary of " + filename}, nil
}

func (f *fakeService) RunFeatureSelection(ctx context.Context, req ports.FeatureSelectionRequest) (*domain.FeatureSelection, error) {
	f.enter("feature_selection")
	f.mu.Lock()
	err := f.featureErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &domain.FeatureSelection{SelectedFeatures: []string{"a"}, Threshold: req.Threshold}, nil
}

func (f *fakeService) RunVisualization(ctx context.Context, req ports.VisualizationRequest) (*domain.Visualization, error) {
	f.enter("visualization")
	f.mu.Lock()
	f.vizRequests = append(f.vizRequests, req)
	gate, err := f.vizGate[req.Parameters.Column], f.vizErr
	f.mu.Unlock()
	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &domain.Visualization{
		ImageURL:   fmt.Sprintf("http://svc/download/%s_%s.png", req.Parameters.Column, req.Parameters.ChartKind),
		Parameters: req.Parameters,
	}, nil
}

func (f *fakeService) Ask(ctx context.Context, req ports.AskRequest) (string, error) {
	f.enter("ask")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, req)
	return f.askAnswer, nil
}

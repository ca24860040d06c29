package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dataexplorer/domain/core"
	"dataexplorer/domain/workflow"
	"dataexplorer/internal"
	"dataexplorer/internal/errors"
	"dataexplorer/internal/testkit"
	"dataexplorer/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKitClient(t *testing.T) (*Client, *testkit.TestKit) {
	t.Helper()
	kit, err := testkit.NewTestKit(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(kit.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = kit.URL()
	cfg.Timeout = 5 * time.Second
	cfg.RateLimit = 1000
	cfg.RateBurst = 100
	client, err := NewClient(cfg, internal.Discard())
	require.NoError(t, err)
	return client, kit
}

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	client, err := NewClient(cfg, internal.Discard())
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Timeout = 0
	_, err := NewClient(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestUploadAndFetchCleanedFile(t *testing.T) {
	client, _ := newKitClient(t)
	ctx := context.Background()

	resp, err := client.Upload(ctx, workflow.FileCandidate{Name: "data.csv", Data: testkit.SimpleCSV()})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, resp.Columns)
	assert.False(t, resp.SessionID.IsEmpty())
	assert.Equal(t, "cleaned_data.csv", workflow.FilenameFromURL(resp.DownloadURL))
	assert.NotEmpty(t, resp.Message)

	body, err := client.FetchCleanedFile(ctx, resp.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(body))
}

func TestUploadRequiresFile(t *testing.T) {
	client, kit := newKitClient(t)
	_, err := client.Upload(context.Background(), workflow.FileCandidate{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNoFile, errors.GetCode(err))
	assert.Equal(t, 0, kit.Server.Calls(testkit.EndpointUpload))
}

func TestUploadFailures(t *testing.T) {
	client, kit := newKitClient(t)
	ctx := context.Background()
	file := workflow.FileCandidate{Name: "data.csv", Data: testkit.SimpleCSV()}

	kit.Server.SetHook(testkit.EndpointUpload, testkit.Hook{Status: http.StatusBadGateway})
	_, err := client.Upload(ctx, file)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Contains(t, err.Error(), "502")

	kit.Server.SetHook(testkit.EndpointUpload, testkit.Hook{ErrorText: "Unsupported file type"})
	_, err = client.Upload(ctx, file)
	require.Error(t, err)
	assert.Equal(t, errors.CodeServiceReportedErr, errors.GetCode(err))
}

func TestFetchCleanedFileReportsMissingFile(t *testing.T) {
	client, kit := newKitClient(t)
	_, err := client.FetchCleanedFile(context.Background(), kit.URL()+"/download/gone.csv")
	require.Error(t, err)
	assert.Equal(t, errors.CodeServiceReportedErr, errors.GetCode(err))
}

func TestStageCalls(t *testing.T) {
	client, _ := newKitClient(t)
	ctx := context.Background()

	resp, err := client.Upload(ctx, workflow.FileCandidate{Name: "orders.csv", Data: testkit.ShoppingCSV(40, 3)})
	require.NoError(t, err)
	filename := workflow.FilenameFromURL(resp.DownloadURL)

	summary, err := client.RunSummary(ctx, filename)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary.Text, "EDA Summary:"))
	assert.Nil(t, summary.Fields)

	fs, err := client.RunFeatureSelection(ctx, ports.FeatureSelectionRequest{Filename: filename, Threshold: 0.5})
	require.NoError(t, err)
	assert.Contains(t, fs.SelectedFeatures, "unit_price")
	assert.Contains(t, fs.Variances, "quantity")
	assert.Equal(t, 0.5, fs.Threshold)

	params := workflow.VisualizationParameters{Column: "country", ChartKind: workflow.ChartPie}
	viz, err := client.RunVisualization(ctx, ports.VisualizationRequest{Filename: filename, Parameters: params})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(viz.ImageURL, "_country_pie.png"), viz.ImageURL)
	assert.Equal(t, "pie", viz.ChartType)
	assert.Equal(t, params, viz.Parameters)
	assert.Contains(t, viz.Insight, "Column 'country'")

	answer, err := client.Ask(ctx, ports.AskRequest{SessionID: resp.SessionID, Question: "how many columns?"})
	require.NoError(t, err)
	assert.Contains(t, answer, "10 columns")
}

func TestStageCallsSurfaceServiceErrors(t *testing.T) {
	client, _ := newKitClient(t)
	ctx := context.Background()

	_, err := client.RunSummary(ctx, "missing.csv")
	require.Error(t, err)
	assert.Equal(t, errors.CodeServiceReportedErr, errors.GetCode(err))

	_, err = client.RunFeatureSelection(ctx, ports.FeatureSelectionRequest{Filename: "missing.csv"})
	assert.Equal(t, errors.CodeServiceReportedErr, errors.GetCode(err))

	_, err = client.RunVisualization(ctx, ports.VisualizationRequest{
		Filename:   "missing.csv",
		Parameters: workflow.VisualizationParameters{Column: "a", ChartKind: workflow.ChartBar},
	})
	assert.Equal(t, errors.CodeServiceReportedErr, errors.GetCode(err))
}

func TestSummaryAcceptsJSONObject(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"two rows","rows":2}`))
	})

	summary, err := client.RunSummary(context.Background(), "f.csv")
	require.NoError(t, err)
	assert.Equal(t, "two rows", summary.Text)
	assert.Equal(t, float64(2), summary.Fields["rows"])
}

func TestVisualizationWithoutImageURLFails(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart_type":"bar","insight":"x"}`))
	})

	_, err := client.RunVisualization(context.Background(), ports.VisualizationRequest{Filename: "f.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_url")
}

func TestRelativeURLsResolveAgainstBase(t *testing.T) {
	var gotPath string
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/upload/":
			_, _ = w.Write([]byte(`{"columns":["a"],"download_url":"/download/cleaned_f.csv"}`))
		default:
			_, _ = w.Write([]byte(`{"image_url":"download/chart.png"}`))
		}
	})

	resp, err := client.Upload(context.Background(), workflow.FileCandidate{Name: "f.csv", Data: []byte("a\n1\n")})
	require.NoError(t, err)
	assert.Equal(t, client.BaseURL()+"/download/cleaned_f.csv", resp.DownloadURL)
	assert.True(t, resp.SessionID.IsEmpty())

	viz, err := client.RunVisualization(context.Background(), ports.VisualizationRequest{Filename: "cleaned_f.csv"})
	require.NoError(t, err)
	assert.Equal(t, "/visualize/", gotPath)
	assert.Equal(t, client.BaseURL()+"/download/chart.png", viz.ImageURL)
}

func TestEveryRequestCarriesRequestID(t *testing.T) {
	seen := map[string]bool{}
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "request ids must be unique")
		seen[id] = true
		_, _ = w.Write([]byte("ok"))
	})

	for i := 0; i < 3; i++ {
		_, err := client.RunSummary(context.Background(), "f.csv")
		require.NoError(t, err)
	}
	assert.Len(t, seen, 3)
}

func TestAskRequiresSessionAndSurfacesDetail(t *testing.T) {
	client, _ := newKitClient(t)
	ctx := context.Background()

	_, err := client.Ask(ctx, ports.AskRequest{Question: "hi"})
	assert.Equal(t, errors.CodeNoSession, errors.GetCode(err))

	_, err = client.Ask(ctx, ports.AskRequest{SessionID: core.SessionID("unknown"), Question: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestContextCancellationAbortsRequest(t *testing.T) {
	client, kit := newKitClient(t)
	gate := make(chan struct{})
	defer close(gate)
	kit.Server.SetHook(testkit.EndpointEDA, testkit.Hook{Gate: gate})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.RunSummary(ctx, "f.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

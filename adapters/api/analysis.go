package api

import (
	"context"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"dataexplorer/domain/core"
	"dataexplorer/domain/workflow"
	"dataexplorer/internal/errors"
	"dataexplorer/ports"

	"github.com/tidwall/gjson"
)

// Service paths
const (
	PathUpload           = "upload/"
	PathEDA              = "eda/"
	PathFeatureSelection = "feature-selection/"
	PathVisualize        = "visualize/"
	PathAskAI            = "ask-ai/"
)

// Upload sends the staged file as multipart field "file"
func (c *Client) Upload(ctx context.Context, file workflow.FileCandidate) (*ports.UploadResponse, error) {
	if file.IsEmpty() {
		return nil, errors.New(errors.CodeNoFile, "no file selected")
	}

	resp, err := c.postMultipart(ctx, "upload", PathUpload, func(mw *multipart.Writer) error {
		part, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return err
		}
		_, err = part.Write(file.Data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := reportedError("upload", resp); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.body) {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("upload: response is not JSON"))
	}

	parsed := gjson.ParseBytes(resp.body)
	downloadURL := strings.TrimSpace(parsed.Get("download_url").String())
	if downloadURL == "" {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("upload: response has no download_url"))
	}
	absolute, err := c.resolve(downloadURL)
	if err != nil {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("upload: %w", err))
	}

	var columns []string
	for _, col := range parsed.Get("columns").Array() {
		columns = append(columns, col.String())
	}

	out := &ports.UploadResponse{
		SessionID:   core.SessionID(parsed.Get("session_id").String()),
		Columns:     columns,
		DownloadURL: absolute,
		Message:     parsed.Get("message").String(),
	}
	c.logger.Info("uploaded %s: %d columns, cleaned file %s", file.Name, len(columns), workflow.FilenameFromURL(absolute))
	return out, nil
}

// FetchCleanedFile downloads the cleaned file as raw bytes
func (c *Client) FetchCleanedFile(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := c.buildRequest(ctx, http.MethodGet, downloadURL, nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to build download request")
	}
	resp, err := c.do(req, "download")
	if err != nil {
		return nil, err
	}
	// The download route answers a missing file with 200 and a JSON error body.
	if strings.Contains(resp.contentType, "json") {
		if err := reportedError("download", resp); err != nil {
			return nil, err
		}
	}
	return resp.body, nil
}

// RunSummary requests the exploratory summary. The service answers with plain
// text or a JSON object; both are kept.
func (c *Client) RunSummary(ctx context.Context, filename string) (*workflow.Summary, error) {
	resp, err := c.postJSON(ctx, "eda", PathEDA, map[string]interface{}{"filename": filename})
	if err != nil {
		return nil, err
	}
	if err := reportedError("eda", resp); err != nil {
		return nil, err
	}

	if resp.isJSON() && gjson.ValidBytes(resp.body) {
		parsed := gjson.ParseBytes(resp.body)
		if parsed.IsObject() {
			fields, _ := parsed.Value().(map[string]interface{})
			summary := &workflow.Summary{Fields: fields}
			for _, key := range []string{"summary", "text", "insights"} {
				if v := parsed.Get(key); v.Type == gjson.String {
					summary.Text = v.String()
					break
				}
			}
			return summary, nil
		}
		if parsed.Type == gjson.String {
			return &workflow.Summary{Text: parsed.String()}, nil
		}
	}
	return &workflow.Summary{Text: strings.TrimSpace(string(resp.body))}, nil
}

// RunFeatureSelection requests variance-threshold feature selection
func (c *Client) RunFeatureSelection(ctx context.Context, req ports.FeatureSelectionRequest) (*workflow.FeatureSelection, error) {
	resp, err := c.postJSON(ctx, "feature-selection", PathFeatureSelection, map[string]interface{}{
		"filename":  req.Filename,
		"threshold": req.Threshold,
	})
	if err != nil {
		return nil, err
	}
	if err := reportedError("feature-selection", resp); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.body) {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("feature-selection: response is not JSON"))
	}

	parsed := gjson.ParseBytes(resp.body)
	selected := parsed.Get("selected_features")
	if !selected.IsArray() {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("feature-selection: response has no selected_features"))
	}

	out := &workflow.FeatureSelection{
		SelectedFeatures: []string{},
		Variances:        map[string]float64{},
		Threshold:        req.Threshold,
	}
	for _, f := range selected.Array() {
		out.SelectedFeatures = append(out.SelectedFeatures, f.String())
	}
	parsed.Get("variances").ForEach(func(key, value gjson.Result) bool {
		// Constant or single-row columns come back as null (NaN).
		if value.Type == gjson.Number && !math.IsNaN(value.Float()) {
			out.Variances[key.String()] = value.Float()
		}
		return true
	})
	return out, nil
}

// RunVisualization asks the service to render one chart. A response without
// image_url is treated as a failure even when the status is 2xx.
func (c *Client) RunVisualization(ctx context.Context, req ports.VisualizationRequest) (*workflow.Visualization, error) {
	query := url.Values{}
	query.Set("filename", req.Filename)
	query.Set("column", req.Parameters.Column)
	query.Set("chart_type", string(req.Parameters.ChartKind))

	httpReq, err := c.buildRequest(ctx, http.MethodGet, PathVisualize+"?"+query.Encode(), nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to build visualize request")
	}
	resp, err := c.do(httpReq, "visualize")
	if err != nil {
		return nil, err
	}
	if err := reportedError("visualize", resp); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.body) {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("visualize: response is not JSON"))
	}

	parsed := gjson.ParseBytes(resp.body)
	imageURL := strings.TrimSpace(parsed.Get("image_url").String())
	if imageURL == "" {
		return nil, errors.ServiceReported("visualize", "response has no image_url")
	}
	if absolute, err := c.resolve(imageURL); err == nil {
		imageURL = absolute
	}

	out := &workflow.Visualization{
		ImageURL:   imageURL,
		Parameters: req.Parameters,
		ChartType:  parsed.Get("chart_type").String(),
		Insight:    parsed.Get("insight").String(),
	}
	for _, a := range parsed.Get("anomalies").Array() {
		out.Anomalies = append(out.Anomalies, a.Float())
	}
	return out, nil
}

// Ask sends a free-form question scoped to the session as multipart form fields
func (c *Client) Ask(ctx context.Context, req ports.AskRequest) (string, error) {
	if req.SessionID.IsEmpty() {
		return "", errors.NoSession()
	}
	resp, err := c.postMultipart(ctx, "ask-ai", PathAskAI, func(mw *multipart.Writer) error {
		if err := mw.WriteField("session_id", req.SessionID.String()); err != nil {
			return err
		}
		return mw.WriteField("question", req.Question)
	})
	if err != nil {
		return "", err
	}
	if err := reportedError("ask-ai", resp); err != nil {
		return "", err
	}
	answer := gjson.GetBytes(resp.body, "answer")
	if !answer.Exists() {
		return "", errors.ExternalServiceError("analysis", fmt.Errorf("ask-ai: response has no answer"))
	}
	return answer.String(), nil
}

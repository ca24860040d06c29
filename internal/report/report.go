package report

import (
	"fmt"
	"sort"
	"strings"

	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/workflow"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Title heads every report
const Title = "Data Explorer Report"

// Render builds a Markdown report of the workflow state. Each stage section
// shows its data, a pending note, or the failure reason independently.
func Render(st workflow.State) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", Title))
	writeOverview(&b, st)

	if st.Artifact == nil {
		b.WriteString("_No dataset has been uploaded yet._\n")
		return b.String()
	}

	writeColumns(&b, st)
	writePreview(&b, st)
	writeSummary(&b, st.Results.Summary, st.Results.InFlight[stage.StageSummary])
	writeFeatureSelection(&b, st.Results.FeatureSelection, st.Results.InFlight[stage.StageFeatureSelection])
	writeVisualization(&b, st.Results.Visualization, st.Parameters, st.Results.InFlight[stage.StageVisualization])
	return b.String()
}

// RenderHTML renders the Markdown report as a standalone HTML page
func RenderHTML(st workflow.State) []byte {
	return ToHTML(Render(st))
}

// ToHTML converts Markdown to a complete HTML document
func ToHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: Title,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func writeOverview(b *strings.Builder, st workflow.State) {
	b.WriteString("## Session\n\n")
	if st.HasSession {
		b.WriteString(fmt.Sprintf("- Session: `%s`\n", st.Session.ID))
	} else {
		b.WriteString("- Session: none\n")
	}
	if st.Artifact != nil {
		b.WriteString(fmt.Sprintf("- Cleaned file: [%s](%s)\n", st.Artifact.Filename(), st.Artifact.DownloadURL))
		if st.Artifact.Message != "" {
			b.WriteString(fmt.Sprintf("- Service message: %s\n", st.Artifact.Message))
		}
	}
	switch st.Upload.Outcome {
	case domain.UploadSucceeded:
		b.WriteString("- Last upload: succeeded\n")
	case domain.UploadFailed:
		b.WriteString(fmt.Sprintf("- Last upload: failed (%s)\n", st.Upload.Reason))
	}
	b.WriteString("\n")
}

func writeColumns(b *strings.Builder, st workflow.State) {
	b.WriteString(fmt.Sprintf("## Columns (%d)\n\n", len(st.Columns)))
	if len(st.Columns) == 0 {
		b.WriteString("_The cleaned file has no columns._\n\n")
		return
	}
	for _, c := range st.Columns {
		b.WriteString(fmt.Sprintf("- %s\n", c))
	}
	b.WriteString("\n")
}

func writePreview(b *strings.Builder, st workflow.State) {
	table := st.Results.Preview
	if table == nil || len(table.Columns) == 0 {
		return
	}
	b.WriteString("## Preview\n\n")
	b.WriteString(fmt.Sprintf("Showing %d of %d rows.\n\n", len(table.Rows), table.TotalRows))

	b.WriteString("| " + strings.Join(escapeAll(table.Columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(table.Columns)) + "\n")
	for _, row := range table.Rows {
		b.WriteString("| " + strings.Join(escapeAll(row.Values()), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func writeSummary(b *strings.Builder, r stage.StageResult[domain.Summary], inFlight bool) {
	b.WriteString("## Summary\n\n")
	if writeStatus(b, r.Status, r.Reason, inFlight) {
		return
	}
	if r.Value.Text != "" {
		b.WriteString(r.Value.Text + "\n\n")
	}
	if len(r.Value.Fields) > 0 {
		keys := make([]string, 0, len(r.Value.Fields))
		for k := range r.Value.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("- **%s**: %v\n", k, r.Value.Fields[k]))
		}
		b.WriteString("\n")
	}
}

func writeFeatureSelection(b *strings.Builder, r stage.StageResult[domain.FeatureSelection], inFlight bool) {
	b.WriteString("## Feature Selection\n\n")
	if writeStatus(b, r.Status, r.Reason, inFlight) {
		return
	}
	fs := r.Value
	b.WriteString(fmt.Sprintf("Variance threshold: %g\n\n", fs.Threshold))
	if len(fs.SelectedFeatures) == 0 {
		b.WriteString("No features passed the threshold.\n\n")
	} else {
		b.WriteString("Selected features: " + strings.Join(fs.SelectedFeatures, ", ") + "\n\n")
	}
	if len(fs.Variances) == 0 {
		return
	}
	names := make([]string, 0, len(fs.Variances))
	for n := range fs.Variances {
		names = append(names, n)
	}
	sort.Strings(names)
	b.WriteString("| Feature | Variance |\n| --- | --- |\n")
	for _, n := range names {
		b.WriteString(fmt.Sprintf("| %s | %.4f |\n", escape(n), fs.Variances[n]))
	}
	b.WriteString("\n")
}

func writeVisualization(b *strings.Builder, r stage.StageResult[domain.Visualization], params domain.VisualizationParameters, inFlight bool) {
	b.WriteString("## Visualization\n\n")
	if params.Column != "" {
		b.WriteString(fmt.Sprintf("Requested: %s chart of `%s`\n\n", params.ChartKind, params.Column))
	}
	if writeStatus(b, r.Status, r.Reason, inFlight) {
		return
	}
	v := r.Value
	b.WriteString(fmt.Sprintf("![%s chart of %s](%s)\n\n", v.Parameters.ChartKind, v.Parameters.Column, v.ImageURL))
	if v.ChartType != "" && v.ChartType != string(v.Parameters.ChartKind) {
		b.WriteString(fmt.Sprintf("Rendered as: %s\n\n", v.ChartType))
	}
	if v.Insight != "" {
		b.WriteString("> " + v.Insight + "\n\n")
	}
	if len(v.Anomalies) > 0 {
		vals := make([]string, len(v.Anomalies))
		for i, a := range v.Anomalies {
			vals[i] = fmt.Sprintf("%g", a)
		}
		b.WriteString("Anomalies: " + strings.Join(vals, ", ") + "\n\n")
	}
}

// writeStatus handles the non-Ready states and reports whether it did
func writeStatus(b *strings.Builder, status stage.Status, reason string, inFlight bool) bool {
	switch status {
	case stage.StatusPending:
		if inFlight {
			b.WriteString("_Running..._\n\n")
		} else {
			b.WriteString("_Not started._\n\n")
		}
		return true
	case stage.StatusFailed:
		b.WriteString(fmt.Sprintf("**Failed:** %s\n\n", reason))
		if inFlight {
			b.WriteString("_Retry in progress..._\n\n")
		}
		return true
	}
	return false
}

func escapeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = escape(v)
	}
	return out
}

// escape keeps a cell value from breaking the table layout
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

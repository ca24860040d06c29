package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"dataexplorer/domain/stage"
	"dataexplorer/internal/workflow"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C678DD"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#636B78"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	cellStyle  = lipgloss.NewStyle().PaddingRight(2)
)

// printState writes the preview and every stage outcome
func printState(w io.Writer, st workflow.State) {
	if st.Artifact == nil {
		fmt.Fprintln(w, mutedStyle.Render("Nothing uploaded."))
		return
	}

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Session:"), st.Session.ID)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Cleaned file:"), st.Artifact.DownloadURL)
	if st.Artifact.Message != "" {
		fmt.Fprintln(w, mutedStyle.Render(st.Artifact.Message))
	}

	if tbl := st.Results.Preview; tbl != nil && len(tbl.Columns) > 0 {
		fmt.Fprintf(w, "\n%s\n", titleStyle.Render(fmt.Sprintf("Preview (%d of %d rows)", len(tbl.Rows), tbl.TotalRows)))
		records := make([][]string, 0, len(tbl.Rows)+1)
		records = append(records, tbl.Columns)
		for _, r := range tbl.Rows {
			records = append(records, r.Values())
		}
		fmt.Fprintln(w, renderGrid(records))
	}

	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Summary"))
	if !printNotReady(w, st, stage.StageSummary) {
		s := st.Results.Summary.Value
		if s.Text != "" {
			fmt.Fprintln(w, s.Text)
		}
		keys := make([]string, 0, len(s.Fields))
		for k := range s.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s %v\n", labelStyle.Render(k+":"), s.Fields[k])
		}
	}

	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Feature selection"))
	if !printNotReady(w, st, stage.StageFeatureSelection) {
		fs := st.Results.FeatureSelection.Value
		if len(fs.SelectedFeatures) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("No features passed the variance threshold."))
		} else {
			fmt.Fprintln(w, okStyle.Render(strings.Join(fs.SelectedFeatures, ", ")))
		}
	}

	fmt.Fprintf(w, "\n%s %s\n", titleStyle.Render("Visualization"),
		mutedStyle.Render(fmt.Sprintf("(%s chart of %s)", st.Parameters.ChartKind, st.Parameters.Column)))
	if !printNotReady(w, st, stage.StageVisualization) {
		v := st.Results.Visualization.Value
		fmt.Fprintln(w, okStyle.Render(v.ImageURL))
		if v.Insight != "" {
			fmt.Fprintln(w, v.Insight)
		}
	}
}

// printNotReady prints a pending or failed slot and reports whether it did
func printNotReady(w io.Writer, st workflow.State, name stage.StageName) bool {
	switch st.Results.Status(name) {
	case stage.StatusPending:
		fmt.Fprintln(w, mutedStyle.Render("pending"))
		return true
	case stage.StatusFailed:
		fmt.Fprintln(w, errorStyle.Render("failed: ")+st.Results.Reason(name))
		return true
	}
	return false
}

// renderGrid lays out records in aligned columns, header first
func renderGrid(records [][]string) string {
	if len(records) == 0 {
		return ""
	}
	widths := make([]int, len(records[0]))
	for _, r := range records {
		for i := range widths {
			if i < len(r) && lipgloss.Width(r[i]) > widths[i] {
				widths[i] = lipgloss.Width(r[i])
			}
		}
	}

	lines := make([]string, 0, len(records))
	for ri, r := range records {
		cells := make([]string, len(widths))
		for i, wd := range widths {
			v := ""
			if i < len(r) {
				v = r[i]
			}
			style := cellStyle.Width(wd + 2)
			if ri == 0 {
				style = style.Bold(true)
			}
			cells[i] = style.Render(v)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

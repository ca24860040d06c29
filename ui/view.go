package ui

import (
	"fmt"
	"sort"
	"strings"

	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/workflow"

	"github.com/charmbracelet/lipgloss"
)

// View renders the explorer
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	panelWidth := width - 2

	sections := []string{
		m.headerView(),
		m.statusView(),
	}
	if m.state.Artifact != nil {
		sections = append(sections,
			m.previewView(panelWidth),
			m.summaryView(panelWidth),
			m.featureView(panelWidth),
			m.visualizationView(panelWidth),
		)
	}
	sections = append(sections, m.askView(panelWidth), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	title := HeaderStyle.Render("Data Explorer")
	sess := SubtleStyle.Render("no session")
	if m.state.HasSession {
		sess = SubtleStyle.Render("session " + string(m.state.Session.ID))
	}
	file := ""
	if m.state.Artifact != nil {
		file = ValueStyle.Render(m.state.Artifact.Filename())
	} else if m.state.Candidate != "" {
		file = ValueStyle.Render(m.state.Candidate + " (not uploaded)")
	}
	return strings.Join([]string{title, file, sess}, "  ")
}

func (m Model) statusView() string {
	var parts []string
	switch m.state.Phase {
	case domain.PhaseUploading:
		parts = append(parts, m.spinner.View()+PendingStyle.Render(" uploading "+m.state.Candidate))
	case domain.PhaseIdle:
		if !m.state.HasSession || m.state.Artifact == nil {
			parts = append(parts, SubtleStyle.Render("press u to upload"))
		}
	}
	if m.state.Upload.Outcome == domain.UploadFailed {
		parts = append(parts, ErrorStyle.Render("upload failed: "+m.state.Upload.Reason))
	}
	if m.notice != "" {
		parts = append(parts, SubtleStyle.Render(m.notice))
	}
	if m.errText != "" && m.errText != m.state.Upload.Reason {
		parts = append(parts, ErrorStyle.Render(m.errText))
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) panel(title string, width int, body string) string {
	return PanelStyle.Width(width).Render(PanelTitleStyle.Render(title) + "\n" + body)
}

func (m Model) previewView(width int) string {
	tbl := m.state.Results.Preview
	if tbl == nil {
		return ""
	}
	title := fmt.Sprintf("Preview (%d of %d rows)", len(tbl.Rows), tbl.TotalRows)
	if len(tbl.Columns) == 0 {
		return m.panel(title, width, SubtleStyle.Render("no columns"))
	}
	return m.panel(title, width, m.preview.View())
}

// pendingOrFailed renders the non-Ready states of a slot; ok is false for Ready
func (m Model) pendingOrFailed(name stage.StageName) (string, bool) {
	status, inFlight := stageStatus(m.state, name)
	switch status {
	case stage.StatusPending:
		if inFlight {
			return m.spinner.View() + PendingStyle.Render(" running"), true
		}
		return SubtleStyle.Render("waiting"), true
	case stage.StatusFailed:
		out := ErrorStyle.Render("failed: " + m.state.Results.Reason(name))
		if inFlight {
			out += "\n" + m.spinner.View() + PendingStyle.Render(" retrying")
		} else {
			out += "\n" + SubtleStyle.Render("press r to retry")
		}
		return out, true
	}
	return "", false
}

func (m Model) summaryView(width int) string {
	if body, ok := m.pendingOrFailed(stage.StageSummary); ok {
		return m.panel("Summary", width, body)
	}
	s := m.state.Results.Summary.Value
	var lines []string
	if s.Text != "" {
		lines = append(lines, ValueStyle.Width(width-4).Render(s.Text))
	}
	keys := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s %v", AccentStyle.Render(k+":"), s.Fields[k]))
	}
	return m.panel("Summary", width, strings.Join(lines, "\n"))
}

func (m Model) featureView(width int) string {
	if body, ok := m.pendingOrFailed(stage.StageFeatureSelection); ok {
		return m.panel("Feature selection", width, body)
	}
	fs := m.state.Results.FeatureSelection.Value
	body := SubtleStyle.Render(fmt.Sprintf("threshold %g: ", fs.Threshold))
	if len(fs.SelectedFeatures) == 0 {
		body += ValueStyle.Render("no features selected")
	} else {
		body += ReadyStyle.Render(strings.Join(fs.SelectedFeatures, ", "))
	}
	return m.panel("Feature selection", width, body)
}

func (m Model) visualizationView(width int) string {
	params := m.state.Parameters
	title := fmt.Sprintf("Visualization  %s / %s", AccentStyle.Render(params.Column), AccentStyle.Render(string(params.ChartKind)))
	if body, ok := m.pendingOrFailed(stage.StageVisualization); ok {
		return m.panel(title, width, body)
	}
	v := m.state.Results.Visualization.Value
	lines := []string{ReadyStyle.Render(v.ImageURL)}
	if v.Parameters != params {
		lines = append(lines, m.spinner.View()+PendingStyle.Render(fmt.Sprintf(" showing %s / %s until the new chart arrives", v.Parameters.Column, v.Parameters.ChartKind)))
	}
	if v.Insight != "" {
		lines = append(lines, ValueStyle.Width(width-4).Render(v.Insight))
	}
	if len(v.Anomalies) > 0 {
		lines = append(lines, SubtleStyle.Render(fmt.Sprintf("%s flagged", pluralize(len(v.Anomalies), "anomaly"))))
	}
	return m.panel(title, width, strings.Join(lines, "\n"))
}

func (m Model) askView(width int) string {
	if m.asking {
		return m.panel("Ask", width, m.input.View())
	}
	if m.answer == "" {
		return ""
	}
	return m.panel("Ask", width, SubtleStyle.Render("Q: "+m.question)+"\n"+ValueStyle.Width(width-4).Render(m.answer))
}

// State exposes the snapshot the model last rendered
func (m Model) State() workflow.State {
	return m.state
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

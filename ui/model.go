package ui

import (
	"context"

	"dataexplorer/domain/stage"
	domain "dataexplorer/domain/workflow"
	"dataexplorer/internal/workflow"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Workflow is the part of the orchestrator the explorer drives
type Workflow interface {
	Snapshot() workflow.State
	Subscribe(fn func(workflow.State)) func()
	Upload(ctx context.Context) error
	SetVisualizationParameters(ctx context.Context, params domain.VisualizationParameters) error
	RetryFailed(ctx context.Context) int
	Ask(ctx context.Context, question string) (string, error)
}

var _ Workflow = (*workflow.Orchestrator)(nil)

// Messages
type (
	stateChangedMsg struct{}
	uploadDoneMsg   struct{ err error }
	retriedMsg      struct{ count int }
	answerMsg       struct {
		question string
		answer   string
		err      error
	}
)

// Options configures the explorer
type Options struct {
	// UploadOnStart sends the staged file as soon as the program starts
	UploadOnStart bool
}

// Model is the bubbletea model of the interactive explorer. Every stage panel
// renders from the orchestrator snapshot on its own; nothing here waits for
// one stage before drawing another.
type Model struct {
	ctx  context.Context
	wf   Workflow
	opts Options

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	preview table.Model
	input   textinput.Model

	changes     chan struct{}
	unsubscribe func()

	state    workflow.State
	asking   bool
	question string
	answer   string
	notice   string
	errText  string

	width  int
	height int
}

// NewModel subscribes to wf and builds the initial view
func NewModel(ctx context.Context, wf Workflow, opts Options) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = PendingStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about the dataset"
	ti.CharLimit = 500
	ti.Prompt = "❯ "

	changes := make(chan struct{}, 1)
	m := Model{
		ctx:     ctx,
		wf:      wf,
		opts:    opts,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		input:   ti,
		changes: changes,
		width:   100,
	}
	m.unsubscribe = wf.Subscribe(func(workflow.State) {
		// Coalesce: one pending signal is enough, the handler re-reads the snapshot.
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.setState(wf.Snapshot())
	return m
}

// Init starts the spinner, the change listener and the optional first upload
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForChange(m.changes)}
	if m.opts.UploadOnStart {
		cmds = append(cmds, m.uploadCmd())
	}
	return tea.Batch(cmds...)
}

// Close stops listening for orchestrator changes
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func (m Model) uploadCmd() tea.Cmd {
	return func() tea.Msg {
		return uploadDoneMsg{err: m.wf.Upload(m.ctx)}
	}
}

func (m Model) retryCmd() tea.Cmd {
	return func() tea.Msg {
		return retriedMsg{count: m.wf.RetryFailed(m.ctx)}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.wf.Ask(m.ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = msg.Width - 8
		m.setState(m.state)
		return m, nil

	case stateChangedMsg:
		m.setState(m.wf.Snapshot())
		return m, waitForChange(m.changes)

	case uploadDoneMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.errText = ""
			m.notice = "upload complete"
		}
		return m, nil

	case retriedMsg:
		if msg.count == 0 {
			m.notice = "nothing to retry"
		} else {
			m.notice = pluralize(msg.count, "stage") + " retried"
		}
		return m, nil

	case answerMsg:
		m.question = msg.question
		if msg.err != nil {
			m.answer = ""
			m.errText = msg.err.Error()
		} else {
			m.answer = msg.answer
			m.errText = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.asking {
			return m.updateAsking(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateAsking(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.asking = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		question := m.input.Value()
		m.asking = false
		m.input.Blur()
		m.input.SetValue("")
		m.notice = "asking..."
		return m, m.askCmd(question)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.NextColumn):
		return m.changeVisualization(1, 0)
	case key.Matches(msg, m.keys.PrevColumn):
		return m.changeVisualization(-1, 0)
	case key.Matches(msg, m.keys.NextChart):
		return m.changeVisualization(0, 1)
	case key.Matches(msg, m.keys.PrevChart):
		return m.changeVisualization(0, -1)
	case key.Matches(msg, m.keys.Retry):
		return m, m.retryCmd()
	case key.Matches(msg, m.keys.Upload):
		m.notice = "uploading..."
		return m, m.uploadCmd()
	case key.Matches(msg, m.keys.Ask):
		m.asking = true
		return m, m.input.Focus()
	}
	return m, nil
}

// changeVisualization steps the column and chart selectors and fires exactly
// one visualization request for the new parameters. The request is issued
// inline, not as a tea.Cmd, so sequence numbers follow key-press order.
func (m Model) changeVisualization(columnStep, chartStep int) (tea.Model, tea.Cmd) {
	if m.state.Phase != domain.PhaseUploaded || len(m.state.Columns) == 0 {
		return m, nil
	}
	params := m.state.Parameters
	if columnStep != 0 {
		i := m.state.Columns.Index(params.Column)
		params.Column = m.state.Columns[wrap(i+columnStep, len(m.state.Columns))]
	}
	if chartStep != 0 {
		i := chartIndex(params.ChartKind)
		params.ChartKind = domain.ChartKinds[wrap(i+chartStep, len(domain.ChartKinds))]
	}
	if err := m.wf.SetVisualizationParameters(m.ctx, params); err != nil {
		m.errText = err.Error()
		return m, nil
	}
	m.errText = ""
	m.setState(m.wf.Snapshot())
	return m, nil
}

func (m *Model) setState(st workflow.State) {
	m.state = st
	m.preview = buildPreview(st, m.width)
}

func buildPreview(st workflow.State, width int) table.Model {
	tbl := st.Results.Preview
	if tbl == nil || len(tbl.Columns) == 0 {
		return table.New()
	}

	colWidth := 12
	if n := len(tbl.Columns); n > 0 && width > 0 {
		if w := (width - 4) / n; w < colWidth {
			colWidth = max(w, 4)
		}
	}
	cols := make([]table.Column, len(tbl.Columns))
	for i, c := range tbl.Columns {
		cols[i] = table.Column{Title: c, Width: colWidth}
	}
	rows := make([]table.Row, len(tbl.Rows))
	for i, r := range tbl.Rows {
		rows[i] = table.Row(r.Values())
	}
	return table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(min(len(rows)+1, 8)),
		table.WithFocused(false),
	)
}

func chartIndex(kind domain.ChartKind) int {
	for i, k := range domain.ChartKinds {
		if k == kind {
			return i
		}
	}
	return 0
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}

// stageStatus pairs a slot's status with whether a request is outstanding
func stageStatus(st workflow.State, name stage.StageName) (stage.Status, bool) {
	return st.Results.Status(name), st.Results.InFlight[name]
}

// Package jobs is the live job feed view.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/components/help"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

// Source is the session snapshot the view renders.
type Source interface {
	Refresh(ctx context.Context) (models.Session, error)
	Tasks() []models.Task
	Statuses() []workflow.StageStatus
	FetchedAt() time.Time
}

// PollFunc runs a polling loop until ctx is cancelled.
type PollFunc func(ctx context.Context, fn func(models.Session, error)) error

type sessionMsg struct {
	err error
}

type pollStoppedMsg struct{}

type stageItem struct {
	stage models.Stage
	count int
}

func (i stageItem) FilterValue() string { return string(i.stage) }
func (i stageItem) Title() string       { return i.stage.Title() }
func (i stageItem) Description() string { return fmt.Sprintf("%d tasks", i.count) }

// Model represents the state of the job feed.
type Model struct {
	source  Source
	poll    PollFunc
	ctx     context.Context
	cancel  context.CancelFunc
	updates chan sessionMsg

	table  table.Model
	tasks  []models.Task
	stages map[string]models.Stage

	filter         models.Stage
	selectingStage bool
	stageList      list.Model

	detail     bool
	detailPort viewport.Model

	err     error
	keys    jobsKeyMap
	help    help.Model
	width   int
	height  int
	stopped bool
}

// New creates a feed view over svc, optionally filtered to one stage.
func New(svc *service.Service, filter models.Stage) Model {
	return newModel(svc.Feed, svc.NewPoller().Run, filter)
}

func newModel(src Source, poll PollFunc, filter models.Stage) Model {
	columns := []table.Column{
		{Title: "STAGE", Width: 20},
		{Title: "TASK", Width: 18},
		{Title: "STATUS", Width: 10},
		{Title: "UUID", Width: 10},
		{Title: "MESSAGE", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.DefaultTheme.Colors.MutedText).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(theme.DefaultTheme.Colors.Pink).
		Bold(false)
	t.SetStyles(s)

	delegate := list.NewDefaultDelegate()
	stageList := list.New(nil, delegate, 0, 0)
	stageList.Title = "Select Stage to Filter"
	stageList.SetShowHelp(false)
	stageList.SetFilteringEnabled(false)
	stageList.Styles.Title = theme.DefaultTheme.Header

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		source:     src,
		poll:       poll,
		ctx:        ctx,
		cancel:     cancel,
		updates:    make(chan sessionMsg, 1),
		table:      t,
		stages:     map[string]models.Stage{},
		filter:     filter,
		stageList:  stageList,
		detailPort: viewport.New(0, 0),
		keys:       jobsKeys,
		help:       help.NewBuilder().WithKeys(jobsKeys).WithTitle("EaseVoice Jobs - Help").Build(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), waitForSession(m.updates))
}

// Close stops polling. Jobs on the server keep running.
func (m *Model) Close() {
	m.cancel()
}

func (m Model) pollCmd() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		_ = m.poll(m.ctx, func(_ models.Session, err error) {
			select {
			case <-updates:
			default:
			}
			updates <- sessionMsg{err: err}
		})
		return pollStoppedMsg{}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		defer cancel()
		_, err := m.source.Refresh(ctx)
		return sessionMsg{err: err}
	}
}

func waitForSession(ch <-chan sessionMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// rebuild reloads tasks from the source and applies the stage filter.
func (m *Model) rebuild() {
	m.stages = map[string]models.Stage{}
	for _, s := range m.source.Statuses() {
		m.stages[s.Task.UUID] = s.Stage
	}

	var tasks []models.Task
	for _, t := range m.source.Tasks() {
		if m.filter != "" && m.stages[t.UUID] != m.filter {
			continue
		}
		tasks = append(tasks, t)
	}
	m.tasks = tasks

	rows := make([]table.Row, len(m.tasks))
	for i, t := range m.tasks {
		rows[i] = m.makeRow(t)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m Model) makeRow(t models.Task) table.Row {
	stage := "-"
	if st, ok := m.stages[t.UUID]; ok {
		stage = st.Title()
	}
	msg := t.Message
	if t.Status == models.TaskFailed && t.Error != "" {
		msg = t.Error
	}
	return table.Row{
		truncate(stage, 20),
		truncate(t.TaskName, 18),
		string(t.Status),
		shortUUID(t.UUID),
		truncate(msg, 40),
	}
}

func (m Model) stageItems() []list.Item {
	counts := map[models.Stage]int{}
	for _, s := range m.source.Statuses() {
		counts[s.Stage]++
	}
	items := make([]list.Item, 0, len(models.Stages))
	for _, st := range models.Stages {
		items = append(items, stageItem{stage: st, count: counts[st]})
	}
	return items
}

func shortUUID(u string) string {
	if len(u) > 8 {
		return u[:8]
	}
	return u
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

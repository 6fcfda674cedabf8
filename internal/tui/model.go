// Package tui renders the alert instance screen in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/console"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
	"github.com/mattmezza/alertdesk/internal/state"
)

type viewMsg struct{ view state.View }

// resultMsg reports a finished screen operation.
type resultMsg struct {
	status string
	err    error
}

type editorMsg struct {
	form instance.Form
	err  error
}

type submitMsg struct {
	ok  bool
	err error
}

// Model is the bubbletea model of the alert instance screen. Every
// operation runs as a command against the console screen; the model only
// mirrors its view.
type Model struct {
	ctx     context.Context
	screen  *console.Screen
	loc     console.Localizer
	styles  styles
	spinner spinner.Model

	view    state.View
	cursor  int
	editor  *editor
	confirm *confirmMsg
	status  string
	err     error
}

func New(ctx context.Context, screen *console.Screen, loc console.Localizer) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:     ctx,
		screen:  screen,
		loc:     loc,
		styles:  newStyles(),
		spinner: sp,
		view:    screen.State(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.mount)
}

func (m Model) mount() tea.Msg {
	return resultMsg{err: m.screen.Mount(m.ctx)}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = msg.view
		m.clampCursor()
		return m, nil

	case resultMsg:
		m.refresh()
		m.status, m.err = msg.status, msg.err
		return m, nil

	case editorMsg:
		m.refresh()
		if msg.err != nil {
			m.err = msg.err
			if state.EditorMode(m.view) != state.Closed && m.editor == nil {
				// The screen opened but no form can be shown; close it again.
				return m, func() tea.Msg { return resultMsg{err: m.screen.Cancel(m.ctx)} }
			}
			return m, nil
		}
		ed, err := newEditor(msg.form)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.editor, m.status, m.err = ed, "", nil
		return m, nil

	case submitMsg:
		m.refresh()
		m.err = msg.err
		if msg.ok {
			m.editor = nil
		}
		return m, nil

	case confirmMsg:
		m.confirm = &msg
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case m.confirm != nil:
			return m.updateConfirm(msg)
		case m.editor != nil:
			return m.updateEditor(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	m.view = m.screen.State()
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.view.Instances) {
		m.cursor = len(m.view.Instances) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selected() (console.Row, bool) {
	rows := m.screen.Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return console.Row{}, false
	}
	return rows[m.cursor], true
}

func hasAction(actions []console.RowAction, kind console.ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Instances)-1 {
			m.cursor++
		}
	case "r":
		return m, func() tea.Msg { return resultMsg{err: m.screen.Reload(m.ctx)} }
	case "n":
		if !hasAction(m.screen.Toolbar().Actions, console.ActionCreate) {
			return m, nil
		}
		return m, func() tea.Msg {
			if err := m.screen.OpenCreate(m.ctx); err != nil {
				return editorMsg{err: err}
			}
			f, err := m.screen.EditorForm()
			return editorMsg{form: f, err: err}
		}
	case "e":
		row, ok := m.selected()
		if !ok || !hasAction(row.Actions, console.ActionEdit) {
			return m, nil
		}
		return m, func() tea.Msg {
			if err := m.screen.OpenEdit(m.ctx, row.Instance); err != nil {
				return editorMsg{err: err}
			}
			f, err := m.screen.EditorForm()
			return editorMsg{form: f, err: err}
		}
	case "d":
		row, ok := m.selected()
		if !ok || !hasAction(row.Actions, console.ActionDelete) {
			return m, nil
		}
		return m, func() tea.Msg {
			done, err := m.screen.Delete(m.ctx, row.Instance.ID)
			if err != nil || !done {
				return resultMsg{err: err}
			}
			return resultMsg{status: fmt.Sprintf("deleted %s", row.Tooltip)}
		}
	case " ", "space":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return resultMsg{err: m.screen.ToggleEnable(m.ctx, row.Instance)}
		}
	}
	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		return m, func() tea.Msg {
			if err := m.screen.Cancel(m.ctx); err != nil {
				return submitMsg{ok: true, err: err}
			}
			return submitMsg{ok: true}
		}
	case "tab", "down":
		return m, m.editor.move(1)
	case "shift+tab", "up":
		return m, m.editor.move(-1)
	case "ctrl+s", "enter":
		form, err := m.editor.form()
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, func() tea.Msg {
			ok, reason, err := m.screen.SubmitReason(m.ctx, form)
			if err == nil && !ok {
				if reason == "" {
					reason = "rejected by the server"
				}
				err = errors.Errorf("alert instance was rejected: %s", reason)
			}
			return submitMsg{ok: ok, err: err}
		}
	case "ctrl+t":
		form, err := m.editor.form()
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, func() tea.Msg {
			if err := m.screen.TestSend(m.ctx, form); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{status: m.loc.T(i18n.KeyTestSent)}
		}
	}
	return m, m.editor.update(msg)
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var answer bool
	switch msg.String() {
	case "y", "enter":
		answer = true
	case "n", "esc", "q", "ctrl+c":
	default:
		return m, nil
	}
	m.confirm.reply <- answer
	m.confirm = nil
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	switch {
	case m.confirm != nil:
		b.WriteString(m.viewConfirm())
	case m.editor != nil:
		b.WriteString(m.viewEditor())
	default:
		b.WriteString(m.viewList())
	}

	if m.view.Loading {
		b.WriteString("\n" + m.spinner.View() + " " + m.loc.T(i18n.KeyLoading))
	}
	if m.err != nil {
		b.WriteString("\n" + m.styles.Error.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString("\n" + m.styles.Success.Render(m.status))
	}
	return b.String() + "\n"
}

func (m Model) viewList() string {
	tb := m.screen.Toolbar()
	header := m.styles.Title.Render(tb.Title)
	for _, a := range tb.Actions {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", m.styles.Action.Render("[n] "+a.Label))
	}

	rows := m.screen.Rows()
	lines := []string{header}
	if len(rows) == 0 {
		lines = append(lines, m.styles.Muted.Render(m.loc.T(i18n.KeyEmpty)))
	}
	for i, row := range rows {
		lines = append(lines, m.viewRow(i, row))
	}

	help := "↑/↓ move · space toggle · r reload · q quit"
	lines = append(lines, m.styles.Footer.Render(help))
	return strings.Join(lines, "\n")
}

func (m Model) viewRow(i int, row console.Row) string {
	cursor := "  "
	name := fmt.Sprintf("%-24s", row.Subtitle)
	if i == m.cursor {
		cursor = "> "
		name = m.styles.Selected.Render(name)
	}
	toggle := m.styles.Off.Render("○ off")
	if row.Switch {
		toggle = m.styles.On.Render("● on ")
	}

	parts := []string{cursor + row.Icon, name, m.styles.Tag.Render(row.Tag.Text), toggle}
	for _, a := range row.Actions {
		key := "e"
		if a.Kind == console.ActionDelete {
			key = "d"
		}
		parts = append(parts, m.styles.Action.Render("["+key+"] "+a.Label))
	}
	return strings.Join(parts, " ")
}

func (m Model) viewEditor() string {
	title := m.loc.T(i18n.KeyCreate)
	if state.EditorMode(m.view) == state.Editing {
		title = m.loc.T(i18n.KeyEdit)
	}

	labels := []string{
		fieldName:    m.loc.T(i18n.KeyName),
		fieldType:    m.loc.T(i18n.KeyType),
		fieldEnabled: m.loc.T(i18n.KeyEnabled),
		fieldParams:  m.loc.T(i18n.KeyParams),
	}
	lines := []string{m.styles.Title.Render(title)}
	for i, in := range m.editor.inputs {
		lines = append(lines, m.styles.Label.Render(labels[i])+" "+in.View())
	}

	help := fmt.Sprintf("tab next · ctrl+s %s · ctrl+t %s · esc %s",
		m.loc.T(i18n.KeySubmit), m.loc.T(i18n.KeyTest), m.loc.T(i18n.KeyCancel))
	lines = append(lines, m.styles.Footer.Render(help))
	return strings.Join(lines, "\n")
}

func (m Model) viewConfirm() string {
	d := m.confirm.dialog
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render(d.Title),
		d.Content,
		"",
		m.styles.Action.Render("[y] "+d.OkText)+"  "+m.styles.Muted.Render("[n] "+d.CancelText),
	)
	return m.styles.Dialog.Render(body)
}

// Run starts the program and blocks until the user quits or ctx is done.
// confirmer must be the one the screen was built with.
func Run(ctx context.Context, screen *console.Screen, loc console.Localizer, confirmer *Confirmer, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(New(ctx, screen, loc), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	confirmer.Attach(p)
	unsubscribe := screen.Subscribe(func(v state.View) { p.Send(viewMsg{view: v}) })
	defer unsubscribe()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run console")
	}
	return nil
}

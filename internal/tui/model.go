// Package tui hosts the sign-up page in a terminal. It drives the same
// controller as the web page: key presses become edits and the submit,
// published snapshots become redraws.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/livetemplate/signup"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/livetemplate/signup/internal/view"
)

// snapshotMsg is sent when the controller publishes a transition.
type snapshotMsg runtime.Snapshot

// Model is the Bubble Tea model of the sign-up form.
type Model struct {
	page   *runtime.Controller
	events chan runtime.Snapshot
	cancel func()

	inputs  []textinput.Model
	fields  []signup.Field
	focus   int // len(inputs) is the button
	spinner spinner.Model
	snap    runtime.Snapshot
	err     error
}

// New creates a model bound to page. Call Close when the program exits.
func New(page *runtime.Controller) Model {
	m := Model{
		page:   page,
		events: make(chan runtime.Snapshot, 16),
		fields: signup.Fields,
		snap:   page.Snapshot(),
	}

	for i, in := range view.Inputs(m.snap) {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = in.Label
		ti.CharLimit = 255
		ti.Width = 40
		if m.fields[i].Secret() {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		m.inputs = append(m.inputs, ti)
	}
	m.inputs[0].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = FocusedLabelStyle
	m.spinner = sp

	events := m.events
	m.cancel = page.Subscribe(func(s runtime.Snapshot) {
		// Never block a transition. A dropped event is harmless: the next
		// delivered one reads the latest snapshot.
		select {
		case events <- s:
		default:
		}
	})
	return m
}

// Close stops listening to the controller.
func (m Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Snapshot returns the state the model last drew.
func (m Model) Snapshot() runtime.Snapshot {
	return m.snap
}

func (m Model) waitForSnapshot() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		s, ok := <-events
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForSnapshot())
}

func (m Model) onButton() bool {
	return m.focus == len(m.inputs)
}

func (m *Model) setFocus(i int) tea.Cmd {
	n := len(m.inputs) + 1
	m.focus = ((i % n) + n) % n
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == m.focus {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = m.page.Snapshot()
		cmds := []tea.Cmd{m.waitForSnapshot()}
		if m.snap.APIProgress() {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.snap.APIProgress() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.snap.SignUpSuccess() {
			if msg.String() == "q" || msg.String() == "enter" {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "tab", "down":
			return m, m.setFocus(m.focus + 1)
		case "shift+tab", "up":
			return m, m.setFocus(m.focus - 1)
		case "enter":
			if m.onButton() {
				return m.submit()
			}
			return m, m.setFocus(m.focus + 1)
		}

		if m.onButton() {
			return m, nil
		}
		return m.edit(msg)
	}

	if !m.onButton() {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) edit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	i := m.focus
	before := m.inputs[i].Value()
	var cmd tea.Cmd
	m.inputs[i], cmd = m.inputs[i].Update(msg)
	if after := m.inputs[i].Value(); after != before {
		m.err = m.page.Edit(m.fields[i], after)
		m.snap = m.page.Snapshot()
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	err := m.page.SubmitAsync()
	m.snap = m.page.Snapshot()
	if err != nil {
		// a disabled button ignores the press
		return m, nil
	}
	return m, m.spinner.Tick
}

// View renders the model
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sign Up"))
	b.WriteString("\n")

	if m.snap.SignUpSuccess() {
		b.WriteString(SuccessStyle.Render(signup.ConfirmationText))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("q: quit"))
		return b.String()
	}

	for i, f := range m.fields {
		label := LabelStyle
		if i == m.focus {
			label = FocusedLabelStyle
		}
		b.WriteString(label.Render(f.Label()))
		b.WriteString("\n")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
		if help := m.snap.Help(f); help != "" {
			b.WriteString(FieldErrorStyle.Render(help))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if failure := m.snap.Failure(); failure != "" {
		b.WriteString(FailureStyle.Render(failure))
		b.WriteString("\n")
	}

	b.WriteString(m.buttonView())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(FieldErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("tab/shift+tab: move • enter: next / submit • esc: quit"))
	return b.String()
}

func (m Model) buttonView() string {
	text := "Sign Up"
	if m.snap.APIProgress() {
		text = m.spinner.View() + " " + text
	}
	switch {
	case !m.snap.SubmitEnabled():
		return DisabledButtonStyle.Render("[ " + text + " ]")
	case m.onButton():
		return FocusedButtonStyle.Render(text)
	default:
		return ButtonStyle.Render(text)
	}
}

// Run shows the form until the user quits.
func Run(page *runtime.Controller, opts ...tea.ProgramOption) error {
	m := New(page)
	defer m.Close()
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

// Package tui implements the interactive template editor.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/affandhia/simple-template-string/internal/session"
	"github.com/affandhia/simple-template-string/internal/templates"
	"github.com/affandhia/simple-template-string/internal/tui/components"
	"github.com/affandhia/simple-template-string/internal/tui/styles"
)

// Editor is the session surface the TUI drives.
type Editor interface {
	EditTemplate(text string) error
	EditValue(name, value string) error
	ClearValues() error
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Options configure the TUI.
type Options struct {
	Editor  Editor
	Library []*templates.Template
	Theme   string
}

// Run launches the editor and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	if opts.Editor == nil {
		return fmt.Errorf("editor is required")
	}
	updates, cancel := opts.Editor.Subscribe()
	defer cancel()

	program := tea.NewProgram(newModel(opts, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

const (
	minWidth  = 50
	minHeight = 15
)

type model struct {
	editor  Editor
	updates <-chan session.Snapshot
	styles  styles.Styles

	width  int
	height int

	snapshot session.Snapshot
	loaded   bool
	closed   bool
	err      error

	template textarea.Model
	names    []string
	inputs   map[string]textinput.Model
	// focus 0 is the template; i > 0 is names[i-1].
	focus int

	palette     *components.TemplatePalette
	paletteOpen bool
	hasLibrary  bool
}

func newModel(opts Options, updates <-chan session.Snapshot) model {
	ta := textarea.New()
	ta.Placeholder = "Type a template, e.g. Hello {{name}}"
	ta.ShowLineNumbers = false
	ta.SetHeight(6)
	ta.Focus()

	items := make([]components.PaletteItem, 0, len(opts.Library))
	for _, tmpl := range opts.Library {
		items = append(items, components.PaletteItem{
			Name:        tmpl.Name,
			Description: tmpl.Description,
			Tags:        tmpl.Tags,
			Text:        tmpl.Text,
		})
	}

	return model{
		editor:     opts.Editor,
		updates:    updates,
		styles:     styles.BuildStyles(styles.ThemeByName(opts.Theme)),
		template:   ta,
		inputs:     make(map[string]textinput.Model),
		palette:    components.NewTemplatePalette(items),
		hasLibrary: len(items) > 0,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForSnapshot(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.template.SetWidth(max(msg.Width-4, 20))
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, waitForSnapshot(m.updates)

	case SessionClosedMsg:
		m.closed = true
		return m, tea.Quit

	case EditErrorMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		if m.paletteOpen {
			return m.updatePalette(msg)
		}
		return m.updateEditor(msg)
	}

	return m.forward(msg)
}

func (m model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab":
		return m, m.setFocus(m.focus + 1)
	case "shift+tab":
		return m, m.setFocus(m.focus - 1)
	case "ctrl+l":
		for _, name := range m.names {
			input := m.inputs[name]
			input.SetValue("")
			m.inputs[name] = input
		}
		m.report(m.editor.ClearValues())
		return m, nil
	case "ctrl+x":
		m.template.Reset()
		m.report(m.editor.EditTemplate(""))
		return m, m.setFocus(0)
	case "ctrl+p":
		if m.hasLibrary {
			m.palette.Reset()
			m.paletteOpen = true
		}
		return m, nil
	}
	return m.forward(msg)
}

func (m model) updatePalette(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.paletteOpen = false
	case tea.KeyUp:
		m.palette.Move(-1)
	case tea.KeyDown:
		m.palette.Move(1)
	case tea.KeyBackspace:
		m.palette.Backspace()
	case tea.KeyEnter:
		if item := m.palette.Selected(); item != nil {
			m.paletteOpen = false
			m.template.SetValue(item.Text)
			m.report(m.editor.EditTemplate(item.Text))
			return m, m.setFocus(0)
		}
	case tea.KeyRunes, tea.KeySpace:
		m.palette.Type(string(msg.Runes))
	}
	return m, nil
}

// forward hands msg to the focused field and pushes any resulting edit.
func (m model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.focus == 0 {
		before := m.template.Value()
		var cmd tea.Cmd
		m.template, cmd = m.template.Update(msg)
		if after := m.template.Value(); after != before {
			m.report(m.editor.EditTemplate(after))
		}
		return m, cmd
	}

	name := m.names[m.focus-1]
	input := m.inputs[name]
	before := input.Value()
	var cmd tea.Cmd
	input, cmd = input.Update(msg)
	m.inputs[name] = input
	if after := input.Value(); after != before {
		m.report(m.editor.EditValue(name, after))
	}
	return m, cmd
}

func (m *model) report(err error) {
	if err != nil {
		m.err = err
	}
}

func (m *model) setFocus(focus int) tea.Cmd {
	fields := len(m.names) + 1
	focus = ((focus % fields) + fields) % fields

	if m.focus == 0 {
		m.template.Blur()
	} else {
		name := m.names[m.focus-1]
		input := m.inputs[name]
		input.Blur()
		m.inputs[name] = input
	}

	m.focus = focus
	if focus == 0 {
		return m.template.Focus()
	}
	name := m.names[focus-1]
	input := m.inputs[name]
	cmd := input.Focus()
	m.inputs[name] = input
	return cmd
}

// applySnapshot follows the committed variable list. Inputs keep what the
// user typed; new variables start from their committed value.
func (m *model) applySnapshot(snap session.Snapshot) {
	m.snapshot = snap
	if !m.loaded {
		m.template.SetValue(snap.Text)
		m.loaded = true
	}

	focused := ""
	if m.focus > 0 && m.focus-1 < len(m.names) {
		focused = m.names[m.focus-1]
	}

	inputs := make(map[string]textinput.Model, len(snap.Variables))
	for _, name := range snap.Variables {
		input, ok := m.inputs[name]
		if !ok {
			input = textinput.New()
			input.Prompt = ""
			input.Placeholder = templates.Placeholder(name)
			input.SetValue(snap.Value(name))
			input.Blur()
		}
		inputs[name] = input
	}
	m.inputs = inputs
	m.names = append(m.names[:0:0], snap.Variables...)

	m.focus = 0
	for i, name := range m.names {
		if name == focused {
			m.focus = i + 1
		}
	}
	if m.focus == 0 && !m.template.Focused() {
		m.template.Focus()
	}
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 && (m.width < minWidth || m.height < minHeight) {
		return strings.Join([]string{
			m.styles.Warning.Render(fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)),
			m.styles.Muted.Render(fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)),
		}, "\n") + "\n"
	}

	if m.paletteOpen {
		lines := m.palette.Render(m.styles, m.width)
		lines = append(lines, "", components.RenderQuickActionBar(m.styles, components.PaletteQuickActions()))
		return strings.Join(lines, "\n") + "\n"
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Title.Render("Template editor"),
		"  ",
		components.RenderStateBadge(m.styles, m.snapshot),
	)

	templatePanel := m.styles.Panel
	if m.focus == 0 {
		templatePanel = m.styles.FocusedPanel
	}

	lines := []string{
		header,
		"",
		templatePanel.Render(m.template.View()),
	}
	if msg := m.snapshot.Validation(); msg != "" {
		lines = append(lines, m.styles.Error.Render(msg))
	}

	lines = append(lines, "", m.styles.Accent.Render("Variables"))
	if len(m.names) == 0 {
		lines = append(lines, components.EmptyVariables().Render(m.styles))
	}
	for i, name := range m.names {
		label := m.styles.Label.Render(name + ":")
		if m.focus == i+1 {
			label = m.styles.Focus.Render(name + ":")
		}
		lines = append(lines, fmt.Sprintf("%s %s", label, m.inputs[name].View()))
	}

	lines = append(lines, "", m.styles.Accent.Render("Output"), m.styles.Panel.Render(m.snapshot.Rendered))

	if m.err != nil {
		lines = append(lines, m.styles.Error.Render(m.err.Error()))
	}
	lines = append(lines, "", components.RenderQuickActionBar(m.styles, components.EditorQuickActions(len(m.names) > 0, m.hasLibrary)))
	return strings.Join(lines, "\n") + "\n"
}

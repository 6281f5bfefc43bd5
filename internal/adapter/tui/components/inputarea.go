package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatline/internal/adapter/tui/theme"
)

// InputSubmitMsg is sent when the user presses Enter on a non-empty input.
type InputSubmitMsg struct {
	Value string
}

// InputAreaModel wraps a textarea with slash-command completion and submit handling.
type InputAreaModel struct {
	Textarea     textarea.Model
	Autocomplete AutocompleteModel
	Enabled      bool
	width        int
}

// NewInputArea creates an input area completing the given commands.
func NewInputArea(commands []CommandDef) InputAreaModel {
	ta := textarea.New()
	ta.Placeholder = "Ask anything... (/help for commands)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()

	return InputAreaModel{
		Textarea:     ta,
		Autocomplete: NewAutocomplete(commands),
		Enabled:      true,
	}
}

// SetWidth updates the textarea width.
func (m *InputAreaModel) SetWidth(w int) {
	m.width = w
	m.Textarea.SetWidth(w - 2)
	m.Autocomplete.SetWidth(w)
}

// SetEnabled enables or disables typing.
func (m *InputAreaModel) SetEnabled(enabled bool) {
	m.Enabled = enabled
	if enabled {
		m.Textarea.Focus()
	} else {
		m.Textarea.Blur()
	}
}

// Reset clears the input.
func (m *InputAreaModel) Reset() {
	m.Textarea.Reset()
	m.Autocomplete.Hide()
}

// Value returns the current input text.
func (m InputAreaModel) Value() string {
	return m.Textarea.Value()
}

// Height returns the lines used by the textarea and popup.
func (m InputAreaModel) Height() int {
	return m.Textarea.Height() + m.Autocomplete.Height()
}

// ParseSlashCommand splits "/cmd a b" into the lower-cased command and its
// arguments. ok is false when input is not a slash command.
func ParseSlashCommand(input string) (cmd string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Update handles key events. Enter submits; Alt+Enter inserts a newline.
// While the popup is visible, Tab and the arrow keys move through it and
// Enter accepts the selection.
func (m InputAreaModel) Update(msg tea.Msg) (InputAreaModel, tea.Cmd) {
	if !m.Enabled {
		return m, nil
	}
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if m.Autocomplete.Visible {
			switch key.Type {
			case tea.KeyTab, tea.KeyDown:
				m.Autocomplete.Move(1)
				return m, nil
			case tea.KeyShiftTab, tea.KeyUp:
				m.Autocomplete.Move(-1)
				return m, nil
			case tea.KeyEnter:
				if name := m.Autocomplete.Accept(); name != "" {
					m.Textarea.SetValue(name + " ")
					m.Textarea.CursorEnd()
				}
				return m, nil
			case tea.KeyEsc:
				m.Autocomplete.Hide()
				return m, nil
			}
		}

		if key.Type == tea.KeyEnter && !key.Alt {
			value := strings.TrimSpace(m.Textarea.Value())
			if value == "" {
				return m, nil
			}
			m.Reset()
			return m, func() tea.Msg { return InputSubmitMsg{Value: value} }
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)

	value := m.Textarea.Value()
	if strings.HasPrefix(value, "/") && !strings.ContainsAny(value, " \n") {
		m.Autocomplete.SetPrefix(value)
	} else {
		m.Autocomplete.Hide()
	}
	return m, cmd
}

// View renders the input area with the popup above it.
func (m InputAreaModel) View() string {
	if popup := m.Autocomplete.View(); popup != "" {
		return popup + "\n" + m.Textarea.View()
	}
	return m.Textarea.View()
}

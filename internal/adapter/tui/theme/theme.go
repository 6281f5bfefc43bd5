// Package theme holds the colors and styles of the chat TUI. Colors are
// adaptive so the same palette works on light and dark terminals.
//
// NO_COLOR is honoured by lipgloss's color profile detection.
package theme

import "github.com/charmbracelet/lipgloss"

// MaxContentWidth caps the message column on wide terminals.
const MaxContentWidth = 100

// SidebarWidth is the width of the session list.
const SidebarWidth = 28

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorBgAlt        = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	ColorFgDim        = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
	ColorSelectBg     = lipgloss.AdaptiveColor{Light: "#e3f2fd", Dark: "#263238"}
)

var (
	Dim = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Message headers.
var (
	UserLabel  = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	BotLabel   = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	ErrorLabel = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	Timestamp  = lipgloss.NewStyle().Foreground(ColorFgDim).Faint(true)
)

// Session sidebar.
var (
	SidebarBox = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(ColorBorder).
			PaddingRight(1)

	SidebarTitle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)

	SessionItem = lipgloss.NewStyle().Foreground(ColorMuted)

	SessionSelected = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Background(ColorSelectBg).
			Bold(true)

	SessionCurrent = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Status bar and input.
var (
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)

	InputPrompt      = lipgloss.NewStyle().Foreground(ColorInfo).Bold(true)
	InputPlaceholder = lipgloss.NewStyle().Foreground(ColorFgDim)
)

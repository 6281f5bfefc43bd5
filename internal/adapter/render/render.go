// Package render formats assistant replies for the terminal: markdown via
// glamour and a compact source line via lipgloss.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chatline/internal/domain"
	"chatline/internal/infra/config"
)

const (
	minWrap = 20
	maxWrap = 120
)

var (
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"})
	webStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}).Bold(true)
	docStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}).Bold(true)
)

// Renderer turns markdown into terminal output. It caches one glamour
// renderer per wrap width and falls back to plain text when markdown is off
// or glamour fails.
type Renderer struct {
	cfg config.RenderConfig

	mu    sync.Mutex
	terms map[int]*glamour.TermRenderer
}

// New creates a Renderer.
func New(cfg config.RenderConfig) *Renderer {
	if cfg.WordWrap <= 0 {
		cfg.WordWrap = 80
	}
	return &Renderer{cfg: cfg, terms: make(map[int]*glamour.TermRenderer)}
}

// Markdown renders text at the configured width.
func (r *Renderer) Markdown(text string) string {
	return r.MarkdownWidth(text, r.cfg.WordWrap)
}

// MarkdownWidth renders text wrapped at width columns.
func (r *Renderer) MarkdownWidth(text string, width int) string {
	width = clampWidth(width)
	if !r.cfg.Markdown || strings.TrimSpace(text) == "" {
		return Wrap(text, width)
	}
	term, err := r.term(width)
	if err != nil {
		return Wrap(text, width)
	}
	out, err := term.Render(text)
	if err != nil {
		return Wrap(text, width)
	}
	return strings.Trim(out, "\n")
}

func (r *Renderer) term(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.terms[width]; ok {
		return t, nil
	}
	style := glamour.WithAutoStyle()
	if r.cfg.Style != "" && r.cfg.Style != "auto" {
		style = glamour.WithStandardStyle(r.cfg.Style)
	}
	t, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("glamour renderer: %w", err)
	}
	r.terms[width] = t
	return t, nil
}

// Message renders a finalized message: the body, then its source line when
// there is one.
func (r *Renderer) Message(msg domain.ChatMessage, width int) string {
	var body string
	switch {
	case msg.IsError():
		body = errorStyle.Render(Wrap(msg.Text, clampWidth(width)))
	case msg.Role == domain.RoleAssistant:
		body = r.MarkdownWidth(msg.Text, width)
	default:
		body = Wrap(msg.Text, clampWidth(width))
	}
	if line := SourceLine(msg.SourceType, msg.Sources); line != "" {
		return body + "\n" + line
	}
	return body
}

// SourceLine summarises where a reply came from. Plain model answers and
// user messages get no line.
func SourceLine(st domain.SourceType, sources []string) string {
	var badge string
	switch st {
	case domain.SourceWeb:
		badge = webStyle.Render("web")
	case domain.SourceRetrieval:
		badge = docStyle.Render("documents")
	case domain.SourceError:
		return ""
	case domain.SourceNone, domain.SourceLLM:
		if len(sources) == 0 {
			return ""
		}
		badge = sourceStyle.Render(string(domain.SourceLLM))
	default:
		badge = sourceStyle.Render(string(st))
	}

	var sb strings.Builder
	sb.WriteString(sourceStyle.Render("source: "))
	sb.WriteString(badge)
	for i, s := range sources {
		sb.WriteString("\n")
		sb.WriteString(sourceStyle.Render(fmt.Sprintf("  [%d] %s", i+1, s)))
	}
	return sb.String()
}

// Wrap breaks s at spaces so no line exceeds width runes. Existing line
// breaks are kept; words longer than width are split.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	var out []string
	for len(runes) > width {
		cut := -1
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		if cut <= 0 {
			cut = width
		}
		out = append(out, strings.TrimRight(string(runes[:cut]), " "))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n")
}

func clampWidth(w int) int {
	if w < minWrap {
		return minWrap
	}
	if w > maxWrap {
		return maxWrap
	}
	return w
}

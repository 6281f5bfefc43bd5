package components

import (
	"fmt"

	"chatline/internal/adapter/tui/theme"
)

// FilterBarModel shows the active message search and how many messages
// match it.
type FilterBarModel struct {
	Query    string
	Total    int
	Filtered int
}

// Active reports whether a search is applied.
func (m FilterBarModel) Active() bool {
	return m.Query != ""
}

// Set applies a search with its match counts.
func (m *FilterBarModel) Set(query string, filtered, total int) {
	m.Query = query
	m.Filtered = filtered
	m.Total = total
}

// Clear removes the search.
func (m *FilterBarModel) Clear() {
	*m = FilterBarModel{}
}

// View renders the bar, or nothing when no search is active.
func (m FilterBarModel) View() string {
	if !m.Active() {
		return ""
	}
	return "  " + theme.TextInfo.Render("Search: "+m.Query) +
		theme.Dim.Render(fmt.Sprintf("  %d/%d messages  (/search to clear)", m.Filtered, m.Total))
}

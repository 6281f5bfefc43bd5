package usecase

import (
	"strings"
	"time"

	"chatline/internal/domain"
)

// accrual is the state of one in-flight streamed reply. Text only ever
// grows by appending fragments in arrival order.
type accrual struct {
	text      strings.Builder
	fragments int
}

// add appends one fragment and returns the full text so far.
func (a *accrual) add(fragment string) string {
	a.text.WriteString(fragment)
	a.fragments++
	return a.text.String()
}

// finish builds the assistant message, applying the source defaults.
func (a *accrual) finish(source domain.SourceType, sources []string) domain.ChatMessage {
	if source == domain.SourceNone {
		source = domain.DefaultSourceType
	}
	if sources == nil {
		sources = []string{}
	}
	return domain.ChatMessage{
		Role:       domain.RoleAssistant,
		Text:       a.text.String(),
		Timestamp:  time.Now(),
		SourceType: source,
		Sources:    sources,
	}
}

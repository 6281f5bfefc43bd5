package mockserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatline/internal/domain"
)

func TestNeedsWebSearch(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"What happened today?", true},
		{"latest Go release", true},
		{"Any NEWS on the launch", true},
		{"who won in 2024", true},
		{"what happened in 2021", false},
		{"explain goroutines", false},
		{"order 12024 units", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsWebSearch(tt.query), tt.query)
	}
}

func TestIsGreeting(t *testing.T) {
	for _, msg := range []string{"hi", "Hello there", "hey!", "Good morning", "how are you?", "whats up", "how's it going"} {
		assert.True(t, IsGreeting(msg), msg)
	}
	for _, msg := range []string{"this is a history question", "explain channels", "good question"} {
		assert.False(t, IsGreeting(msg), msg)
	}
}

func TestCompose(t *testing.T) {
	t.Run("greeting", func(t *testing.T) {
		r := Compose("hello", nil)
		assert.Equal(t, domain.SourceLLM, r.SourceType)
		assert.Contains(t, r.Text, "Hello!")
		assert.Equal(t, -1, r.FailAfter)

		again := Compose("hello", []Record{{Role: domain.RoleUser}, {Role: domain.RoleAssistant}})
		assert.Contains(t, again.Text, "Hello again")
	})

	t.Run("web", func(t *testing.T) {
		r := Compose("latest news", nil)
		assert.Equal(t, domain.SourceWeb, r.SourceType)
		assert.Len(t, r.Sources, 2)
		assert.Contains(t, r.Sources[0], "latest+news")
	})

	t.Run("echo counts turns", func(t *testing.T) {
		r := Compose("explain maps", []Record{{Role: domain.RoleUser}, {Role: domain.RoleAssistant}})
		assert.Contains(t, r.Text, "*explain maps*")
		assert.Contains(t, r.Text, "turn 2")
		assert.Equal(t, []string{}, r.Sources)
	})

	t.Run("fail trigger", func(t *testing.T) {
		r := Compose("please [FAIL] now", nil)
		assert.Equal(t, 3, r.FailAfter)
	})
}

func TestFragmentsRoundTrip(t *testing.T) {
	text := "one two  three\nfour"
	frags := Fragments(text)
	assert.Greater(t, len(frags), 1)
	assert.Equal(t, text, strings.Join(frags, ""))
	assert.Nil(t, Fragments(""))
}

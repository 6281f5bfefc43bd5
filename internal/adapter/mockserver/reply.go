package mockserver

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"chatline/internal/domain"
)

// FailTrigger in a prompt makes the mock reply fail part-way through, so
// clients can exercise their error path.
const FailTrigger = "[fail]"

// failMessage is the error record text sent when a reply fails.
const failMessage = "An error occurred while processing your request"

// webCutoffYear is the last year the pretend model knows about; prompts
// mentioning a later year are answered "from the web".
const webCutoffYear = 2022

var recencyKeywords = []string{
	"today", "yesterday", "breaking", "currently", "latest", "last week", "last month",
	"this week", "this month", "just happened", "right now", "live",
	"update", "recent", "ongoing", "news", "recently",
}

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bhi\b`),
	regexp.MustCompile(`\bhello\b`),
	regexp.MustCompile(`\bhey\b`),
	regexp.MustCompile(`good (morning|afternoon|evening|night)`),
	regexp.MustCompile(`how are you\??`),
	regexp.MustCompile(`what'?s up\??`),
	regexp.MustCompile(`how'?s it going\??`),
}

// NeedsWebSearch reports whether a prompt asks about recent events.
func NeedsWebSearch(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range recencyKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	for _, m := range yearPattern.FindAllStringSubmatch(q, -1) {
		if year, err := strconv.Atoi(m[1]); err == nil && year > webCutoffYear {
			return true
		}
	}
	return false
}

// IsGreeting reports whether a message is small talk.
func IsGreeting(message string) bool {
	m := strings.ToLower(message)
	for _, p := range greetingPatterns {
		if p.MatchString(m) {
			return true
		}
	}
	return false
}

// Reply is a canned answer.
type Reply struct {
	Text       string
	SourceType domain.SourceType
	Sources    []string
	// FailAfter is the number of fragments sent before an error record;
	// negative means the reply completes.
	FailAfter int
}

// Compose builds the answer to message given the earlier turns.
func Compose(message string, history []Record) Reply {
	turn := 1
	for _, r := range history {
		if r.Role == domain.RoleUser {
			turn++
		}
	}

	switch {
	case strings.Contains(strings.ToLower(message), FailTrigger):
		return Reply{Text: "Let me think about that for a moment", SourceType: domain.SourceLLM, Sources: []string{}, FailAfter: 3}

	case IsGreeting(message):
		text := "Hello! I'm the chatline mock assistant. How can I help you today?"
		if turn > 1 {
			text = "Hello again! What else can I help you with?"
		}
		return Reply{Text: text, SourceType: domain.SourceLLM, Sources: []string{}, FailAfter: -1}

	case NeedsWebSearch(message):
		q := url.QueryEscape(message)
		return Reply{
			Text: fmt.Sprintf("Here is what I found on the web about **%s**:\n\n"+
				"1. The first result summarises the topic.\n"+
				"2. The second result adds recent details.", message),
			SourceType: domain.SourceWeb,
			Sources: []string{
				"https://example.com/search?q=" + q + "&r=1",
				"https://example.com/search?q=" + q + "&r=2",
			},
			FailAfter: -1,
		}

	default:
		return Reply{
			Text: fmt.Sprintf("You asked: *%s*\n\nThis is turn %d of our conversation. "+
				"I am a mock service, so I can only echo your question back.", message, turn),
			SourceType: domain.SourceLLM,
			Sources:    []string{},
			FailAfter:  -1,
		}
	}
}

// Fragments splits text into word-sized pieces that concatenate back to it.
func Fragments(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}

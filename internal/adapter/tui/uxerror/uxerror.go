// Package uxerror turns errors from the service client into short,
// actionable messages for the TUI and CLI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"chatline/internal/adapter/tui/theme"
	"chatline/internal/domain"
)

// FriendlyError is a user-facing error with recovery hints.
type FriendlyError struct {
	Title   string
	Message string
	Hints   []string
	Raw     string
}

// Render formats the error as a few indented lines.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

// patterns are checked in order; sentinels first, then text matches for
// errors that reach us unwrapped from the network stack.
var patterns = []errorPattern{
	{
		match:   is(domain.ErrSendInFlight),
		produce: constant("Still Answering", "A reply for this chat is still streaming.", []string{"Wait for it to finish", "Press Ctrl+C to cancel it"}),
	},
	{
		match:   is(domain.ErrEmptyMessage),
		produce: constant("Empty Message", "There is nothing to send.", nil),
	},
	{
		match:   is(domain.ErrSessionNotFound),
		produce: constant("Chat Not Found", "The chat does not exist or belongs to another user.", []string{"Refresh the session list with /sessions"}),
	},
	{
		match:   is(domain.ErrNotLoggedIn),
		produce: constant("Not Logged In", "No user is selected.", []string{"Run 'chatline login'", "Pass --user or set user.username in the config"}),
	},
	{
		match:   is(domain.ErrAuthInvalid),
		produce: constant("Login Failed", "The username or password was rejected.", []string{"Check your credentials", "Create an account with 'chatline signup'"}),
	},
	{
		match:   is(domain.ErrDuplicate),
		produce: constant("Already Exists", "That username is taken.", []string{"Pick another username"}),
	},
	{
		match:   is(domain.ErrRateLimit),
		produce: constant("Rate Limited", "Too many requests were sent to the assistant service.", []string{"Wait a moment before retrying"}),
	},
	{
		match:   is(domain.ErrServiceUnavailable),
		produce: constant("Service Unavailable", "The assistant service is failing or unreachable.", []string{"Try again shortly", "Check service.base_url in the config"}),
	},
	{
		match: is(domain.ErrRemote),
		produce: func(err error) FriendlyError {
			fe := FriendlyError{
				Title:   "Assistant Error",
				Message: "The assistant reported an error while answering.",
				Hints:   []string{"Try again or rephrase the question"},
				Raw:     err.Error(),
			}
			var serr *domain.StreamingError
			if errors.As(err, &serr) && serr.Message != "" {
				fe.Message = serr.Message
			}
			return fe
		},
	},
	{
		match:   is(domain.ErrProtocol),
		produce: constant("Unexpected Reply", "The service sent data this client does not understand.", []string{"Check that the client and service versions match"}),
	},
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constant("Connection Failed", "Could not reach the assistant service.", []string{"Check that the service is running", "Verify service.base_url in the config", "Start a local one with 'chatline mock-server'"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout"),
		produce: constant("Request Timed Out", "The service took too long to answer.", []string{"Try again", "Increase service.resp_timeout in the config"}),
	},
	{
		match:   is(domain.ErrTransport),
		produce: constant("Connection Lost", "The reply stream broke before it finished.", []string{"Try again", "Regenerate the answer with /regen"}),
	},
	{
		match:   is(domain.ErrInvalidInput),
		produce: func(err error) FriendlyError {
			return FriendlyError{Title: "Invalid Input", Message: err.Error(), Raw: err.Error()}
		},
	},
}

// Humanize converts err into a FriendlyError.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with --log-level debug for details"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny matches the error text case-insensitively.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

func constant(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{Title: title, Message: message, Hints: hints, Raw: err.Error()}
	}
}

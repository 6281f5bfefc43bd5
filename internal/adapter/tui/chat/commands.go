package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatline/internal/domain"
	"chatline/internal/usecase"
)

// notifier forwards messages produced off the update loop. It is shared
// by pointer so copies of the model reach the running program.
type notifier struct {
	send func(tea.Msg)
}

func (n *notifier) notify(msg tea.Msg) {
	if n != nil && n.send != nil {
		n.send(msg)
	}
}

func (n *notifier) progress(gen uint64) domain.ProgressFunc {
	return func(p domain.Progress) {
		n.notify(ProgressMsg{Progress: p, Gen: gen})
	}
}

// sendCmd sends text on a background goroutine. Progress is pushed to the
// program as it arrives; the command itself resolves to a ReplyDoneMsg.
func sendCmd(ctx context.Context, conv *usecase.Conversation, n *notifier, text string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		reply, err := conv.Send(ctx, text, n.progress(gen))
		return ReplyDoneMsg{Reply: reply, Err: err, Gen: gen}
	}
}

func regenerateCmd(ctx context.Context, conv *usecase.Conversation, n *notifier, idx int, gen uint64) tea.Cmd {
	return func() tea.Msg {
		reply, err := conv.Regenerate(ctx, idx, n.progress(gen))
		return ReplyDoneMsg{Reply: reply, Err: err, Gen: gen}
	}
}

func loadHistoryCmd(conv *usecase.Conversation, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := conv.Load(ctx)
		return HistoryLoadedMsg{SessionID: conv.SessionID(), Err: err}
	}
}

func switchCmd(conv *usecase.Conversation, sessionID string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := conv.Switch(ctx, sessionID)
		return HistoryLoadedMsg{SessionID: sessionID, Err: err}
	}
}

func loadSessionsCmd(svc *usecase.SessionService, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		sessions, err := svc.List(ctx)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

func deleteSessionCmd(svc *usecase.SessionService, sessionID string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return SessionDeletedMsg{SessionID: sessionID, Err: svc.Delete(ctx, sessionID)}
	}
}

func renameSessionCmd(svc *usecase.SessionService, sessionID, name string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return SessionRenamedMsg{SessionID: sessionID, Name: name, Err: svc.Rename(ctx, sessionID, name)}
	}
}

// revealTickCmd fires a RevealTickMsg after the given delay.
func revealTickCmd(rate time.Duration) tea.Cmd {
	if rate <= 0 {
		rate = 16 * time.Millisecond
	}
	return tea.Tick(rate, func(time.Time) tea.Msg {
		return RevealTickMsg{}
	})
}

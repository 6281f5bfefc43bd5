package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"chatline/internal/adapter/tui/components"
	"chatline/internal/adapter/tui/theme"
	"chatline/internal/domain"
)

const previewWidth = 60

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List stored sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			username, err := a.currentUser(ctx)
			if err != nil {
				return err
			}

			sessions, err := a.sessionService(username).List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No saved chats.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderRow(false).
				Headers("#", "SESSION", "PREVIEW")
			for i, s := range sessions {
				preview := strings.Join(strings.Fields(s.Preview), " ")
				t.Row(strconv.Itoa(i+1), s.ID, components.Truncate(preview, previewWidth))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print the messages of a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			username, err := a.currentUser(ctx)
			if err != nil {
				return err
			}

			msgs, err := a.sessionService(username).Messages(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "This chat has no messages.")
				return nil
			}
			width := a.cfg.Render.WordWrap
			for i, m := range msgs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				label := "You"
				if m.Role == domain.RoleAssistant {
					label = "Assistant"
				}
				if !m.Timestamp.IsZero() {
					label += "  " + m.Timestamp.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintln(out, lipgloss.NewStyle().Bold(true).Render(label))
				fmt.Fprintln(out, strings.TrimRight(a.renderer.Message(m, width), "\n"))
			}
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			username, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			if err := a.sessionService(username).Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.TextSuccess.Render(fmt.Sprintf("Deleted session %s.", args[0])))
			return nil
		},
	}
}

func newRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <new name>",
		Short: "Rename a stored session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			username, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")
			if err := a.sessionService(username).Rename(ctx, args[0], name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.TextSuccess.Render(fmt.Sprintf("Renamed session %s to %q.", args[0], strings.TrimSpace(name))))
			return nil
		},
	}
}

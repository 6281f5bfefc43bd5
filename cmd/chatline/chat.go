package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chatline/internal/adapter/render"
	"chatline/internal/adapter/tui/chat"
	"chatline/internal/domain"
	"chatline/internal/infra/logger"
)

type chatOptions struct {
	session  string
	noStream bool
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var co chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, co)
		},
	}
	cmd.Flags().StringVarP(&co.session, "session", "s", "", "open a stored session instead of a new chat")
	cmd.Flags().BoolVar(&co.noStream, "no-stream", false, "wait for whole replies instead of streaming")
	return cmd
}

func runChat(cmd *cobra.Command, opts *rootOptions, co chatOptions) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	username, err := a.currentUser(ctx)
	if err != nil {
		return err
	}
	streaming := a.cfg.Service.Streaming && !co.noStream

	return chat.Run(ctx, chat.Deps{
		Conversation: a.conversation(username, co.session, streaming),
		Sessions:     a.sessionService(username),
		Renderer:     a.renderer,
		Username:     username,
		LoadHistory:  co.session != "",
		Logger:       logger.WithComponent(a.logger, "tui"),
	})
}

type askOptions struct {
	session  string
	noStream bool
	raw      bool
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var ao askOptions
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Example: `  chatline ask "what changed in Go 1.22?"
  chatline ask --session 5f0c... "and in 1.23?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, ao, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&ao.session, "session", "s", "", "continue a stored session")
	cmd.Flags().BoolVar(&ao.noStream, "no-stream", false, "use the one-shot endpoint instead of streaming")
	cmd.Flags().BoolVar(&ao.raw, "raw", false, "print the one-shot reply without markdown rendering")
	return cmd
}

func runAsk(cmd *cobra.Command, opts *rootOptions, ao askOptions, message string) error {
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
	streaming := a.cfg.Service.Streaming && !ao.noStream
	conv := a.conversation(username, ao.session, streaming)
	out := cmd.OutOrStdout()

	var printed bool
	onProgress := func(p domain.Progress) {
		if streaming && !p.IsComplete && p.Chunk != "" {
			fmt.Fprint(out, p.Chunk)
			printed = true
		}
	}

	reply, err := conv.Send(ctx, message, onProgress)
	if printed {
		fmt.Fprintln(out)
	}
	if err != nil {
		if isCancelled(err) {
			return nil
		}
		return err
	}

	if !streaming {
		text := reply.Text
		if !ao.raw {
			text = a.renderer.MarkdownWidth(reply.Text, a.cfg.Render.WordWrap)
		}
		fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	}
	if line := render.SourceLine(reply.SourceType, reply.Sources); line != "" {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", conv.SessionID())
	return nil
}

package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	user       string
	baseURL    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chatline",
		Short: "Terminal client for the chat assistant service",
		Long: `chatline talks to the assistant service over HTTP and shows replies
as they stream in. Run without a command to open the interactive chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts, chatOptions{})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default $HOME/.chatline/config.yaml)")
	pf.StringVarP(&opts.user, "user", "u", "", "username for service calls (overrides user.username)")
	pf.StringVar(&opts.baseURL, "base-url", "", "assistant service URL (overrides service.base_url)")
	pf.StringVarP(&opts.logLevel, "log-level", "l", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newSessionsCmd(opts),
		newHistoryCmd(opts),
		newDeleteCmd(opts),
		newRenameCmd(opts),
		newSignupCmd(opts),
		newLoginCmd(opts),
		newMockServerCmd(opts),
	)
	return root
}

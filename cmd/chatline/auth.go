package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type credentialOptions struct {
	password string
}

// readPassword returns the --password value, prompting without echo on a
// terminal and reading one line from stdin otherwise.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newSignupCmd(opts *rootOptions) *cobra.Command {
	var co credentialOptions
	cmd := &cobra.Command{
		Use:   "signup <username>",
		Short: "Create an account on the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			password, err := readPassword(cmd, co.password)
			if err != nil {
				return err
			}
			if err := a.auth.Signup(ctx, args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. Log in with: chatline login %s\n", args[0], args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&co.password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var co credentialOptions
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check credentials against the service",
		Long: `login verifies a username and password. The service issues no token;
pass --user or set user.username (and optionally user.password) in the
config to chat as that user.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			password, err := readPassword(cmd, co.password)
			if err != nil {
				return err
			}
			if err := a.auth.Login(ctx, args[0], password); err != nil {
				return err
			}
			user, err := a.auth.Current()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&co.password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

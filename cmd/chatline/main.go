package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatline/internal/adapter/tui/uxerror"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
		stop()
		os.Exit(1)
	}
}

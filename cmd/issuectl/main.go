package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/issuedesk/issue-service/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.Options{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

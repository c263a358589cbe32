package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"shiftcal/internal/cli"
	appLog "shiftcal/internal/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.SetVersion(version, commit, date)
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		appLog.Error("shiftcal failed", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // schedules need zone data on hosts without it

	"github.com/ibeckermayer/tokpost/internal/cli"
	"github.com/ibeckermayer/tokpost/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Args[1:])
	stop()
	observability.Sync()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process status: 0 on success, 2 when
// the run finished with failed videos, 130 when interrupted and 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	case errors.Is(err, cli.ErrVideosFailed):
		fmt.Fprintln(os.Stderr, err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
}

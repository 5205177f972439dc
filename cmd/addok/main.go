package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AntoineBreitwillerCSTB/addok/internal/cli"
	apperrors "github.com/AntoineBreitwillerCSTB/addok/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "addok: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/radsafe/radman-monitor/cmd/radreport/app"
)

func main() {
	config, err := app.NewConfigFromCLI()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config); err != nil {
		fmt.Fprintln(os.Stderr, err)

		cancel()
		os.Exit(1)
	}
}

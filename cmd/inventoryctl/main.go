// Package main is the inventoryctl command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fairyhunter13/inventory-manager/internal/cli"
	"github.com/fairyhunter13/inventory-manager/internal/config"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInvalidInvocation)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexanderjulianmartinez/load-watch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.NewRootCommand(os.Stdout, os.Stderr).Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

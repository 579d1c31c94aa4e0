// Command stellarsave manages group savings challenges, cross-border yield
// pools and remittances from the terminal, and serves the JSON API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stellarsave/stellarsave/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Command closurectl is the operator CLI of the school finance backend
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, closeApp := newRootCmd()
	err := root.ExecuteContext(ctx)
	if closeErr := closeApp(); closeErr != nil {
		pterm.Warning.Println(closeErr)
	}
	if err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

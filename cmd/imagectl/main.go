package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfroyo/imagectl/cmd/imagectl/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Create context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr, Version, Commit, BuildDate)
	cancel()
	os.Exit(code)
}

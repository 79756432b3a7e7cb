package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rafflebot/cmd/raffle/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root := commands.NewRoot()
	commands.SetArgs(root, os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/ballotbox/internal/cmd/ballotbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := flag.NewFlagSet("ballotbox", flag.ExitOnError)
	cfg, err := ballotbox.ParseConfig(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if err := ballotbox.Run(ctx, cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

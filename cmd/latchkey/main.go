package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	latchkeycmd "github.com/latchkey-auth/latchkey/internal/cmd/latchkey"
)

func main() {
	cfg, err := latchkeycmd.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[LATCHKEY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := latchkeycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fundgate/internal/app/bootstrap"

	flags "github.com/jessevdk/go-flags"
)

type options struct {
	ConfigFile string `short:"c" long:"config" env:"FUNDGATE_CONFIG" default:"configs/fundgate.yaml" description:"Path to the YAML config file"`
}

// Worker process entrypoint.
// Data flow:
// 1) Parse flags and load config.
// 2) Build app wiring.
// 3) Start the donation consumer and the scheduled jobs (window sweep,
// outbox relay, release and refund retries).
func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx, opts.ConfigFile)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("fundgate worker stopped with error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/docsync/internal/buildinfo"
	"github.com/dmitrijs2005/docsync/internal/client/cli"
	"github.com/dmitrijs2005/docsync/internal/client/config"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, logCloser := logging.NewFileLogger(cfg.LogFile, cfg.LogLevel)
	defer logCloser.Close()

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	// A signal ends the process without leaving the REPL, so unsynced work
	// is stored on the server as an autosave first.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Warn(ctx, "terminating", "signal", sig.String())
		app.Snapshot(ctx)
		app.Close(ctx)
		_ = logCloser.Close()
		os.Exit(1)
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}

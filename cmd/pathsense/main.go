// pathsense announces the closest obstacle in front of the camera.
//
// It needs no arguments: the first working camera is used and alerts are
// spoken at most once every two seconds. Ctrl+C exits; with
// --voice-commands, saying "exit", "quit" or "stop" does too.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pathsense/internal/cli"
	"github.com/teslashibe/go-pathsense/internal/log"
	"github.com/teslashibe/go-pathsense/pkg/pathsense"
)

func main() {
	cfg, opts, err := cli.Parse("pathsense", pathsense.DefaultConfig(), os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pathsense: %v\n", err)
		os.Exit(2)
	}
	log.Init(opts.LogLevel)

	os.Exit(run(cfg))
}

func run(cfg pathsense.Config) int {
	logger := log.L()

	app, err := pathsense.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		return 2
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		return 1
	}
	if err := app.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		return 1
	}
	return 0
}

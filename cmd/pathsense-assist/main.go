// pathsense-assist answers spoken questions about what the camera sees.
//
// It asks for the camera and microphone on startup unless --camera and
// --mic are given, then listens for questions. Saying "exit", "quit" or
// "stop" ends the session.
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
	"github.com/teslashibe/go-pathsense/pkg/audioio"
	"github.com/teslashibe/go-pathsense/pkg/pathsense"
)

func main() {
	cfg, opts, err := cli.Parse("pathsense-assist", pathsense.InteractiveConfig(), os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pathsense-assist: %v\n", err)
		os.Exit(2)
	}
	log.Init(opts.LogLevel)

	if err := chooseDevices(&cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "pathsense-assist: %v\n", err)
		os.Exit(2)
	}
	os.Exit(run(cfg))
}

// chooseDevices prompts for the devices not given as flags.
func chooseDevices(cfg *pathsense.Config, opts cli.Options) error {
	if opts.CameraSet && opts.MicSet {
		return nil
	}
	p := cli.NewPrompter(os.Stdin, os.Stdout)

	if !opts.CameraSet {
		idx, err := p.Int("Camera index (-1 finds one)", cfg.CameraIndex, pathsense.ProbeCamera)
		if err != nil {
			return err
		}
		cfg.CameraIndex = idx
	}

	if !opts.MicSet && cfg.AudioBackend != audioio.BackendMock {
		devs, err := audioio.Devices()
		if err != nil {
			log.Warn("cannot list microphones", "error", err)
		} else {
			cli.ListInputs(os.Stdout, devs)
		}
		idx, err := p.Int("Microphone index (-1 uses the default)", cfg.MicDevice, audioio.DefaultDevice)
		if err != nil {
			return err
		}
		cfg.MicDevice = idx
	}
	return nil
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

	fmt.Println("Listening. Ask about what is in front of you, or say \"stop\" to exit.")
	if err := app.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		return 1
	}
	return 0
}

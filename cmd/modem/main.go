package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rt-wireless/mbms-modem/cmd/modem/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath  string
		enumerate   bool
		captureFile string
		captureBW   uint
		writeFile   string
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&enumerate, "d", false, "List available SDR devices and exit")
	flag.StringVar(&captureFile, "f", "", "Decode from a CF32 capture file instead of live RF")
	flag.UintVar(&captureBW, "b", 0, "Channel bandwidth of the capture file in MHz")
	flag.StringVar(&writeFile, "w", "", "Write received samples to a CF32 capture file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if enumerate {
		if err := app.EnumerateDevices(ctx, os.Stdout); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if captureFile != "" {
		config.SDR.CaptureFile = captureFile
	}
	if captureBW > 0 {
		config.SDR.CaptureBandwidthMHz = uint32(captureBW)
	}
	if writeFile != "" {
		config.SDR.WriteCaptureFile = writeFile
	}
	if config.SDR.CaptureFile != "" && config.SDR.CaptureBandwidthMHz == 0 {
		logger.Error("-f requires the capture bandwidth (-b or captureBandwidthMHz)")
		os.Exit(1)
	}

	if err = logLevel.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		logger.Error(fmt.Sprintf("invalid log level %q", config.Settings.LogLevel))
		os.Exit(1)
	}

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

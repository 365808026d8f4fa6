package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamleson98/geostream/config"
	"github.com/iamleson98/geostream/geostream"
	"github.com/iamleson98/geostream/message"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "geostream: %v\n", err)
		os.Exit(2)
	}

	logger := log.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("geostream failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	it, closeInput, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer closeInput()

	g, err := geostream.New(geostream.Config{
		Stages: cfg.Stages,
		Output: geostream.NewWriterOutput(os.Stdout, fmt.Sprintf("stage %d", cfg.Stages)),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	count, err := g.Run(ctx, it)
	logger.WithField("messages", count).Debug("stream complete")
	return err
}

func openInput(path string) (message.Iterator, func(), error) {
	switch path {
	case "":
		return message.FromSlice(geostream.ScenarioA()...), func() {}, nil
	case config.Stdin:
		return message.NewDecoder(os.Stdin), func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return message.NewDecoder(f), func() { closeQuietly(f) }, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

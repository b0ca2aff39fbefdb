package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/picoflash/internal/device"
	"github.com/srg/picoflash/internal/device/goble"
	"github.com/srg/picoflash/internal/device/simulated"
	"github.com/srg/picoflash/internal/session"
	"github.com/srg/picoflash/internal/store"
	"github.com/srg/picoflash/pkg/config"
)

// Global flags
var (
	configPath string
	simulate   bool
)

// transportFactory builds the radio transport for a command run
var transportFactory = func(cfg *config.Config, useSimulator bool, logger *logrus.Logger) device.Transport {
	if useSimulator {
		return newSimulatedTransport(cfg, logger)
	}
	return goble.New(goble.Config{
		Service: cfg.Peripheral.Service,
		TX:      cfg.Peripheral.TX,
		RX:      cfg.Peripheral.RX,
		MTU:     cfg.Peripheral.MTU,
	}, logger)
}

func newSimulatedTransport(cfg *config.Config, logger *logrus.Logger) device.Transport {
	sim := simulated.DefaultConfig()
	sim.Interval = cfg.Simulator.Interval
	sim.Service = cfg.Peripheral.Service
	sim.TX = cfg.Peripheral.TX
	sim.RX = cfg.Peripheral.RX
	return simulated.New(sim, logger)
}

// app carries everything a command needs for one invocation
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	transport device.Transport
	store     *store.Store
	out       io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = filepath.Join(filepath.Dir(path), "state.yaml")
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		transport: transportFactory(cfg, simulate, logger),
		store:     store.New(statePath),
		out:       cmd.OutOrStdout(),
	}, nil
}

// resolveDeviceID returns the explicit address or falls back to the remembered one
func (a *app) resolveDeviceID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	id, err := a.store.DeviceID()
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoDeviceID
	}
	return id, nil
}

// connect opens a session and connects it under the configured connect timeout
func (a *app) connect(ctx context.Context, id string, opts ...session.Option) (*session.Session, error) {
	sess := session.New(a.transport, a.logger, opts...)

	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	progress := NewProgressPrinter(a.out, fmt.Sprintf("Connecting to %s", id), "Connecting")
	progress.Start()
	err := sess.Connect(connectCtx, id)
	progress.Stop()
	if err != nil {
		_ = sess.Close(ctx)
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"device":  id,
		"session": sess.Snapshot().SessionID,
	}).Info("Connected")
	return sess, nil
}

// interruptContext is cancelled on SIGINT or SIGTERM
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/picoflash/internal/session"
)

var (
	scanDuration time.Duration
	scanFormat   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE peripherals",
	Long: `Scan for BLE peripherals and list them in the order they were first seen.

Each peripheral is listed once no matter how many advertisements it sends.
The scan stops after --duration or on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config scan_timeout)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "", "Output format: table or json (default from config output_format)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	format := scanFormat
	if format == "" {
		format = a.cfg.OutputFormat
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	duration := scanDuration
	if duration <= 0 {
		duration = a.cfg.ScanTimeout
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	sess := session.New(a.transport, a.logger)
	defer func() { _ = sess.Close(context.Background()) }()

	granted, err := sess.RequestPermissions(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return session.ErrPermissionDenied
	}

	if err := sess.StartScan(ctx); err != nil {
		return err
	}

	progress := NewCountdownProgressPrinter(a.out, "Scanning for devices", "found 0", duration)
	progress.Start()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	events := sess.Registry().Events()
	interrupted := false
loop:
	for {
		select {
		case p := <-events:
			a.logger.WithField("device", p.ID).Debug("Listed new peripheral")
			progress.SetPhase(fmt.Sprintf("found %d", sess.Registry().Len()))
		case <-timer.C:
			break loop
		case <-ctx.Done():
			interrupted = true
			break loop
		}
	}
	progress.Stop()

	if err := sess.StopScan(); err != nil && !errors.Is(err, session.ErrNotScanning) {
		return err
	}

	if interrupted {
		a.logger.Info("Scan interrupted")
	}
	return writePeripherals(a.out, format, sess.Registry().Snapshot())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/picoflash/internal/codec"
	"github.com/srg/picoflash/internal/metrics"
	"github.com/srg/picoflash/internal/session"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 2 * time.Second

var (
	watchRemember    bool
	watchMetricsAddr string
	watchDuration    time.Duration
	watchFormat      string
)

var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Connect and print every telemetry change",
	Long: `Connect to the flasher and stream its telemetry.

A line is printed each time the on/off flag, the flash index or the pattern changes.
Identical consecutive frames are not printed. Stops on Ctrl+C or after --duration.

Without an address the remembered device is used. A device is only remembered
when --remember is given and stays remembered after this command disconnects
on exit; run 'picoflash forget' to clear it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchRemember, "remember", false, "Remember this device for later commands")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop after this long (0 runs until Ctrl+C)")
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "", "Output format: table or json (default from config output_format)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	format := watchFormat
	if format == "" {
		format = a.cfg.OutputFormat
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	id, err := a.resolveDeviceID(args)
	if err != nil {
		return err
	}

	addr := watchMetricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(cmd.Context())
	defer stop()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	sess, err := a.connect(ctx, id, session.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(context.Background()) }()

	fmt.Fprintf(a.out, "Connected to %s\n", id)

	if watchRemember {
		if err := a.store.Save(id); err != nil {
			return fmt.Errorf("failed to remember device: %w", err)
		}
		a.logger.WithField("path", a.store.Path()).Info("Remembered device")
	}

	var outMu sync.Mutex
	var writeErr error
	cancelObserver := sess.OnStateChanged(func(st codec.TelemetryState) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := writeState(a.out, format, st); err != nil && writeErr == nil {
			writeErr = err
		}
	})
	defer cancelObserver()

	if err := sess.StartStreaming(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, addr, reg, a.logger)
		})
	}
	g.Go(func() error {
		return logTransitions(gctx, sess, a.logger)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	outMu.Lock()
	defer outMu.Unlock()
	return writeErr
}

// logTransitions reports lifecycle events until ctx ends
func logTransitions(ctx context.Context, sess *session.Session, logger *logrus.Logger) error {
	events := sess.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			entry := logger.WithFields(logrus.Fields{
				"state":     ev.Kind.String(),
				"device":    ev.DeviceID,
				"streaming": ev.Streaming,
			})
			if ev.Err != nil {
				entry.WithError(ev.Err).Warn("Session state changed")
				continue
			}
			entry.Debug("Session state changed")
		}
	}
}

// serveMetrics exposes reg over HTTP until ctx ends
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	}
}

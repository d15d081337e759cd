package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/radsafe/radman-monitor/internal/radhaz"
	"github.com/radsafe/radman-monitor/internal/radman"
	"github.com/radsafe/radman-monitor/internal/serialport"
	"github.com/radsafe/radman-monitor/internal/storage"
)

const (
	storageDir = "data"

	readingsBufferSize = 16
)

// Run drives monitoring until ctx is cancelled: it opens the serial link,
// performs the instrument handshake, streams readings into the store and
// reconnects with backoff whenever the link drops.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	var std *radhaz.Standard
	if config.Monitor.Standard != "" {
		if std, err = radhaz.Lookup(config.Monitor.Standard); err != nil {
			return err
		}
	}

	backoff := radman.DefaultBackoff()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; ; attempt++ {
		err = runSession(ctx, config, store, std, logger)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil {
			return nil
		}

		delay := radman.NextBackoffDelay(backoff, attempt, rng)
		logger.Warn("session lost, reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runSession owns the transport for exactly one connection attempt: the
// port is released on every return path.
func runSession(ctx context.Context, config *Config, store storage.Store, std *radhaz.Standard, logger *slog.Logger) error {
	port, err := serialport.Open(&config.Device)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer port.Close()

	options := []func(*radman.Session){radman.WithLogger(logger)}
	if config.Monitor.HandshakeTimeout > 0 {
		options = append(options, radman.WithHandshakeTimeout(time.Duration(config.Monitor.HandshakeTimeout)))
	}

	sess := radman.NewSession(port, options...)
	if err = sess.Connect(ctx); err != nil {
		return err
	}

	probe := sess.Probe()
	std, freqMHz := resolveConversion(std, probe, config.Monitor.FrequencyMHz, logger)

	var standardID string
	if std != nil {
		standardID = std.ID()
	}

	sessionID, err := store.CreateSession(ctx, sess.Device(), probe, standardID, freqMHz)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	readings := make(chan radman.Measurement, readingsBufferSize)
	done := make(chan struct{})

	go consumeReadings(ctx, readings, done, probe, std, freqMHz, store, sessionID, config.Storage.MaxBatchSize, logger)

	err = sess.Poll(ctx, readings)

	close(readings) // signal the consumer to flush and stop
	<-done
	return err
}

// resolveConversion decides the standard and frequency absolute conversion
// will use. A shaped probe supplies its baked-in standard when none is
// configured; a frequency outside the probe or standard domain disables
// absolute conversion for the session rather than failing every reading.
func resolveConversion(std *radhaz.Standard, probe radman.ProbeInfo, freqMHz *float64, logger *slog.Logger) (*radhaz.Standard, *float64) {
	if std == nil && probe.Shaped {
		if matched, ok := radhaz.MatchProbeStandard(probe.StandardName); ok {
			logger.Info("using probe's baked-in standard", slog.String("standard", matched.ID()))
			std = matched
		} else {
			logger.Warn("shaped probe standard not registered", slog.String("name", probe.StandardName))
		}
	}

	if freqMHz == nil {
		return std, nil
	}
	if std == nil {
		logger.Warn("no standard selected, absolute conversion disabled")
		return nil, nil
	}

	probeCheck := radman.Measurement{}
	if _, err := radhaz.Convert(probeCheck, probe, std, freqMHz); err != nil {
		logger.Error("absolute conversion disabled", slog.String("error", err.Error()))
		return std, nil
	}

	logger.Info("absolute conversion enabled",
		slog.String("standard", std.ID()),
		slog.Float64("frequencyMHz", *freqMHz))
	return std, freqMHz
}

func consumeReadings(ctx context.Context, readings <-chan radman.Measurement, done chan<- struct{},
	probe radman.ProbeInfo, std *radhaz.Standard, freqMHz *float64,
	store storage.Store, sessionID int64, maxBatchSize int, logger *slog.Logger) {
	defer close(done)

	// Flushes must survive cancellation: a decoded reading is never dropped
	// on teardown.
	flushCtx := context.WithoutCancel(ctx)

	batch := make([]radhaz.Reading, 0, maxBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := store.StoreReadings(flushCtx, sessionID, batch); err != nil {
			logger.Error("storing readings", slog.String("error", err.Error()))
		}
		batch = batch[:0]
	}

	for m := range readings {
		r, err := radhaz.Convert(m, probe, std, freqMHz)
		if err != nil {
			// Conversion parameters were validated up front; degrade to a
			// percentages-only reading rather than dropping the sample.
			logger.Error("conversion failed", slog.String("error", err.Error()))
			r, _ = radhaz.Convert(m, probe, std, nil)
		}

		logReading(logger, r)

		batch = append(batch, r)
		if len(batch) >= maxBatchSize {
			flush()
		}
	}

	flush()
}

func logReading(logger *slog.Logger, r radhaz.Reading) {
	attrs := []slog.Attr{
		slog.Float64("e_percent", r.EFieldPercent),
		slog.Float64("h_percent", r.HFieldPercent),
		slog.Bool("e_ok", r.EFieldOK),
		slog.Bool("h_ok", r.HFieldOK),
		slog.Float64("battery", r.BatteryPercent),
	}
	if r.EFieldVm != nil {
		attrs = append(attrs,
			slog.Float64("e_vm", *r.EFieldVm),
			slog.Float64("h_am", *r.HFieldAm))
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "exposure reading", attrs...)
}

func createStorage(config *StorageConfig) (storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		if filepath.IsAbs(config.DataDirectory) {
			dbPath = config.DataDirectory
		} else {
			dbPath = filepath.Join(wd, config.DataDirectory)
		}
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("invalid storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("radman_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.New(dbPath), nil
}

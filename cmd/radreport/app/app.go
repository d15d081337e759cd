package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/radsafe/radman-monitor/internal/storage"
)

func Run(ctx context.Context, config *Config) error {
	store := storage.New(config.DBPath)
	defer store.Close()

	if config.List {
		return listSessions(ctx, store, os.Stdout)
	}
	return reportSession(ctx, store, config, os.Stdout)
}

func listSessions(ctx context.Context, store storage.Store, w io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions recorded")
		return nil
	}

	for _, sess := range sessions {
		stats, err := store.ReadingStats(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("reading stats for session %d: %w", sess.ID, err)
		}

		fmt.Fprintf(w, "session %d: %s, %s / %s, %s readings",
			sess.ID,
			sess.StartTime.UTC().Format(time.RFC3339),
			sess.DeviceProduct,
			sess.ProbeProduct,
			humanize.Comma(stats.Count))

		if sess.StandardID != "" {
			fmt.Fprintf(w, ", standard %s", sess.StandardID)
		}
		if sess.FrequencyMHz != nil {
			fmt.Fprintf(w, " at %s", humanize.SIWithDigits(*sess.FrequencyMHz*1e6, 3, "Hz"))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func reportSession(ctx context.Context, store storage.Store, config *Config, w io.Writer) error {
	sess, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	stats, err := store.ReadingStats(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Fprintf(w, "session %d: %s, device %s (s/n %s), probe %s (s/n %s)\n",
		sess.ID, sess.StartTime.UTC().Format(time.RFC3339),
		sess.DeviceProduct, sess.DeviceSerial, sess.ProbeProduct, sess.ProbeSerial)
	fmt.Fprintf(w, "readings: %s", humanize.Comma(stats.Count))
	if stats.First != nil && stats.Last != nil {
		fmt.Fprintf(w, " from %s to %s",
			stats.First.Format(time.RFC3339), stats.Last.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "peak exposure: E %.2f %%, H %.2f %% of limit\n", stats.MaxEFieldPct, stats.MaxHFieldPct)

	if config.OutputFile == "" {
		return nil
	}

	readings, err := store.Readings(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("loading readings: %w", err)
	}

	f, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err = writeCSV(f, readings); err != nil {
		return fmt.Errorf("writing %s: %w", config.OutputFile, err)
	}

	fmt.Fprintf(w, "exported %s readings to %s\n", humanize.Comma(int64(len(readings))), config.OutputFile)
	return nil
}

var csvHeader = []string{
	"timestamp", "e_percent", "h_percent", "e_field_vm", "h_field_am", "e_ok", "h_ok", "battery_percent",
}

func writeCSV(w io.Writer, readings []storage.Reading) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range readings {
		record := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(r.EFieldPercent, 'f', 2, 64),
			strconv.FormatFloat(r.HFieldPercent, 'f', 2, 64),
			formatOptional(r.EFieldVm),
			formatOptional(r.HFieldAm),
			strconv.FormatBool(r.EFieldOK),
			strconv.FormatBool(r.HFieldOK),
			strconv.FormatFloat(r.BatteryPercent, 'f', 0, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatOptional renders an absent absolute value as an empty cell, never
// as zero.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

package app

import (
	"strings"
	"testing"
	"time"

	"github.com/radsafe/radman-monitor/internal/storage"
)

func TestWriteCSV(t *testing.T) {
	eField, hField := 43.67, 0.3044
	readings := []storage.Reading{
		{
			Timestamp:      time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
			EFieldPercent:  71.12,
			HFieldPercent:  186.72,
			EFieldVm:       &eField,
			HFieldAm:       &hField,
			EFieldOK:       true,
			HFieldOK:       true,
			BatteryPercent: 98,
		},
		{ // percentages-only reading
			Timestamp:      time.Date(2025, 3, 14, 9, 26, 53, 400000000, time.UTC),
			EFieldPercent:  70.03,
			HFieldPercent:  180.11,
			BatteryPercent: 98,
		},
	}

	var sb strings.Builder
	if err := writeCSV(&sb, readings); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 records, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Errorf("Unexpected header: %q", lines[0])
	}
	if lines[1] != "2025-03-14T09:26:53Z,71.12,186.72,43.6700,0.3044,true,true,98" {
		t.Errorf("Unexpected record: %q", lines[1])
	}

	// Missing absolutes are empty cells, never zero.
	if !strings.Contains(lines[2], ",180.11,,,") {
		t.Errorf("Expected empty cells for missing absolutes: %q", lines[2])
	}
}

func TestFormatOptional(t *testing.T) {
	if got := formatOptional(nil); got != "" {
		t.Errorf("Expected empty cell for nil, got %q", got)
	}
	v := 0.163
	if got := formatOptional(&v); got != "0.1630" {
		t.Errorf("Expected %q, got %q", "0.1630", got)
	}
}

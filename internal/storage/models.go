package storage

import (
	"time"
)

// Session is one stored monitoring session.
type Session struct {
	ID        int64
	StartTime time.Time

	DeviceProduct string
	DeviceSerial  string
	ProbeProduct  string
	ProbeSerial   string

	// StandardID is empty when no standard was selected for the session.
	// FrequencyMHz is nil when absolute conversion was unavailable.
	StandardID   string
	FrequencyMHz *float64

	// DeviceInfo and ProbeInfo hold the full identity records as JSON.
	DeviceInfo string
	ProbeInfo  string
}

// Reading is one stored exposure reading.
type Reading struct {
	ID        int64
	SessionID int64
	Timestamp time.Time

	EFieldPercent float64
	HFieldPercent float64

	// EFieldVm/HFieldAm are nil when absolute values were unavailable.
	EFieldVm *float64
	HFieldAm *float64

	EFieldOK       bool
	HFieldOK       bool
	BatteryPercent float64
}

// ReadingStats are aggregate figures over one session's readings.
type ReadingStats struct {
	Count        int64
	MaxEFieldPct float64
	MaxHFieldPct float64
	First        *time.Time
	Last         *time.Time
}

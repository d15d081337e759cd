package radhaz

import (
	"errors"
	"fmt"
	"time"

	"github.com/radsafe/radman-monitor/internal/radman"
)

// ErrOutOfProbeRange is returned when the emitter frequency falls outside
// the probe's declared E- or H-field frequency range; converting there
// would produce a misleading number.
var ErrOutOfProbeRange = errors.New("radhaz: frequency outside probe range")

// Reading is one exposure reading after conversion: the instrument's
// percent-of-limit values plus, when an emitter frequency is known, the
// derived absolute field strengths.
type Reading struct {
	Timestamp time.Time

	EFieldPercent float64
	HFieldPercent float64

	// EFieldVm (V/m) and HFieldAm (A/m) are nil when no emitter frequency
	// was supplied; absolute values are then unavailable, not zero.
	EFieldVm *float64
	HFieldAm *float64

	// StandardID and FrequencyMHz record what the absolute values were
	// derived against. FrequencyMHz is nil when absolutes are unavailable.
	StandardID   string
	FrequencyMHz *float64

	EFieldOK       bool
	HFieldOK       bool
	BatteryPercent float64
}

// Convert turns a measurement's percent-of-limit values into absolute field
// strengths against a standard at the given emitter frequency:
//
//	absolute = percentage/100 × limit
//
// The conversion is only physically meaningful for a single
// dominant-frequency emitter; for multi-tone or broadband sources the
// absolute values will be wrong even though the percentage readings remain
// valid. The percentage fields pass through unchanged either way.
//
// freqMHz nil yields a percentages-only reading and cannot fail. A non-nil
// frequency must lie within both probe ranges (ErrOutOfProbeRange) and
// within the standard's banded domain (ErrUnsupportedFrequency).
func Convert(m radman.Measurement, probe radman.ProbeInfo, std *Standard, freqMHz *float64) (Reading, error) {
	r := Reading{
		Timestamp:      m.Timestamp,
		EFieldPercent:  m.EFieldPercent,
		HFieldPercent:  m.HFieldPercent,
		EFieldOK:       m.EFieldOK,
		HFieldOK:       m.HFieldOK,
		BatteryPercent: m.BatteryPercent,
	}
	if std != nil {
		r.StandardID = std.id
	}

	if freqMHz == nil {
		return r, nil
	}
	if std == nil {
		return Reading{}, fmt.Errorf("%w: no standard selected", ErrUnknownStandard)
	}

	f := *freqMHz
	if f < probe.EFieldMinMHz || f > probe.EFieldMaxMHz {
		return Reading{}, fmt.Errorf("%w: %.3f MHz outside e-field range %.3f-%.0f MHz",
			ErrOutOfProbeRange, f, probe.EFieldMinMHz, probe.EFieldMaxMHz)
	}
	if f < probe.HFieldMinMHz || f > probe.HFieldMaxMHz {
		return Reading{}, fmt.Errorf("%w: %.3f MHz outside h-field range %.3f-%.0f MHz",
			ErrOutOfProbeRange, f, probe.HFieldMinMHz, probe.HFieldMaxMHz)
	}

	limit, err := std.Limits(f)
	if err != nil {
		return Reading{}, err
	}

	eField := m.EFieldPercent / 100 * limit.EFieldVm
	hField := m.HFieldPercent / 100 * limit.HFieldAm

	r.EFieldVm = &eField
	r.HFieldAm = &hField
	r.FrequencyMHz = freqMHz
	return r, nil
}

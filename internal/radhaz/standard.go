// Package radhaz holds the registry of RADHAZ exposure standards and the
// engine converting percent-of-limit readings into absolute field values.
package radhaz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownStandard is returned when a standard identifier is not
	// registered.
	ErrUnknownStandard = errors.New("radhaz: unknown standard")

	// ErrUnsupportedFrequency is returned when a frequency lies outside a
	// standard's defined domain. Limits are never extrapolated.
	ErrUnsupportedFrequency = errors.New("radhaz: frequency outside standard domain")
)

// Limit is a pair of maximum permissible field strengths at one frequency.
type Limit struct {
	EFieldVm float64 // electric field, V/m
	HFieldAm float64 // magnetic field, A/m
}

// band is one contiguous frequency band of a standard with its limit rule.
type band struct {
	minMHz float64
	maxMHz float64
	limit  func(freqMHz float64) Limit
}

// Standard is a named regulatory exposure limit definition over a set of
// contiguous frequency bands.
type Standard struct {
	id   string
	name string

	// vendorTags identify this standard in the naming a shaped probe's
	// calibration reports. A probe standard name must contain all tags.
	vendorTags []string

	// bands are ascending and contiguous.
	bands []band
}

// ID returns the registry identifier of the standard.
func (s *Standard) ID() string { return s.id }

// Name returns the human-readable name of the standard.
func (s *Standard) Name() string { return s.name }

// Limits returns the E- and H-field limits at the given emitter frequency.
//
// Band selection is deterministic: each band covers the half-open interval
// [min, max) MHz, except the last band which is closed at its upper edge.
// Frequencies outside the banded domain fail with ErrUnsupportedFrequency.
func (s *Standard) Limits(freqMHz float64) (Limit, error) {
	for i, b := range s.bands {
		last := i == len(s.bands)-1
		if freqMHz >= b.minMHz && (freqMHz < b.maxMHz || (last && freqMHz == b.maxMHz)) {
			return b.limit(freqMHz), nil
		}
	}
	return Limit{}, fmt.Errorf("%w: %.3f MHz not in [%.3f, %.0f] MHz (%s)",
		ErrUnsupportedFrequency, freqMHz, s.bands[0].minMHz, s.bands[len(s.bands)-1].maxMHz, s.id)
}

// Domain returns the banded frequency domain of the standard in MHz.
func (s *Standard) Domain() (minMHz, maxMHz float64) {
	return s.bands[0].minMHz, s.bands[len(s.bands)-1].maxMHz
}

// registry is process-wide immutable state, fully populated at package
// initialization and read-only afterwards.
var registry = map[string]*Standard{}

func register(s *Standard) {
	registry[s.id] = s
}

func init() {
	register(newFCC96326Occupational())
	register(newFCC96326GeneralPublic())
}

// Lookup returns the registered standard for an identifier.
func Lookup(id string) (*Standard, error) {
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStandard, id)
	}
	return s, nil
}

// Standards returns the registered standard identifiers, sorted.
func Standards() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchProbeStandard finds the registered standard a shaped probe's
// calibration was baked against, matching the probe-reported name (e.g.
// "FCC 96-326 / Occupational") against each standard's vendor tags.
func MatchProbeStandard(probeStandardName string) (*Standard, bool) {
	name := strings.ToLower(probeStandardName)
	for _, id := range Standards() {
		s := registry[id]
		matched := len(s.vendorTags) > 0
		for _, tag := range s.vendorTags {
			if !strings.Contains(name, strings.ToLower(tag)) {
				matched = false
				break
			}
		}
		if matched {
			return s, true
		}
	}
	return nil, false
}

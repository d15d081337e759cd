package radman

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrDecode is returned when a well-framed payload does not match the
// expected structure for its message type. The frame is dropped; no partial
// record is produced.
var ErrDecode = errors.New("radman: invalid payload")

// MessageType identifies one of the closed set of instrument messages.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeDeviceInfo
	TypeProbeInfo
	TypeMeasurement
	TypeAck
)

func (t MessageType) String() string {
	switch t {
	case TypeDeviceInfo:
		return "device-info"
	case TypeProbeInfo:
		return "probe-info"
	case TypeMeasurement:
		return "measurement"
	case TypeAck:
		return "ack"
	}
	return "unknown"
}

// The instrument does not tag frames with an explicit type byte; the field
// count is the discriminator. Vendor-fixed table.
const (
	deviceInfoFieldCount  = 10
	probeInfoFieldCount   = 12
	measurementFieldCount = 6
	ackFieldCount         = 1
)

var typeByFieldCount = map[int]MessageType{
	deviceInfoFieldCount:  TypeDeviceInfo,
	probeInfoFieldCount:   TypeProbeInfo,
	measurementFieldCount: TypeMeasurement,
	ackFieldCount:         TypeAck,
}

// Message is a decoded instrument message: DeviceInfo, ProbeInfo,
// Measurement, Ack or Unknown.
type Message interface {
	MessageType() MessageType
}

// DeviceInfo is the instrument identity response.
type DeviceInfo struct {
	ProductName     string
	ProductionID    string
	SerialNumber    string
	DeviceID        string
	DeviceType      string
	FirmwareVersion string
	CalibrationDate string
	CalibrationDue  string
	NumOptions      string
	OptionsName     string
}

func (DeviceInfo) MessageType() MessageType { return TypeDeviceInfo }

// ProbeInfo is the attached probe identity response. Frequency ranges
// arrive on the wire in Hz and are exposed in MHz.
type ProbeInfo struct {
	ProductName     string
	ProductionID    string
	SerialNumber    string
	CalibrationDate string
	CalibrationDue  string
	FieldType       string

	EFieldMinMHz float64
	EFieldMaxMHz float64
	HFieldMinMHz float64
	HFieldMaxMHz float64

	// Shaped reports whether the probe's frequency response is pre-weighted
	// to one standard's exposure curve. StandardName is the vendor name of
	// that standard and is empty for flat probes.
	Shaped       bool
	StandardName string
}

func (ProbeInfo) MessageType() MessageType { return TypeProbeInfo }

// Measurement is a single periodic exposure reading. Percentages are
// percent-of-limit; values above 100 indicate exposure above the limit the
// firmware was configured with.
type Measurement struct {
	// Timestamp is the UTC capture instant, assigned the moment the frame
	// is fully decoded.
	Timestamp time.Time

	EFieldPercent float64
	HFieldPercent float64

	// EFieldOK and HFieldOK report the instrument's own validity flags for
	// each channel.
	EFieldOK bool
	HFieldOK bool

	BatteryPercent float64
}

func (Measurement) MessageType() MessageType { return TypeMeasurement }

// Ack is the single-field response to a remote mode command.
type Ack struct {
	Status string
}

func (Ack) MessageType() MessageType { return TypeAck }

// OK reports whether the instrument accepted the command.
func (a Ack) OK() bool { return a.Status == ackOK }

// Unknown carries a structurally valid frame whose shape matches no known
// message type. Kept for forward compatibility: callers skip it, they do
// not fail on it.
type Unknown struct {
	Fields []string
}

func (Unknown) MessageType() MessageType { return TypeUnknown }

type decodeFunc func(fields []string, now time.Time) (Message, error)

var decoders = map[MessageType]decodeFunc{
	TypeDeviceInfo:  decodeDeviceInfo,
	TypeProbeInfo:   decodeProbeInfo,
	TypeMeasurement: decodeMeasurement,
	TypeAck:         decodeAck,
}

// ClassifyFrame maps a frame to its message type using the vendor's
// field-count table.
func ClassifyFrame(f Frame) MessageType {
	return typeByFieldCount[len(f.Fields())]
}

// DecodeMessage interprets a frame's payload as a typed message. now is the
// capture instant stamped onto measurements. Frames of unrecognized shape
// decode to Unknown without error; recognized shapes with invalid field
// values fail with ErrDecode.
func DecodeMessage(f Frame, now time.Time) (Message, error) {
	fields := f.Fields()

	dec, ok := decoders[typeByFieldCount[len(fields)]]
	if !ok {
		return Unknown{Fields: fields}, nil
	}

	return dec(fields, now)
}

func decodeDeviceInfo(fields []string, _ time.Time) (Message, error) {
	return DeviceInfo{
		ProductName:     fields[0],
		ProductionID:    fields[1],
		SerialNumber:    fields[2],
		DeviceID:        fields[3],
		DeviceType:      fields[4],
		FirmwareVersion: fields[5],
		CalibrationDate: fields[6],
		CalibrationDue:  fields[7],
		NumOptions:      fields[8],
		OptionsName:     fields[9],
	}, nil
}

func decodeProbeInfo(fields []string, _ time.Time) (Message, error) {
	p := ProbeInfo{
		ProductName:     fields[0],
		ProductionID:    fields[1],
		SerialNumber:    fields[2],
		CalibrationDate: fields[3],
		CalibrationDue:  fields[4],
		FieldType:       fields[5],
		Shaped:          strings.TrimSpace(fields[10]) == "1",
		StandardName:    strings.TrimSpace(fields[11]),
	}

	freqs := []struct {
		name string
		dst  *float64
	}{
		{"e-field lower frequency", &p.EFieldMinMHz},
		{"e-field upper frequency", &p.EFieldMaxMHz},
		{"h-field lower frequency", &p.HFieldMinMHz},
		{"h-field upper frequency", &p.HFieldMaxMHz},
	}

	for i, freq := range freqs {
		hz, err := parseNonNegative(fields[6+i], freq.name)
		if err != nil {
			return nil, err
		}
		*freq.dst = hz / 1e6
	}

	if p.EFieldMinMHz >= p.EFieldMaxMHz {
		return nil, fmt.Errorf("%w: inverted e-field range %.3f-%.3f MHz", ErrDecode, p.EFieldMinMHz, p.EFieldMaxMHz)
	}
	if p.HFieldMinMHz >= p.HFieldMaxMHz {
		return nil, fmt.Errorf("%w: inverted h-field range %.3f-%.3f MHz", ErrDecode, p.HFieldMinMHz, p.HFieldMaxMHz)
	}

	return p, nil
}

func decodeMeasurement(fields []string, now time.Time) (Message, error) {
	// Wire percentages are the percent-of-limit value multiplied by 100:
	// "7112" means 71.12 %.
	ePct, err := parseNonNegative(fields[0], "e-field percentage")
	if err != nil {
		return nil, err
	}
	hPct, err := parseNonNegative(fields[1], "h-field percentage")
	if err != nil {
		return nil, err
	}

	// fields[2] is reserved; its meaning is not documented by the vendor.

	battery, err := parseNonNegative(fields[5], "battery percentage")
	if err != nil {
		return nil, err
	}

	return Measurement{
		Timestamp:      now.UTC(),
		EFieldPercent:  ePct / 100,
		HFieldPercent:  hPct / 100,
		EFieldOK:       strings.TrimSpace(fields[3]) == "OK",
		HFieldOK:       strings.TrimSpace(fields[4]) == "OK",
		BatteryPercent: battery,
	}, nil
}

func decodeAck(fields []string, _ time.Time) (Message, error) {
	return Ack{Status: strings.TrimSpace(fields[0])}, nil
}

func parseNonNegative(field, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrDecode, name, field)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative %s %q", ErrDecode, name, field)
	}
	return v, nil
}

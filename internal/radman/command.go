package radman

// Command is one remote-control opcode understood by the instrument. The
// opcode strings are vendor-proprietary and reverse-engineered from the
// vendor's own tooling (casing included); treat this block as a fixed
// lookup table, never derive new values.
type Command string

const (
	// CmdDeviceInfo requests the instrument identity response.
	CmdDeviceInfo Command = "DEVICE_INFO?"

	// CmdProbeInfo requests the attached probe identity response.
	CmdProbeInfo Command = "Probe_INFO?"

	// CmdRemoteOn and CmdRemoteOff switch remote mode, which gates
	// measurement control. Both are answered with an ack frame.
	CmdRemoteOn  Command = "REMOTE ON"
	CmdRemoteOff Command = "REMOTE OFF"

	// CmdMeasStart and CmdMeasStop control the autonomous measurement
	// push. Neither is acknowledged.
	CmdMeasStart Command = "MEAS_START_CIB"
	CmdMeasStop  Command = "MEAS_STOP_CIB"
)

// ackOK is the payload of a successful remote mode ack frame.
const ackOK = "0"

// EncodeCommand frames a command for transmission, following the same
// terminator rule the decoder expects to parse.
func EncodeCommand(cmd Command) []byte {
	return append([]byte(cmd), frameTerminator)
}

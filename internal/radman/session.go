package radman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// DefaultHandshakeTimeout bounds how long the session waits for each
	// identity response during the handshake.
	DefaultHandshakeTimeout = 2 * time.Second

	// LinkErrorsThreshold is the number of consecutive framing/decode
	// failures tolerated while polling before the link is declared lost.
	LinkErrorsThreshold = 5

	readChunkSize = 256
)

var (
	// ErrHandshakeTimeout is returned when an expected identity response
	// does not arrive within the handshake timeout.
	ErrHandshakeTimeout = errors.New("radman: handshake timed out")

	// ErrLinkLost is returned when the instrument stops producing
	// decodable frames or the transport fails while polling. The caller
	// owns the retry decision.
	ErrLinkLost = errors.New("radman: link lost")

	// ErrRemoteRejected is returned when the instrument refuses to enter
	// remote mode.
	ErrRemoteRejected = errors.New("radman: remote mode rejected")
)

// State is the session controller state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingDeviceInfo
	StateAwaitingProbeInfo
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingDeviceInfo:
		return "awaiting-device-info"
	case StateAwaitingProbeInfo:
		return "awaiting-probe-info"
	case StatePolling:
		return "polling"
	}
	return "disconnected"
}

// Transport is an ordered byte channel to the instrument. Read is expected
// to return within the transport's own configured timeout, with (0, nil)
// when no bytes arrived; that timeout must be shorter than the session's
// handshake timeout. Opening and closing the underlying device is the
// caller's responsibility.
type Transport interface {
	io.Reader
	io.Writer
}

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHandshakeTimeout overrides the per-response handshake timeout.
func WithHandshakeTimeout(d time.Duration) func(*Session) {
	return func(s *Session) {
		s.handshakeTimeout = d
	}
}

// WithLinkErrorsThreshold overrides the consecutive-failure threshold for
// declaring the link lost.
func WithLinkErrorsThreshold(threshold uint8) func(*Session) {
	return func(s *Session) {
		s.linkErrorsThreshold = threshold
	}
}

// WithClock overrides the clock used for measurement timestamps and
// handshake deadlines.
func WithClock(now func() time.Time) func(*Session) {
	return func(s *Session) {
		s.now = now
	}
}

// Session drives the instrument protocol over a transport: an
// identification handshake followed by continuous measurement polling.
//
// The session runs single-threaded: one loop reads available bytes, feeds
// the frame decoder and dispatches decoded messages synchronously, so
// measurements are delivered strictly in arrival order.
type Session struct {
	transport Transport
	decoder   *Decoder
	logger    *slog.Logger

	handshakeTimeout    time.Duration
	linkErrorsThreshold uint8
	now                 func() time.Time

	state  atomic.Int32
	device DeviceInfo
	probe  ProbeInfo
}

// NewSession creates a session over an open transport with a discard logger.
func NewSession(t Transport, options ...func(*Session)) *Session {
	s := Session{
		transport:           t,
		decoder:             NewDecoder(),
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		handshakeTimeout:    DefaultHandshakeTimeout,
		linkErrorsThreshold: LinkErrorsThreshold,
		now:                 time.Now,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// State returns the current session controller state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Device returns the instrument identity. Valid after Connect.
func (s *Session) Device() DeviceInfo { return s.device }

// Probe returns the attached probe identity. Valid after Connect.
func (s *Session) Probe() ProbeInfo { return s.probe }

// Connect performs the identification handshake: it requests device info,
// then probe info, each within the handshake timeout.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	s.setState(StateAwaitingDeviceInfo)
	msg, err := s.request(ctx, CmdDeviceInfo, TypeDeviceInfo)
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	s.device = msg.(DeviceInfo)

	s.setState(StateAwaitingProbeInfo)
	msg, err = s.request(ctx, CmdProbeInfo, TypeProbeInfo)
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	s.probe = msg.(ProbeInfo)

	s.logger.Info("handshake complete",
		slog.String("device", s.device.ProductName),
		slog.String("serial", s.device.SerialNumber),
		slog.String("probe", s.probe.ProductName))

	return nil
}

// Poll switches the instrument into remote measurement mode and streams
// measurements to readings in arrival order until ctx is cancelled or the
// link is lost. Framing and decode errors are reported and the frame
// skipped; the threshold of consecutive failures returns ErrLinkLost.
//
// On return the session has sent best-effort stop commands; closing the
// transport remains the caller's responsibility. Poll does not close the
// readings channel.
func (s *Session) Poll(ctx context.Context, readings chan<- Measurement) error {
	msg, err := s.request(ctx, CmdRemoteOn, TypeAck)
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	if ack := msg.(Ack); !ack.OK() {
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: status %q", ErrRemoteRejected, ack.Status)
	}

	if err := s.send(CmdMeasStart); err != nil {
		s.setState(StateDisconnected)
		return err
	}

	s.setState(StatePolling)
	s.logger.Info("measurement polling started")

	var consecutiveErrs uint8
	buf := make([]byte, readChunkSize)

	for {
		if ctx.Err() != nil {
			return s.shutdown(nil)
		}

		for {
			f, ok, err := s.decoder.Next()
			if err != nil {
				s.logger.Warn("resynchronizing stream", slog.String("error", err.Error()))
				if consecutiveErrs++; consecutiveErrs >= s.linkErrorsThreshold {
					return s.shutdown(fmt.Errorf("%w: %d consecutive failures", ErrLinkLost, consecutiveErrs))
				}
				continue
			}
			if !ok {
				break
			}

			msg, err := DecodeMessage(f, s.now())
			if err != nil {
				s.logger.Warn("dropping frame", slog.String("error", err.Error()), slog.String("payload", string(f.Payload)))
				if consecutiveErrs++; consecutiveErrs >= s.linkErrorsThreshold {
					return s.shutdown(fmt.Errorf("%w: %d consecutive failures", ErrLinkLost, consecutiveErrs))
				}
				continue
			}
			consecutiveErrs = 0

			m, ok := msg.(Measurement)
			if !ok {
				s.logger.Debug("skipping frame", slog.String("type", msg.MessageType().String()))
				continue
			}

			select {
			case readings <- m:
			case <-ctx.Done():
				// The sample is fully decoded; deliver it if the consumer
				// is still there.
				select {
				case readings <- m:
				default:
				}
				return s.shutdown(nil)
			}
		}

		n, err := s.transport.Read(buf)
		if err != nil {
			return s.shutdown(fmt.Errorf("%w: transport read: %v", ErrLinkLost, err))
		}
		if n > 0 {
			s.decoder.Write(buf[:n])
		}
	}
}

// request sends a command and waits for the matching response type within
// the handshake timeout. Frames of other types are skipped.
func (s *Session) request(ctx context.Context, cmd Command, want MessageType) (Message, error) {
	if err := s.send(cmd); err != nil {
		return nil, err
	}

	deadline := s.now().Add(s.handshakeTimeout)
	buf := make([]byte, readChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for {
			f, ok, err := s.decoder.Next()
			if err != nil {
				s.logger.Warn("resynchronizing stream", slog.String("error", err.Error()))
				continue
			}
			if !ok {
				break
			}

			msg, err := DecodeMessage(f, s.now())
			if err != nil {
				s.logger.Warn("dropping frame", slog.String("error", err.Error()))
				continue
			}
			if msg.MessageType() == want {
				return msg, nil
			}
			s.logger.Debug("skipping frame", slog.String("type", msg.MessageType().String()))
		}

		if s.now().After(deadline) {
			return nil, fmt.Errorf("%w: no %s response within %s", ErrHandshakeTimeout, want, s.handshakeTimeout)
		}

		n, err := s.transport.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: transport read: %v", ErrLinkLost, err)
		}
		if n > 0 {
			s.decoder.Write(buf[:n])
		}
	}
}

func (s *Session) send(cmd Command) error {
	if _, err := s.transport.Write(EncodeCommand(cmd)); err != nil {
		return fmt.Errorf("%w: transport write: %v", ErrLinkLost, err)
	}
	return nil
}

// shutdown sends best-effort stop commands and records the terminal state.
func (s *Session) shutdown(err error) error {
	s.setState(StateDisconnected)

	for _, cmd := range []Command{CmdMeasStop, CmdRemoteOff} {
		if _, werr := s.transport.Write(EncodeCommand(cmd)); werr != nil {
			s.logger.Debug("stop command failed", slog.String("command", string(cmd)), slog.String("error", werr.Error()))
			break
		}
	}

	s.logger.Info("measurement polling stopped")
	return err
}

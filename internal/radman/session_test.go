package radman

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testDeviceFrame = "RadMan 2XT,0691,K-0246,12,2XT,1.20,2021-01-15,2023-01-15,1,CIB;"
	testProbeFrame  = "EF 0691,0691,A-0123,2021-01-15,2023-01-15,EH,3000000,60000000000,3000000,1000000000,1,FCC 96-326 / Occupational;"
)

// scriptedTransport answers each written command with a canned byte
// sequence, delivered through subsequent Reads. An idle Read returns
// (0, nil) after a short pause, matching the serial port contract.
type scriptedTransport struct {
	mu        sync.Mutex
	responses map[Command]string
	pending   []byte
	commands  []Command
}

func newScriptedTransport(responses map[Command]string) *scriptedTransport {
	return &scriptedTransport{responses: responses}
}

func (t *scriptedTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd := Command(strings.TrimSuffix(string(p), ";"))
	t.commands = append(t.commands, cmd)
	if resp, ok := t.responses[cmd]; ok {
		t.pending = append(t.pending, resp...)
	}
	return len(p), nil
}

func (t *scriptedTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	t.mu.Unlock()
	return n, nil
}

func (t *scriptedTransport) sent() []Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Command(nil), t.commands...)
}

func TestSession_Connect(t *testing.T) {
	tr := newScriptedTransport(map[Command]string{
		CmdDeviceInfo: testDeviceFrame,
		CmdProbeInfo:  testProbeFrame,
	})
	s := NewSession(tr)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}

	if got := s.Device().SerialNumber; got != "K-0246" {
		t.Errorf("Expected device serial %q, got %q", "K-0246", got)
	}
	if got := s.Probe().ProductName; got != "EF 0691" {
		t.Errorf("Expected probe %q, got %q", "EF 0691", got)
	}
	if got := tr.sent(); len(got) != 2 || got[0] != CmdDeviceInfo || got[1] != CmdProbeInfo {
		t.Errorf("Unexpected command sequence: %v", got)
	}
}

func TestSession_ConnectTimeout(t *testing.T) {
	tr := newScriptedTransport(nil) // instrument never answers
	s := NewSession(tr, WithHandshakeTimeout(50*time.Millisecond))

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("Expected ErrHandshakeTimeout, got %v", err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("Expected disconnected state after timeout, got %s", got)
	}
}

func TestSession_ConnectSkipsUnrelatedFrames(t *testing.T) {
	// A stale measurement frame ahead of the identity response must be
	// skipped, not treated as a handshake failure.
	tr := newScriptedTransport(map[Command]string{
		CmdDeviceInfo: "7112,18672,0,OK,OK,98;" + testDeviceFrame,
		CmdProbeInfo:  testProbeFrame,
	})
	s := NewSession(tr)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Handshake failed: %v", err)
	}
	if got := s.Device().ProductName; got != "RadMan 2XT" {
		t.Errorf("Expected device %q, got %q", "RadMan 2XT", got)
	}
}

func TestSession_Poll(t *testing.T) {
	tr := newScriptedTransport(map[Command]string{
		CmdRemoteOn:  "0;",
		CmdMeasStart: "100,200,0,OK,OK,99;\r\n300,400,0,OK,OK,99;\r\n500,600,0,OK,OK,98;",
	})
	s := NewSession(tr)

	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan Measurement)

	var got []Measurement
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range readings {
			got = append(got, m)
			if len(got) == 3 {
				cancel()
				return
			}
		}
	}()

	if err := s.Poll(ctx, readings); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	<-done

	if len(got) != 3 {
		t.Fatalf("Expected 3 measurements, got %d", len(got))
	}
	// Delivery preserves arrival order.
	want := []float64{1, 3, 5}
	for i, m := range got {
		if m.EFieldPercent != want[i] {
			t.Errorf("Measurement %d: expected e-field %.2f %%, got %.2f", i, want[i], m.EFieldPercent)
		}
	}

	cmds := tr.sent()
	if len(cmds) < 4 {
		t.Fatalf("Expected start and stop commands, got %v", cmds)
	}
	if cmds[len(cmds)-2] != CmdMeasStop || cmds[len(cmds)-1] != CmdRemoteOff {
		t.Errorf("Expected trailing stop commands, got %v", cmds)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("Expected disconnected state after Poll, got %s", got)
	}
}

func TestSession_PollRemoteRejected(t *testing.T) {
	tr := newScriptedTransport(map[Command]string{
		CmdRemoteOn: "2;", // firmware refuses remote mode
	})
	s := NewSession(tr)

	err := s.Poll(context.Background(), make(chan Measurement, 1))
	if !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("Expected ErrRemoteRejected, got %v", err)
	}
}

func TestSession_PollLinkLost(t *testing.T) {
	// Three consecutive undecodable measurement frames trip the threshold.
	tr := newScriptedTransport(map[Command]string{
		CmdRemoteOn:  "0;",
		CmdMeasStart: "-1,0,0,OK,OK,98;-1,0,0,OK,OK,98;-1,0,0,OK,OK,98;",
	})
	s := NewSession(tr, WithLinkErrorsThreshold(3))

	err := s.Poll(context.Background(), make(chan Measurement, 1))
	if !errors.Is(err, ErrLinkLost) {
		t.Fatalf("Expected ErrLinkLost, got %v", err)
	}
	if got := s.State(); got != StateDisconnected {
		t.Errorf("Expected disconnected state, got %s", got)
	}
}

func TestSession_PollErrorCounterResets(t *testing.T) {
	// Bad frames interleaved with good ones never reach the threshold.
	tr := newScriptedTransport(map[Command]string{
		CmdRemoteOn: "0;",
		CmdMeasStart: "-1,0,0,OK,OK,98;100,200,0,OK,OK,99;" +
			"-1,0,0,OK,OK,98;-1,0,0,OK,OK,98;300,400,0,OK,OK,99;",
	})
	s := NewSession(tr, WithLinkErrorsThreshold(3))

	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan Measurement)

	var got int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range readings {
			if got++; got == 2 {
				cancel()
				return
			}
		}
	}()

	if err := s.Poll(ctx, readings); err != nil {
		t.Fatalf("Expected clean shutdown, got %v", err)
	}
	<-done

	if got != 2 {
		t.Errorf("Expected 2 good measurements, got %d", got)
	}
}

func TestSession_StateString(t *testing.T) {
	states := map[State]string{
		StateDisconnected:       "disconnected",
		StateConnecting:         "connecting",
		StateAwaitingDeviceInfo: "awaiting-device-info",
		StateAwaitingProbeInfo:  "awaiting-probe-info",
		StatePolling:            "polling",
	}
	for st, want := range states {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, expected %q", st, got, want)
		}
	}
}

package radman

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	// frameTerminator delimits protocol frames on the wire. The RadMan
	// protocol has no start marker and no checksum; the terminator is the
	// only structural boundary.
	frameTerminator = ';'

	// MaxFrameLen bounds the decoder buffer. The longest legitimate frame
	// (a probe info response) is well under 256 bytes; anything longer is
	// an unsynchronized stream.
	MaxFrameLen = 512
)

// ErrFraming is returned when the byte stream cannot resolve into a valid
// frame within the decoder's buffer bound. The decoder recovers by
// discarding bytes up to the next terminator.
var ErrFraming = errors.New("radman: unsynchronized byte stream")

// Frame is one complete, terminator-delimited protocol message extracted
// from the raw serial byte stream.
type Frame struct {
	Payload []byte
}

// Fields splits the frame payload into its comma-separated fields.
func (f Frame) Fields() []string {
	return strings.Split(string(f.Payload), ",")
}

// Decoder splits an incoming byte stream into protocol frames. Bytes
// belonging to an incomplete frame are buffered until more data arrives, so
// decoding is restartable across arbitrary read-chunk boundaries.
//
// The zero value is not usable; use NewDecoder.
type Decoder struct {
	buf        []byte
	maxLen     int
	discarding bool
}

// WithMaxFrameLen overrides the decoder buffer bound.
func WithMaxFrameLen(n int) func(*Decoder) {
	return func(d *Decoder) {
		d.maxLen = n
	}
}

// NewDecoder creates a frame decoder with the default buffer bound.
func NewDecoder(options ...func(*Decoder)) *Decoder {
	d := Decoder{maxLen: MaxFrameLen}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Write feeds raw bytes from the transport into the decoder. It never fails;
// framing problems surface from Next.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame buffered in the decoder. ok is false
// when no complete frame is available yet. A non-nil error reports an
// over-long unterminated byte run; the offending bytes are discarded up to
// the next terminator and decoding then resumes, so a single corrupt run
// never wedges the stream.
func (d *Decoder) Next() (f Frame, ok bool, err error) {
	for {
		d.trimLeadingSeparators()

		i := bytes.IndexByte(d.buf, frameTerminator)
		if i < 0 {
			if len(d.buf) > d.maxLen {
				n := len(d.buf)
				d.buf = d.buf[:0]
				d.discarding = true
				return Frame{}, false, fmt.Errorf("%w: %d bytes without terminator", ErrFraming, n)
			}
			return Frame{}, false, nil
		}

		payload := d.buf[:i]
		d.buf = d.buf[i+1:]

		if d.discarding {
			// Tail of an oversized frame; drop through its terminator.
			d.discarding = false
			continue
		}
		if len(payload) == 0 {
			continue
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		return Frame{Payload: out}, true, nil
	}
}

// trimLeadingSeparators drops the CR/LF padding the instrument emits
// between frames.
func (d *Decoder) trimLeadingSeparators() {
	i := 0
	for i < len(d.buf) && (d.buf[i] == '\r' || d.buf[i] == '\n') {
		i++
	}
	d.buf = d.buf[i:]
}

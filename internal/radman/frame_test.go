package radman

import (
	"errors"
	"strings"
	"testing"
)

// drain pulls every complete frame currently buffered in the decoder,
// ignoring resync errors.
func drain(d *Decoder) []string {
	var out []string
	for {
		f, ok, err := d.Next()
		if err != nil {
			continue
		}
		if !ok {
			return out
		}
		out = append(out, string(f.Payload))
	}
}

func TestDecoder_SplitInvariance(t *testing.T) {
	stream := "RadMan 2XT,0691,K-0246,12,2XT,1.20,2021-01-15,2023-01-15,0,;\r\n" +
		"7112,18672,0,OK,OK,98;\r\n" +
		"0;" +
		"100,200,0,OK,FAIL,97;\r\n"

	whole := NewDecoder()
	whole.Write([]byte(stream))
	want := drain(whole)

	if len(want) != 4 {
		t.Fatalf("Expected 4 frames from unsplit stream, got %d: %q", len(want), want)
	}

	// Feeding the same bytes in chunks of every size must produce the same
	// frame sequence.
	for chunk := 1; chunk <= len(stream); chunk++ {
		d := NewDecoder()
		var got []string
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			d.Write([]byte(stream[i:end]))
			got = append(got, drain(d)...)
		}

		if len(got) != len(want) {
			t.Fatalf("Chunk size %d: expected %d frames, got %d", chunk, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Chunk size %d, frame %d: expected %q, got %q", chunk, i, want[i], got[i])
			}
		}
	}
}

func TestDecoder_TruncatedThenComplete(t *testing.T) {
	d := NewDecoder()

	d.Write([]byte("7112,186"))
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("Expected no frame from truncated input, got ok=%v err=%v", ok, err)
	}

	d.Write([]byte("72,0,OK,OK,98;"))
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Expected complete frame after remainder, got ok=%v err=%v", ok, err)
	}
	if got := string(f.Payload); got != "7112,18672,0,OK,OK,98" {
		t.Errorf("Expected reassembled payload, got %q", got)
	}
}

func TestDecoder_OverflowResync(t *testing.T) {
	d := NewDecoder(WithMaxFrameLen(16))

	d.Write([]byte(strings.Repeat("x", 20)))
	if _, _, err := d.Next(); !errors.Is(err, ErrFraming) {
		t.Fatalf("Expected ErrFraming on overflow, got %v", err)
	}

	// The tail of the oversized run must be dropped through its terminator;
	// the frame after it decodes normally.
	d.Write([]byte("tail;7112,18672,0,OK,OK,98;"))
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Expected frame after resync, got ok=%v err=%v", ok, err)
	}
	if got := string(f.Payload); got != "7112,18672,0,OK,OK,98" {
		t.Errorf("Expected first frame after resync to skip the stale tail, got %q", got)
	}
}

func TestDecoder_SkipsEmptyFrames(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte(";;\r\n;0;"))

	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Expected one frame, got ok=%v err=%v", ok, err)
	}
	if got := string(f.Payload); got != "0" {
		t.Errorf("Expected %q, got %q", "0", got)
	}
	if _, ok, _ := d.Next(); ok {
		t.Error("Expected no further frames")
	}
}

func TestDecoder_PayloadDetachedFromBuffer(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("0;"))
	f, _, _ := d.Next()

	// Later writes must not alias into an already returned payload.
	d.Write([]byte("7112,18672,0,OK,OK,98;"))
	drain(d)

	if got := string(f.Payload); got != "0" {
		t.Errorf("Returned payload mutated by later writes: %q", got)
	}
}

func TestFrame_Fields(t *testing.T) {
	f := Frame{Payload: []byte("7112,18672,0,OK,OK,98")}
	fields := f.Fields()
	if len(fields) != 6 {
		t.Fatalf("Expected 6 fields, got %d", len(fields))
	}
	if fields[0] != "7112" || fields[5] != "98" {
		t.Errorf("Unexpected fields: %v", fields)
	}
}

// internal/link/frames_test.go
package link

import (
	"bytes"
	"strings"
	"testing"
)

type framerCapture struct {
	payloads [][]byte
	noise    int
}

func newCaptureFramer() (*lineFramer, *framerCapture) {
	capture := &framerCapture{}
	framer := newLineFramer(
		func(raw []byte) {
			buf := make([]byte, len(raw))
			copy(buf, raw)
			capture.payloads = append(capture.payloads, buf)
		},
		func() {
			capture.noise++
		},
	)
	return framer, capture
}

func TestLineFramerDecodesLines(t *testing.T) {
	framer, capture := newCaptureFramer()

	framer.Feed([]byte("ABE5\nABB0\n"))

	if len(capture.payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(capture.payloads))
	}
	if !bytes.Equal(capture.payloads[0], []byte{0xAB, 0xE5}) {
		t.Errorf("unexpected first payload: %X", capture.payloads[0])
	}
	if !bytes.Equal(capture.payloads[1], []byte{0xAB, 0xB0}) {
		t.Errorf("unexpected second payload: %X", capture.payloads[1])
	}
	if capture.noise != 0 {
		t.Errorf("expected no noise, got %d", capture.noise)
	}
}

func TestLineFramerReassemblesChunks(t *testing.T) {
	framer, capture := newCaptureFramer()

	for _, chunk := range []string{"AB", "E5", "00", "11", "\nAB", "B0\n"} {
		framer.Feed([]byte(chunk))
	}

	if len(capture.payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(capture.payloads))
	}
	if !bytes.Equal(capture.payloads[0], []byte{0xAB, 0xE5, 0x00, 0x11}) {
		t.Errorf("unexpected first payload: %X", capture.payloads[0])
	}
	if !bytes.Equal(capture.payloads[1], []byte{0xAB, 0xB0}) {
		t.Errorf("unexpected second payload: %X", capture.payloads[1])
	}
}

func TestLineFramerTrimsCarriageReturns(t *testing.T) {
	framer, capture := newCaptureFramer()

	framer.Feed([]byte("ABE5\r\n"))

	if len(capture.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(capture.payloads))
	}
	if !bytes.Equal(capture.payloads[0], []byte{0xAB, 0xE5}) {
		t.Errorf("unexpected payload: %X", capture.payloads[0])
	}
}

func TestLineFramerCountsNoise(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"non-hex characters", "receiver boot banner\n"},
		{"odd length", "ABE\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			framer, capture := newCaptureFramer()

			framer.Feed([]byte(tc.line))

			if len(capture.payloads) != 0 {
				t.Fatalf("expected no payloads, got %d", len(capture.payloads))
			}
			if capture.noise != 1 {
				t.Errorf("expected 1 noise line, got %d", capture.noise)
			}
		})
	}
}

func TestLineFramerSkipsBlankLines(t *testing.T) {
	framer, capture := newCaptureFramer()

	framer.Feed([]byte("\n\r\nABE5\n\n"))

	if len(capture.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(capture.payloads))
	}
	if capture.noise != 0 {
		t.Errorf("expected no noise, got %d", capture.noise)
	}
}

func TestLineFramerResyncsOnRunawayInput(t *testing.T) {
	framer, capture := newCaptureFramer()

	framer.Feed([]byte(strings.Repeat("A", maxLineChars+1)))

	if capture.noise != 1 {
		t.Fatalf("expected runaway buffer to count as noise, got %d", capture.noise)
	}

	framer.Feed([]byte("ABE5\n"))

	if len(capture.payloads) != 1 {
		t.Fatalf("expected recovery after resync, got %d payloads", len(capture.payloads))
	}
}

// internal/link/frames.go
package link

import (
	"bytes"
	"encoding/hex"
)

// maxLineChars bounds how much unterminated input a framer buffers before
// declaring the stream noise and resyncing.
const maxLineChars = 4096

// lineFramer accumulates raw link bytes and emits one decoded payload per
// newline-terminated hex line. Lines that fail hex decoding are counted as
// link noise instead of being delivered.
type lineFramer struct {
	buf     []byte
	deliver func(raw []byte)
	noise   func()
}

func newLineFramer(deliver func(raw []byte), noise func()) *lineFramer {
	return &lineFramer{
		deliver: deliver,
		noise:   noise,
	}
}

// Feed appends a chunk of link bytes and processes every complete line in it.
func (lf *lineFramer) Feed(chunk []byte) {
	lf.buf = append(lf.buf, chunk...)

	for {
		idx := bytes.IndexByte(lf.buf, '\n')
		if idx < 0 {
			break
		}
		line := lf.buf[:idx]
		lf.buf = lf.buf[idx+1:]
		lf.emit(line)
	}

	if len(lf.buf) > maxLineChars {
		lf.buf = lf.buf[:0]
		lf.noise()
	}
}

// emit decodes a single line into raw payload bytes and hands it off.
func (lf *lineFramer) emit(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	raw := make([]byte, hex.DecodedLen(len(line)))
	if _, err := hex.Decode(raw, line); err != nil {
		lf.noise()
		return
	}

	lf.deliver(raw)
}

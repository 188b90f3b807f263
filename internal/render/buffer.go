package render

import (
	"errors"
	"io"
)

var errNegativeOffset = errors.New("render: negative seek offset")

// Buffer is an in-memory io.WriteSeeker. The WAV encoder seeks back to patch
// the header sizes once the data chunk is written, so a plain bytes.Buffer
// will not do.
type Buffer struct {
	data []byte
	pos  int
}

// Write writes p at the current position, growing the buffer as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		if end > cap(b.data) {
			grown := make([]byte, end, max(end, 2*cap(b.data)))
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, errors.New("render: invalid whence")
	}

	next := base + offset
	if next < 0 {
		return 0, errNegativeOffset
	}
	b.pos = int(next)
	return next, nil
}

// Bytes returns the written content.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.data) }

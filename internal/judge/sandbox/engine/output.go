package engine

import (
	"bytes"
	"strings"
)

// cappedBuffer keeps the first limit bytes written and drops the rest while
// still reporting full writes, so a chatty program never blocks on its pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func newCappedBuffer(limit int64) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *cappedBuffer) Truncated() bool {
	return b.truncated
}

// decode turns raw program output into valid UTF-8, replacing bad sequences.
func decode(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

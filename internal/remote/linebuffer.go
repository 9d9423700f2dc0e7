package remote

import "bytes"

// lineBuffer accumulates bytes and splits them into '\n'-terminated lines.
// A line longer than max is discarded up to and including its terminator.
type lineBuffer struct {
	buf        []byte
	max        int
	discarding bool
}

func newLineBuffer(max int) *lineBuffer {
	return &lineBuffer{max: max}
}

// feed appends data and calls emit for every completed line, without the
// terminator. overflow is called once for each discarded line.
func (b *lineBuffer) feed(data []byte, emit func(line string), overflow func()) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.append(data, overflow)
			return
		}

		b.append(data[:i], overflow)
		if !b.discarding {
			emit(string(b.buf))
		}
		b.buf = b.buf[:0]
		b.discarding = false
		data = data[i+1:]
	}
}

func (b *lineBuffer) append(p []byte, overflow func()) {
	if b.discarding {
		return
	}
	if b.max > 0 && len(b.buf)+len(p) > b.max {
		b.buf = b.buf[:0]
		b.discarding = true
		if overflow != nil {
			overflow()
		}
		return
	}
	b.buf = append(b.buf, p...)
}

// reset drops any partial line.
func (b *lineBuffer) reset() {
	b.buf = b.buf[:0]
	b.discarding = false
}

// pending returns the number of buffered bytes of the current partial line.
func (b *lineBuffer) pending() int {
	return len(b.buf)
}

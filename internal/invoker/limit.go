package invoker

import (
	"bytes"
	"errors"
	"sync"
)

var errOverflow = errors.New("output limit exceeded")

// limiter enforces one byte budget across several output streams.
type limiter struct {
	mu         sync.Mutex
	max        int64
	total      int64
	exceeded   bool
	onOverflow func()
}

func newLimiter(maxBytes int64, onOverflow func()) *limiter {
	return &limiter{max: maxBytes, onOverflow: onOverflow}
}

func (l *limiter) stream() *limitedBuffer {
	return &limitedBuffer{lim: l}
}

func (l *limiter) overflowed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exceeded
}

// limitedBuffer keeps bytes up to the shared budget and silently drops the
// rest. It never returns a write error: the child is killed instead, so it
// does not linger on a broken pipe.
type limitedBuffer struct {
	lim *limiter
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	l := b.lim
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.max - l.total
	if int64(len(p)) <= remaining {
		b.buf.Write(p)
		l.total += int64(len(p))
		return len(p), nil
	}

	if remaining > 0 {
		b.buf.Write(p[:remaining])
		l.total = l.max
	}
	if !l.exceeded {
		l.exceeded = true
		l.onOverflow()
	}
	return len(p), nil
}

// String is only safe once the process has been waited for.
func (b *limitedBuffer) String() string {
	return b.buf.String()
}

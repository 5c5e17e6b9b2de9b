package client

import "time"

// Cursor debounce defaults. Cursor moves arrive per keystroke; sending every
// one would flood the room with CursorUpdate fan-out.
const (
	DefaultCursorThreshold = 5
	DefaultCursorInterval  = 200 * time.Millisecond
)

// CursorDebouncer rate-limits outgoing cursor moves: a position is sent when
// it differs from the last sent position by more than the threshold, or when
// the minimum interval has elapsed. The first position always sends. Not safe
// for concurrent use; callers invoke it from one goroutine.
type CursorDebouncer struct {
	threshold   int
	minInterval time.Duration
	now         func() time.Time

	sentAny  bool
	lastPos  int
	lastSent time.Time
}

func NewCursorDebouncer(threshold int, minInterval time.Duration) *CursorDebouncer {
	return &CursorDebouncer{
		threshold:   threshold,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// ShouldSend reports whether this cursor position should go out on the wire,
// and records it as sent if so.
func (d *CursorDebouncer) ShouldSend(position int) bool {
	t := d.now()
	if d.sentAny {
		delta := position - d.lastPos
		if delta < 0 {
			delta = -delta
		}
		if delta <= d.threshold && t.Sub(d.lastSent) < d.minInterval {
			return false
		}
	}
	d.sentAny = true
	d.lastPos = position
	d.lastSent = t
	return true
}

// Reset forgets the last sent position, so the next move always sends.
func (d *CursorDebouncer) Reset() {
	d.sentAny = false
}

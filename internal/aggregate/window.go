package aggregate

import "time"

// ThrowWindow keeps exception timestamps oldest-first. It is trimmed lazily
// by the snapshot pass rather than on every push.
type ThrowWindow struct {
	times []time.Time
	head  int
}

// Push appends t. Timestamps are expected in non-decreasing order.
func (w *ThrowWindow) Push(t time.Time) {
	w.times = append(w.times, t)
}

// Trim drops every timestamp older than cutoff and returns the retained count.
// Trimming is idempotent.
func (w *ThrowWindow) Trim(cutoff time.Time) int {
	for w.head < len(w.times) && w.times[w.head].Before(cutoff) {
		w.head++
	}
	// Compact once the dead prefix dominates the backing array.
	if w.head > 0 && w.head >= len(w.times)/2 {
		n := copy(w.times, w.times[w.head:])
		w.times = w.times[:n]
		w.head = 0
	}
	return w.Len()
}

// Len returns the number of retained timestamps.
func (w *ThrowWindow) Len() int { return len(w.times) - w.head }

package impact

// sampleRing is a fixed-capacity ring buffer of accelerometer samples,
// time-ordered by insertion. Eviction is implicit: writing past capacity
// overwrites the oldest element.
type sampleRing struct {
	data []AccelSample
	pos  int
	full bool
	cap  int
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{
		data: make([]AccelSample, capacity),
		cap:  capacity,
	}
}

func (r *sampleRing) Push(s AccelSample) {
	r.data[r.pos] = s
	r.pos++
	if r.pos >= r.cap {
		r.pos = 0
		r.full = true
	}
}

func (r *sampleRing) Len() int {
	if r.full {
		return r.cap
	}
	return r.pos
}

// Snapshot returns the buffer contents in insertion order.
func (r *sampleRing) Snapshot() []AccelSample {
	n := r.Len()
	out := make([]AccelSample, n)
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[r.cap-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

func (r *sampleRing) Reset() {
	r.pos = 0
	r.full = false
}

// Package stage implements the non-circular 48kHz sample staging buffer
// that sits between the resampler and the Opus codec's frame-pull
// interface.
package stage

// MaxLookahead is the largest decision delay the buffer is sized to
// accommodate (2 s at 48kHz).
const MaxLookahead = 96000

// Extra is headroom beyond MaxLookahead kept so a shift is never forced
// mid-append (0.5 s at 48kHz).
const Extra = 24000

// Capacity is the fixed per-channel sample-frame capacity of a Buffer.
const Capacity = MaxLookahead + Extra

// Buffer is a linear (non-circular) array of interleaved 48kHz float
// sample-frames. It is never reallocated: all storage is sized to
// Capacity at construction.
//
// The invariant 0 <= start <= end <= Capacity holds before and after
// every public call. Append may leave end exactly at Capacity; the next
// Consume of at least one frame then shifts the unconsumed region back
// to the front, bringing end below Capacity.
type Buffer struct {
	channels int
	data     []float32
	start    int
	end      int
}

// New allocates a staging buffer for the given channel count.
func New(channels int) *Buffer {
	return &Buffer{
		channels: channels,
		data:     make([]float32, Capacity*channels),
	}
}

// Len returns the number of sample-frames currently available to consume.
func (b *Buffer) Len() int { return b.end - b.start }

// Free returns the number of sample-frames that can be appended before
// the buffer reaches capacity.
func (b *Buffer) Free() int { return Capacity - b.end }

// Append copies frames (interleaved, channels-wide) into the buffer at
// end, advancing end. It panics if frames does not fit — callers are
// expected to check Free first, mirroring the teacher's convention of
// treating buffer overrun as a programming error rather than a runtime
// condition.
func (b *Buffer) Append(frames []float32) {
	n := len(frames) / b.channels
	if n > b.Free() {
		panic("stage: append exceeds buffer capacity")
	}
	copy(b.data[b.end*b.channels:], frames)
	b.end += n
}

// View returns the interleaved samples currently available, from start
// to end. The slice aliases the buffer's backing array and is invalidated
// by the next Append, Consume, or Shift.
func (b *Buffer) View() []float32 {
	return b.data[b.start*b.channels : b.end*b.channels]
}

// Consume advances start by k sample-frames, then shifts the buffer back
// to index 0 if it has reached capacity. k must not exceed Len().
func (b *Buffer) Consume(k int) {
	if k > b.Len() {
		panic("stage: consume exceeds available frames")
	}
	b.start += k
	if b.end == Capacity {
		b.Shift()
	}
}

// Shift moves the unconsumed region [start, end) down to index 0 and
// resets start to 0. Safe to call even when no shift is strictly needed.
func (b *Buffer) Shift() {
	if b.start == 0 {
		return
	}
	n := b.Len()
	copy(b.data, b.data[b.start*b.channels:b.end*b.channels])
	b.start = 0
	b.end = n
}

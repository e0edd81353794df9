// Package stream implements spec §3's "Stream" record and §4.6's ordered
// Stream List: the per-logical-bitstream bookkeeping (serial number,
// packet counter, granule arithmetic, comment ownership, header-frozen,
// initialized and close-at-end flags) and the singly-linked list that
// chains streams within one physical Ogg file.
package stream

import (
	"errors"

	"github.com/xiph/libopusenc/comment"
	"github.com/xiph/libopusenc/sink"
)

// ErrHeaderFrozen is returned by SetSerial once the stream's header has
// been frozen (by the first sample written or an explicit header flush).
var ErrHeaderFrozen = errors.New("stream: header already frozen")

// Stream is one logical Ogg bitstream within a (possibly chained)
// physical file.
//
// A Stream is NOT safe for concurrent use; it is always owned by exactly
// one Encoder, per spec §3's ownership note.
type Stream struct {
	next *Stream

	serial       uint32
	serialSet    bool
	packetCount  uint64
	endGranule   int64 // latest write, input-rate units
	writeGranule int64 // running sample counter, input-rate units
	granuleOffset int64
	headerPreSkip uint16

	comment *comment.Builder

	headerFrozen bool
	initialized  bool
	closeAtEnd   bool

	sink sink.Sink
}

// New returns a fresh, uninitialized Stream with a default comment
// builder and close-at-end set (the common case: one sink per stream,
// closed on that stream's EOS).
func New(s sink.Sink) *Stream {
	return &Stream{
		comment:    comment.New(),
		closeAtEnd: true,
		sink:       s,
	}
}

// Serial returns the stream's serial number and whether one has been
// explicitly assigned yet (false means the caller/encoder must still
// draw a random one before the stream is initialized).
func (s *Stream) Serial() (uint32, bool) { return s.serial, s.serialSet }

// SetSerial overrides the serial number. It fails with ErrHeaderFrozen
// once FreezeHeader has been called.
func (s *Stream) SetSerial(serial uint32) error {
	if s.headerFrozen {
		return ErrHeaderFrozen
	}
	s.serial = serial
	s.serialSet = true
	return nil
}

// AssignRandomSerial sets the serial number from randSource if one has
// not already been explicitly assigned.
func (s *Stream) AssignRandomSerial(randSource func() uint32) {
	if s.serialSet {
		return
	}
	s.serial = randSource()
	s.serialSet = true
}

// Comment returns the stream's comment builder. Mutating it after the
// stream has been initialized has no effect on the emitted bitstream;
// callers should check HeaderFrozen first (the Encoder does).
func (s *Stream) Comment() *comment.Builder { return s.comment }

// HeaderFrozen reports whether sample data or an explicit header flush
// has already locked metadata mutation for this stream.
func (s *Stream) HeaderFrozen() bool { return s.headerFrozen }

// FreezeHeader latches the header-frozen flag. Idempotent.
func (s *Stream) FreezeHeader() { s.headerFrozen = true }

// Initialized reports whether this stream's ID header and comment
// packet have already been committed to the packer.
func (s *Stream) Initialized() bool { return s.initialized }

// MarkInitialized latches the initialized flag.
func (s *Stream) MarkInitialized() { s.initialized = true }

// CloseAtEnd reports whether the sink's Close should be invoked when
// this stream reaches EOS.
func (s *Stream) CloseAtEnd() bool { return s.closeAtEnd }

// SetCloseAtEnd overrides the close-at-end flag.
func (s *Stream) SetCloseAtEnd(v bool) { s.closeAtEnd = v }

// Sink returns the stream's sink, or nil for a stream of a pull-mode
// encoder, which has no sink at all.
func (s *Stream) Sink() sink.Sink { return s.sink }

// GranuleOffset returns the value subtracted from a computed granule
// position before it is handed to the packer, so each stream's own
// timeline can resume at (or near) zero after a chain.
func (s *Stream) GranuleOffset() int64 { return s.granuleOffset }

// SetGranuleOffset sets the granule offset, computed by the encoder core
// at chain-crossover time.
func (s *Stream) SetGranuleOffset(v int64) { s.granuleOffset = v }

// HeaderPreSkip returns the pre-skip value this stream's own OpusHead
// packet should carry: the encoder's global pre-skip for the very first
// stream in a file, or a chain-crossover-computed value for any stream
// chained after it.
func (s *Stream) HeaderPreSkip() uint16 { return s.headerPreSkip }

// SetHeaderPreSkip sets the pre-skip value for this stream's OpusHead,
// computed by the encoder core at chain-crossover time.
func (s *Stream) SetHeaderPreSkip(v uint16) { s.headerPreSkip = v }

// EndGranule returns the latest write position, in input-rate sample
// units.
func (s *Stream) EndGranule() int64 { return s.endGranule }

// WriteGranule returns the running write-granule counter, in input-rate
// sample units.
func (s *Stream) WriteGranule() int64 { return s.writeGranule }

// AdvanceWrite advances both the write-granule counter and the
// end-granule watermark by frames (input-rate units).
func (s *Stream) AdvanceWrite(frames int64) {
	s.writeGranule += frames
	s.endGranule = s.writeGranule
}

// PacketCount returns the number of packets committed to this stream so
// far.
func (s *Stream) PacketCount() uint64 { return s.packetCount }

// IncrementPacketCount bumps the packet counter; called once per packet
// committed to the packer for this stream.
func (s *Stream) IncrementPacketCount() { s.packetCount++ }

// Next returns the next stream in the chain, or nil if this is the tail.
func (s *Stream) Next() *Stream { return s.next }

// List is the ordered Stream List of spec §4.6: a singly-linked
// collection with Head (currently emitting packets) and Tail (currently
// receiving writes/metadata). Head and Tail coincide except between a
// chain request and the EOS of the stream that was Head at that time.
type List struct {
	head *Stream
	tail *Stream
}

// NewList returns an empty Stream List.
func NewList() *List { return &List{} }

// Head returns the stream currently receiving encoded packets, or nil if
// the list is empty.
func (l *List) Head() *Stream { return l.head }

// Tail returns the stream currently receiving writes and metadata
// mutation, or nil if the list is empty.
func (l *List) Tail() *Stream { return l.tail }

// Empty reports whether the list holds no streams.
func (l *List) Empty() bool { return l.head == nil }

// InsertTail appends s as the new tail (a chain request): the previous
// tail keeps receiving packets until its EOS, while s becomes the target
// of subsequent writes and metadata mutation.
func (l *List) InsertTail(s *Stream) {
	if l.tail == nil {
		l.head = s
		l.tail = s
		return
	}
	l.tail.next = s
	l.tail = s
}

// RemoveHead drops the current head (its EOS has been committed and
// drained) and advances Head to its successor, if any. It is a no-op on
// an empty list.
func (l *List) RemoveHead() {
	if l.head == nil {
		return
	}
	l.head = l.head.next
	if l.head == nil {
		l.tail = nil
	}
}

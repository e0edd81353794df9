// Package opusenc is the Encoder Core of spec §4.5: it orchestrates
// write -> resample -> stage -> encode -> mux, owns chaining and
// keyframe re-emission across logical-stream boundaries, and exposes
// the public API callers drive (NewFile/NewCallbacks/NewPull,
// WriteFloat/WriteInt16, Drain, Destroy, the chaining constructors, and
// the Set*/Ctl configuration surface).
//
// An Encoder is NOT safe for concurrent use; distinct Encoder instances
// are fully independent (spec §5).
package opusenc

import (
	"errors"
	"fmt"

	"github.com/pion/randutil"
	"github.com/thesyncim/gopus/multistream"

	"github.com/xiph/libopusenc/comment"
	"github.com/xiph/libopusenc/lpcext"
	"github.com/xiph/libopusenc/oheader"
	"github.com/xiph/libopusenc/packer"
	"github.com/xiph/libopusenc/resample"
	"github.com/xiph/libopusenc/sink"
	"github.com/xiph/libopusenc/stage"
	"github.com/xiph/libopusenc/stream"
)

// Encoder owns the Opus multistream codec, the resampler, the staging
// buffer, the chained Stream List, and the Ogg page packer: spec §3's
// "Encoder" record.
type Encoder struct {
	channels  int
	inputRate int

	codec     *multistream.Encoder
	resampler *resample.Adapter
	stage     *stage.Buffer
	streams   *stream.List
	packer    *packer.Packer

	msStreams, msCoupled int
	msMapping            []byte

	currentGranule       int64
	globalPreSkip        int64
	muxingDelay          int64
	decisionDelay        int64
	frameSize            int
	chainingKeyframe     []byte
	anyStreamInitialized bool

	commentPadding int
	serialSource   func() uint32
	packetCallback func(data []byte, eos bool)

	pullMode bool

	serialSinks      map[uint32]sink.Sink
	serialCloseAtEnd map[uint32]bool

	unrecoverable error
}

// newCore builds the codec, resampler, staging buffer and stream list
// shared by every constructor, but wires no sink and starts no stream:
// that's the one piece that differs between NewFile/NewCallbacks/
// NewPull. Per spec §9's open question on constructor ordering, the
// full value is built and only handed back once every step has
// succeeded; nothing is returned partially wired.
func newCore(sampleRate, channels int, application Application) (*Encoder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive", ErrBadArg)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels must be positive", ErrBadArg)
	}

	msStreams, msCoupled, mapping, err := multistream.DefaultMapping(channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArg, err)
	}

	codec, err := multistream.NewEncoderDefault(resample.TargetRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opusenc: create codec: %w", err)
	}
	switch application {
	case ApplicationVoIP:
		codec.SetVoIPApplication(true)
	case ApplicationRestrictedLowDelay:
		codec.SetLowDelay(true)
	}

	adapter, err := resample.New(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opusenc: create resampler: %w", err)
	}

	return &Encoder{
		channels:         channels,
		inputRate:        sampleRate,
		codec:            codec,
		resampler:        adapter,
		stage:            stage.New(channels),
		streams:          stream.NewList(),
		msStreams:        msStreams,
		msCoupled:        msCoupled,
		msMapping:        mapping,
		globalPreSkip:    int64(codec.Lookahead()),
		muxingDelay:      DefaultMuxingDelay,
		decisionDelay:    DefaultDecisionDelay,
		frameSize:        DefaultFrameDuration.Samples48k(),
		commentPadding:   comment.DefaultPadding,
		serialSource:     func() uint32 { return randutil.NewMathRandomGenerator().Uint32() },
		serialSinks:      make(map[uint32]sink.Sink),
		serialCloseAtEnd: make(map[uint32]bool),
	}, nil
}

// NewFile creates an encoder whose first logical stream writes to a new
// file at path (spec §6's "thin blocking file-I/O adapter").
func NewFile(path string, sampleRate, channels int, application Application) (*Encoder, error) {
	e, err := newCore(sampleRate, channels, application)
	if err != nil {
		return nil, err
	}
	s, err := sink.NewFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	e.streams.InsertTail(stream.New(s))
	return e, nil
}

// NewCallbacks creates an encoder whose first logical stream writes
// through the caller-supplied sink (spec §6's opaque sink contract).
func NewCallbacks(s sink.Sink, sampleRate, channels int, application Application) (*Encoder, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrBadArg)
	}
	e, err := newCore(sampleRate, channels, application)
	if err != nil {
		return nil, err
	}
	e.streams.InsertTail(stream.New(s))
	return e, nil
}

// NewPull creates an encoder with no sink: pages accumulate in the
// packer and are drained one at a time through GetPage.
func NewPull(sampleRate, channels int, application Application) (*Encoder, error) {
	e, err := newCore(sampleRate, channels, application)
	if err != nil {
		return nil, err
	}
	e.pullMode = true
	e.streams.InsertTail(stream.New(nil))
	return e, nil
}

// latch records the first resource failure as the encoder's sticky
// UNRECOVERABLE state (spec §7): once set, the write, drain, chaining,
// header-flush and page-pull operations short-circuit with it; the
// configuration methods in config_ctl.go do not.
func (e *Encoder) latch(cause error) {
	if e.unrecoverable == nil {
		e.unrecoverable = fmt.Errorf("%w: %v", errUnrecoverable, cause)
	}
}

// WriteFloat writes frames of interleaved float32 PCM at the encoder's
// configured input rate.
func (e *Encoder) WriteFloat(pcm []float32, frames int) error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	if frames < 0 {
		return fmt.Errorf("%w: negative frame count", ErrBadArg)
	}
	if frames == 0 {
		return nil
	}
	if len(pcm) < frames*e.channels {
		return fmt.Errorf("%w: pcm shorter than frames*channels", ErrBadArg)
	}

	if err := e.prepareWrite(frames); err != nil {
		return err
	}

	resampled, err := e.resampler.Process(pcm[:frames*e.channels])
	if err != nil {
		e.latch(fmt.Errorf("resample: %w", err))
		return e.unrecoverable
	}
	return e.appendAndEncode(resampled)
}

// WriteInt16 writes frames of interleaved 16-bit signed PCM, normalized
// to float32 by the spec's fixed 1/32768 scale factor before entering
// the same pipeline as WriteFloat.
func (e *Encoder) WriteInt16(pcm []int16, frames int) error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	if frames < 0 {
		return fmt.Errorf("%w: negative frame count", ErrBadArg)
	}
	if frames == 0 {
		return nil
	}
	if len(pcm) < frames*e.channels {
		return fmt.Errorf("%w: pcm shorter than frames*channels", ErrBadArg)
	}
	return e.WriteFloat(resample.NormalizeInt16(pcm[:frames*e.channels]), frames)
}

// prepareWrite freezes the tail stream's header, lazily initializes it
// if this is its first write, and advances its write-granule watermark.
//
// A chained tail (tail != head) must NOT be initialized here: its
// OpusHead/OpusTags would then be committed to the packer before its
// predecessor has produced any audio or its EOS, breaking the serial
// number and page-ordering guarantees of spec §5. Such a tail's header
// emission is deferred to closeHeadStream's crossover, once the
// predecessor stream has actually closed.
func (e *Encoder) prepareWrite(frames int) error {
	tail := e.streams.Tail()
	if tail == nil {
		return fmt.Errorf("%w: no active stream", ErrBadArg)
	}
	tail.FreezeHeader()
	if !tail.Initialized() && tail == e.streams.Head() {
		if err := e.initStream(tail); err != nil {
			return err
		}
	}
	tail.AdvanceWrite(int64(frames))
	return nil
}

// appendAndEncode feeds already-48kHz interleaved PCM into the staging
// buffer, running the encode loop between chunks whenever the buffer
// would otherwise overflow (spec §4.5: "iteratively feed ... into the
// staging buffer and invoke the encode loop").
func (e *Encoder) appendAndEncode(pcm48k []float32) error {
	if len(pcm48k) == 0 {
		return e.encodeLoop()
	}
	frameLen := len(pcm48k) / e.channels
	offset := 0
	for offset < frameLen {
		free := e.stage.Free()
		if free == 0 {
			if err := e.encodeLoop(); err != nil {
				return err
			}
			free = e.stage.Free()
			if free == 0 {
				e.latch(errors.New("staging buffer exhausted"))
				return e.unrecoverable
			}
		}
		n := frameLen - offset
		if n > free {
			n = free
		}
		e.stage.Append(pcm48k[offset*e.channels : (offset+n)*e.channels])
		offset += n
		if err := e.encodeLoop(); err != nil {
			return err
		}
	}
	return nil
}

// encodeLoop is spec §4.5's encode loop: while the staging buffer holds
// more than frame_size+decision_delay samples, pull one frame, encode
// it, commit the packet, and handle the stream's EOS/chain crossover if
// this frame reaches the stream's end-granule.
func (e *Encoder) encodeLoop() error {
	for int64(e.stage.Len()) > int64(e.frameSize)+e.decisionDelay {
		head := e.streams.Head()
		if head == nil {
			break
		}
		if !head.Initialized() {
			if err := e.initStream(head); err != nil {
				return err
			}
		}

		endGranule48k := ceilDiv(head.EndGranule()*48000, int64(e.inputRate)) + e.globalPreSkip

		isKeyframe := head.Next() != nil && e.currentGranule+int64(e.frameSize) >= endGranule48k
		var savedPredDisabled bool
		if isKeyframe {
			savedPredDisabled = e.codec.PredictionDisabled()
			e.codec.SetPredictionDisabled(true)
		}

		frame := e.stage.View()[:e.frameSize*e.channels]
		pcm64 := make([]float64, len(frame))
		for i, v := range frame {
			pcm64[i] = float64(v)
		}
		packet, err := e.codec.Encode(pcm64, e.frameSize)
		if isKeyframe {
			e.codec.SetPredictionDisabled(savedPredDisabled)
		}
		if err != nil {
			e.latch(fmt.Errorf("codec encode: %w", err))
			return e.unrecoverable
		}
		if packet == nil {
			// All streams went DTX for this frame: a zero-length
			// packet still advances granule/stage bookkeeping but
			// carries no audio.
			packet = []byte{}
		}

		e.currentGranule += int64(e.frameSize)
		eos := e.currentGranule >= endGranule48k
		gp := e.currentGranule
		if gp > endGranule48k {
			gp = endGranule48k
		}
		granulepos := uint64(gp - head.GranuleOffset())

		if err := e.commitPacket(packet, granulepos, eos); err != nil {
			return err
		}
		head.IncrementPacketCount()

		if isKeyframe {
			e.chainingKeyframe = append([]byte(nil), packet...)
		}

		if eos {
			if err := e.closeHeadStream(head, endGranule48k); err != nil {
				return err
			}
		}

		e.stage.Consume(e.frameSize)
	}
	if e.stage.Free() == 0 {
		e.stage.Shift()
	}
	return nil
}

// closeHeadStream runs the chain crossover of spec §4.5 step 6: it
// retires head (already committed its EOS packet), and if a successor
// exists, computes its pre-skip and granule offset, initializes it, and
// re-emits the saved chaining keyframe as its first audio packet.
func (e *Encoder) closeHeadStream(head *stream.Stream, endGranule48k int64) error {
	e.streams.RemoveHead()
	newHead := e.streams.Head()
	if newHead == nil {
		e.chainingKeyframe = nil
		return nil
	}

	preSkip := endGranule48k + int64(e.frameSize) - e.currentGranule
	offset := e.currentGranule
	if e.chainingKeyframe != nil {
		preSkip -= int64(e.frameSize)
		offset -= int64(e.frameSize)
	}
	if preSkip < 0 {
		preSkip = 0
	}
	newHead.SetGranuleOffset(offset)
	newHead.SetHeaderPreSkip(uint16(preSkip))

	if !newHead.Initialized() {
		if err := e.initStream(newHead); err != nil {
			return err
		}
	}

	if e.chainingKeyframe != nil {
		kf := e.chainingKeyframe
		e.chainingKeyframe = nil
		if err := e.commitPacket(kf, uint64(e.frameSize), false); err != nil {
			return err
		}
		newHead.IncrementPacketCount()
	}
	return nil
}

// initStream runs spec §4.5's stream-initialization helper: draw a
// serial if unset, chain (or create) the packer, pad the comment block,
// and commit the ID header and comment packets each alone on their own
// page.
func (e *Encoder) initStream(s *stream.Stream) error {
	s.AssignRandomSerial(e.serialSource)
	serial, _ := s.Serial()

	if e.packer == nil {
		e.packer = packer.New(serial, uint64(e.muxingDelay))
	} else if err := e.packer.Chain(serial); err != nil {
		e.latch(fmt.Errorf("packer chain: %w", err))
		return e.unrecoverable
	}
	e.serialSinks[serial] = s.Sink()
	e.serialCloseAtEnd[serial] = s.CloseAtEnd()

	s.Comment().SetPadding(e.commentPadding)

	var headerPreSkip uint16
	if !e.anyStreamInitialized {
		headerPreSkip = uint16(e.globalPreSkip)
		e.anyStreamInitialized = true
	} else {
		headerPreSkip = s.HeaderPreSkip()
	}

	header := e.buildHeader(headerPreSkip)
	headerBuf, err := e.packer.Reserve(len(header))
	if err != nil {
		e.latch(err)
		return e.unrecoverable
	}
	copy(headerBuf, header)
	if err := e.commitPacket(headerBuf, 0, false); err != nil {
		return err
	}
	if err := e.flushPage(); err != nil {
		return err
	}

	tags := s.Comment().Build()
	tagsBuf, err := e.packer.Reserve(len(tags))
	if err != nil {
		e.latch(err)
		return e.unrecoverable
	}
	copy(tagsBuf, tags)
	if err := e.commitPacket(tagsBuf, 0, false); err != nil {
		return err
	}
	if err := e.flushPage(); err != nil {
		return err
	}

	s.MarkInitialized()
	return nil
}

// buildHeader serializes this encoder's OpusHead packet for a stream
// carrying preSkip as its pre-skip field.
func (e *Encoder) buildHeader(preSkip uint16) []byte {
	h := oheader.NewFromDefaultMapping(e.channels, e.msStreams, e.msCoupled, e.msMapping, preSkip, uint32(e.inputRate))
	return h.Encode()
}

// commitPacket commits one packet to the packer, fires the optional
// packet callback (spec §5's ordering guarantee: "after commit and
// before the containing page is handed to the sink"), then routes any
// pages the commit completed.
func (e *Encoder) commitPacket(data []byte, granulepos uint64, eos bool) error {
	if err := e.packer.Commit(data, granulepos, eos); err != nil {
		e.latch(fmt.Errorf("packer commit: %w", err))
		return e.unrecoverable
	}
	if e.packetCallback != nil {
		e.packetCallback(data, eos)
	}
	return e.flushReadyPages()
}

// flushPage explicitly closes the packer's current page (used after the
// ID header and comment packets, which must each sit alone on their own
// page regardless of the packer's own flush heuristics), then routes it.
func (e *Encoder) flushPage() error {
	if err := e.packer.Flush(); err != nil {
		e.latch(err)
		return e.unrecoverable
	}
	return e.flushReadyPages()
}

// flushReadyPages drains every page the packer currently has ready,
// writing each to the sink of the stream whose serial number it
// carries, and closing that sink if the page is an EOS page and the
// owning stream's close-at-end flag is set. In pull mode, pages are left
// in the packer for GetPage to drain instead.
func (e *Encoder) flushReadyPages() error {
	if e.pullMode {
		return nil
	}
	for {
		page, ok := e.packer.NextPage()
		if !ok {
			return nil
		}
		encoded := page.Encode()
		if s := e.serialSinks[page.SerialNumber]; s != nil {
			if _, err := s.Write(encoded); err != nil {
				// Open question resolved per spec §9: sink write
				// failures latch UNRECOVERABLE rather than being
				// silently dropped.
				e.latch(fmt.Errorf("sink write: %w", err))
				return e.unrecoverable
			}
			if page.IsEOS() && e.serialCloseAtEnd[page.SerialNumber] {
				if err := s.Close(); err != nil {
					e.latch(fmt.Errorf("sink close: %w", err))
					return e.unrecoverable
				}
			}
		}
		if page.IsEOS() {
			delete(e.serialSinks, page.SerialNumber)
			delete(e.serialCloseAtEnd, page.SerialNumber)
		}
	}
}

// Drain terminates the current (tail) stream cleanly: it pads the
// staging buffer past the codec's look-ahead with a linear-prediction
// extrapolation plus a short zero tail, forces decision delay to zero,
// and runs the encode loop until every stream has been closed.
func (e *Encoder) Drain() error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	if e.streams.Empty() {
		return nil
	}

	tail := e.streams.Tail()
	tail.FreezeHeader()
	if !tail.Initialized() && tail == e.streams.Head() {
		if err := e.initStream(tail); err != nil {
			return err
		}
	}

	pad := e.buildDrainPadding()
	e.decisionDelay = 0
	if len(pad) > 0 {
		if err := e.appendAndEncode(pad); err != nil {
			return err
		}
	}
	for !e.streams.Empty() && e.stage.Len() > e.frameSize {
		if err := e.encodeLoop(); err != nil {
			return err
		}
	}
	return nil
}

// buildDrainPadding extrapolates each channel's recent history forward
// by the codec's look-ahead using lpcext, then appends a short zero
// tail, so the codec's remaining look-ahead can be flushed without a
// hard discontinuity at end of stream (spec §4.7).
func (e *Encoder) buildDrainPadding() []float32 {
	lookahead := e.codec.Lookahead()
	if lookahead < 0 {
		lookahead = 0
	}
	zeroTail := e.frameSize
	total := lookahead + zeroTail
	if total == 0 {
		return nil
	}

	view := e.stage.View()
	frames := len(view) / e.channels
	out := make([]float32, total*e.channels)
	for c := 0; c < e.channels; c++ {
		history := make([]float32, frames)
		for i := 0; i < frames; i++ {
			history[i] = view[i*e.channels+c]
		}
		ext := lpcext.Extend(history, lookahead)
		for i, v := range ext {
			out[i*e.channels+c] = v
		}
	}
	return out
}

// Destroy releases the encoder's resources. Go's GC reclaims everything
// here without a manual free, but Destroy is kept as a named method so
// the "drain, then destroy" contract (spec §3) matches the original
// API's shape; it is always valid to call, even after Drain failed.
func (e *Encoder) Destroy() error {
	return nil
}

// chainAppend appends a new stream to the tail (spec §4.5's chaining
// constructors all reduce to this).
func (e *Encoder) chainAppend(s sink.Sink, closeAtEnd bool) error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	ns := stream.New(s)
	ns.SetCloseAtEnd(closeAtEnd)
	e.streams.InsertTail(ns)
	return nil
}

// ChainCurrent starts a new logical stream continuing into the current
// tail stream's sink (ordinary Ogg chaining within one physical file).
// The outgoing stream's EOS page is emitted before the incoming
// stream's BOS page; its sink is not closed at that boundary.
func (e *Encoder) ChainCurrent() error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	tail := e.streams.Tail()
	var s sink.Sink
	if tail != nil {
		s = tail.Sink()
		// The outgoing stream shares s with the new one, so it must not
		// close s at its own EOS.
		e.SetCloseAtEnd(false)
	}
	return e.chainAppend(s, false)
}

// ContinueNewFile starts a new logical stream writing to a brand new
// file, closing it at that stream's own EOS.
func (e *Encoder) ContinueNewFile(path string) error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	s, err := sink.NewFile(path)
	if err != nil {
		e.latch(fmt.Errorf("%w: %v", ErrCannotOpen, err))
		return e.unrecoverable
	}
	return e.chainAppend(s, true)
}

// ContinueNewCallbacks starts a new logical stream writing through a
// caller-supplied sink, closing it at that stream's own EOS.
func (e *Encoder) ContinueNewCallbacks(s sink.Sink) error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	if s == nil {
		return fmt.Errorf("%w: nil sink", ErrBadArg)
	}
	return e.chainAppend(s, true)
}

// FlushHeader forces header emission on the tail stream early, so
// downstream consumers see the Ogg head before any audio is written. If
// the tail is a stream already chained behind a predecessor that hasn't
// closed yet, this is a no-op: that stream's header is committed at the
// crossover instead, once its predecessor's EOS has been emitted.
func (e *Encoder) FlushHeader() error {
	if e.unrecoverable != nil {
		return e.unrecoverable
	}
	tail := e.streams.Tail()
	if tail == nil {
		return nil
	}
	tail.FreezeHeader()
	if tail.Initialized() || tail != e.streams.Head() {
		return nil
	}
	return e.initStream(tail)
}

// GetPage returns the next ready page in pull mode, or (nil, false, nil)
// if none is ready yet. If flush is true, the packer's current page is
// closed first even if only partially accumulated.
func (e *Encoder) GetPage(flush bool) ([]byte, bool, error) {
	if e.unrecoverable != nil {
		return nil, false, e.unrecoverable
	}
	if !e.pullMode {
		return nil, false, fmt.Errorf("%w: encoder is not in pull mode", ErrBadArg)
	}
	if e.packer == nil {
		return nil, false, nil
	}
	if flush {
		if err := e.packer.Flush(); err != nil {
			e.latch(err)
			return nil, false, e.unrecoverable
		}
	}
	page, ok := e.packer.NextPage()
	if !ok {
		return nil, false, nil
	}
	return page.Encode(), true, nil
}

// ceilDiv computes ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Package packer implements the stateful Ogg page-packer: it accumulates
// Opus packets with their granule positions and EOS flags, lacing them into
// pages under a muxing-delay bound, and supports chaining to a new logical
// bitstream within the same physical sequence of pages.
//
// This is the Go rendition of spec §4.1's "Ogg Page Packer". The wire
// encoding itself (CRC, header layout, segment tables) lives in
// container/ogg; this package owns reserve/commit/flush/chain policy.
package packer

import (
	"errors"

	"github.com/xiph/libopusenc/container/ogg"
)

// ErrAllocFail is returned by Reserve when the requested packet would
// exceed the packer's size bound.
var ErrAllocFail = errors.New("packer: allocation exhausted")

// maxPacketBytes bounds a single reserved packet. Real Opus audio packets
// are a few hundred bytes; the largest packet a caller can reasonably
// produce is a heavily padded comment packet, so this bound is generous
// rather than tight.
const maxPacketBytes = 16 << 20

type packetRec struct {
	data       []byte
	granulepos uint64
	eos        bool
}

// Packer accumulates packets into Ogg pages.
//
// A Packer is NOT safe for concurrent use.
type Packer struct {
	serial      uint32
	pageSeq     uint32
	muxingDelay uint64
	bosPending  bool

	packets  []packetRec
	segCount int

	ready []*ogg.Page

	hasPending   bool
	firstPending uint64

	scratch []byte
}

// New creates a packer for a logical bitstream with the given initial
// serial number and muxing-delay bound (in the same units as the granule
// positions passed to Commit — 48kHz samples for Opus).
func New(serial uint32, muxingDelay uint64) *Packer {
	return &Packer{
		serial:      serial,
		muxingDelay: muxingDelay,
		bosPending:  true,
	}
}

// SetMuxingDelay updates the muxing-delay bound.
func (p *Packer) SetMuxingDelay(delay uint64) { p.muxingDelay = delay }

// Reserve returns a writable scratch region of exactly n bytes. The region
// is valid until the next call to Reserve or Commit.
func (p *Packer) Reserve(n int) ([]byte, error) {
	if n < 0 || n > maxPacketBytes {
		return nil, ErrAllocFail
	}
	if cap(p.scratch) < n {
		p.scratch = make([]byte, n)
	}
	return p.scratch[:n], nil
}

// Commit finalizes the packet previously written into the buffer returned
// by Reserve, lacing it into the packer's pending page accumulator. It may
// implicitly flush a completed page first, either because this packet
// would push the in-flight page past 255 segments or because committing it
// would exceed the configured muxing delay.
func (p *Packer) Commit(data []byte, granulepos uint64, eos bool) error {
	length := len(data)

	if p.hasPending && length > 0 && granulepos > p.firstPending &&
		granulepos-p.firstPending > p.muxingDelay {
		if err := p.Flush(); err != nil {
			return err
		}
	}

	segNeeded := length/255 + 1
	if segNeeded > 255 {
		return p.commitOversized(data, granulepos, eos)
	}

	if p.segCount+segNeeded > 255 {
		if err := p.Flush(); err != nil {
			return err
		}
	}

	owned := append([]byte(nil), data...)
	p.packets = append(p.packets, packetRec{data: owned, granulepos: granulepos, eos: eos})
	p.segCount += segNeeded
	if length > 0 && !p.hasPending {
		p.hasPending = true
		p.firstPending = granulepos
	}

	if eos {
		return p.Flush()
	}
	return nil
}

// commitOversized handles a single packet too large to lace into one page
// (more than 254 full 255-byte segments): it is split across continuation
// pages per RFC 3533, with every page but the last carrying granulepos -1
// (encoded as the 64-bit two's complement 0xFFFFFFFFFFFFFFFF).
func (p *Packer) commitOversized(data []byte, granulepos uint64, eos bool) error {
	if err := p.Flush(); err != nil {
		return err
	}
	const maxChunk = 254 * 255 // each non-final chunk is 254 full 255-byte segments
	continued := false
	for len(data) > 0 {
		var chunk []byte
		var gp uint64
		var chunkEOS bool
		isLast := len(data) <= maxChunk
		if isLast {
			chunk, data = data, nil
			gp = granulepos
			chunkEOS = eos
		} else {
			chunk, data = data[:maxChunk], data[maxChunk:]
			gp = ^uint64(0)
		}
		headerType := byte(0)
		if continued {
			headerType |= ogg.PageFlagContinuation
		}
		if p.bosPending {
			headerType |= ogg.PageFlagBOS
			p.bosPending = false
		}
		if isLast && chunkEOS {
			headerType |= ogg.PageFlagEOS
		}
		var segments []byte
		if isLast {
			segments = ogg.BuildSegmentTable(len(chunk))
		} else {
			// A continuation chunk is an exact multiple of 255 bytes and
			// must lace as all-255 segments with no terminator: the
			// terminator is what closes the packet, and it isn't closed
			// yet.
			segments = make([]byte, len(chunk)/255)
			for i := range segments {
				segments[i] = 255
			}
		}
		page := &ogg.Page{
			Version:      0,
			HeaderType:   headerType,
			GranulePos:   gp,
			SerialNumber: p.serial,
			PageSequence: p.pageSeq,
			Segments:     segments,
			Payload:      append([]byte(nil), chunk...),
		}
		p.pageSeq++
		p.ready = append(p.ready, page)
		continued = true
		if isLast {
			break
		}
	}
	p.updatePendingAfterDrainCheck()
	return nil
}

// Flush closes the currently accumulating page at the last committed
// packet boundary. Flushing an empty accumulator is a no-op.
func (p *Packer) Flush() error {
	if len(p.packets) == 0 {
		return nil
	}

	segments := make([]byte, 0, p.segCount)
	bodyLen := 0
	eos := false
	var granule uint64
	for _, rec := range p.packets {
		segments = append(segments, ogg.BuildSegmentTable(len(rec.data))...)
		bodyLen += len(rec.data)
		if len(rec.data) > 0 {
			granule = rec.granulepos
		}
		if rec.eos {
			eos = true
		}
	}
	payload := make([]byte, 0, bodyLen)
	for _, rec := range p.packets {
		payload = append(payload, rec.data...)
	}

	headerType := byte(0)
	if p.bosPending {
		headerType |= ogg.PageFlagBOS
		p.bosPending = false
	}
	if eos {
		headerType |= ogg.PageFlagEOS
	}

	page := &ogg.Page{
		Version:      0,
		HeaderType:   headerType,
		GranulePos:   granule,
		SerialNumber: p.serial,
		PageSequence: p.pageSeq,
		Segments:     segments,
		Payload:      payload,
	}
	p.pageSeq++
	p.ready = append(p.ready, page)

	p.packets = p.packets[:0]
	p.segCount = 0
	p.updatePendingAfterDrainCheck()
	return nil
}

// NextPage materializes the next completed page, if any, removing it from
// the packer's ready queue.
func (p *Packer) NextPage() (*ogg.Page, bool) {
	if len(p.ready) == 0 {
		return nil, false
	}
	page := p.ready[0]
	p.ready = p.ready[1:]
	p.updatePendingAfterDrainCheck()
	return page, true
}

// HasReadyPage reports whether a page is available from NextPage without
// consuming it.
func (p *Packer) HasReadyPage() bool {
	return len(p.ready) > 0
}

// Chain flushes the current page (even if it holds only a partial
// accumulation), resets the page sequence counter, arranges for BOS to be
// set on the next page produced, and adopts a new serial number for pages
// from this point on. Pages already queued in the ready list keep their
// original serial number.
func (p *Packer) Chain(newSerial uint32) error {
	if err := p.Flush(); err != nil {
		return err
	}
	p.pageSeq = 0
	p.bosPending = true
	p.serial = newSerial
	return nil
}

// updatePendingAfterDrainCheck clears the muxing-delay tracking once both
// the ready queue and the in-progress accumulator are empty: at that point
// there is no pending page whose granule lags behind the latest commit.
func (p *Packer) updatePendingAfterDrainCheck() {
	if len(p.ready) == 0 && len(p.packets) == 0 {
		p.hasPending = false
	}
}

// Package oheader serializes the Opus ID header ("OpusHead") packet that
// forms page 0 of an Ogg Opus stream.
package oheader

import (
	"encoding/binary"
)

// MappingFamily values per RFC 7845 §5.1.1.
const (
	MappingFamilyStereoOrMono byte = 0
	MappingFamilyVorbis       byte = 1
	MappingFamilyAmbisonic    byte = 2
	MappingFamilyDiscrete     byte = 255
)

// Header holds every field of the Opus ID header.
type Header struct {
	Channels       int
	PreSkip        uint16
	InputRate      uint32
	OutputGain     int16 // Q7.8 fixed point
	MappingFamily  byte
	Streams        int    // families 1, 2, 255 only
	CoupledStreams int    // families 1, 2, 255 only
	ChannelMapping []byte // length Channels, families 1, 2, 255 only
}

// Encode serializes the header to its wire form: 19 bytes for mapping
// family 0, or 19+2+Channels bytes for families 1/2/255.
func (h Header) Encode() []byte {
	size := 19
	if h.MappingFamily != MappingFamilyStereoOrMono {
		size += 2 + h.Channels
	}
	out := make([]byte, size)
	copy(out[0:8], "OpusHead")
	out[8] = 1 // version
	out[9] = byte(h.Channels)
	binary.LittleEndian.PutUint16(out[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(out[12:16], h.InputRate)
	binary.LittleEndian.PutUint16(out[16:18], uint16(h.OutputGain))
	out[18] = h.MappingFamily
	if h.MappingFamily != MappingFamilyStereoOrMono {
		out[19] = byte(h.Streams)
		out[20] = byte(h.CoupledStreams)
		copy(out[21:], h.ChannelMapping)
	}
	return out
}

// NewFromDefaultMapping builds a Header for channels using the family-1
// default mapping (streams, coupledStreams, mapping) as produced by the
// Opus multistream codec's own DefaultMapping helper. For 1-2 channels
// family 0 is used (no explicit map needed); for 3-8 channels family 1
// is used with the supplied mapping.
func NewFromDefaultMapping(channels, streams, coupledStreams int, mapping []byte, preSkip uint16, inputRate uint32) Header {
	h := Header{
		Channels:  channels,
		PreSkip:   preSkip,
		InputRate: inputRate,
	}
	if channels <= 2 {
		h.MappingFamily = MappingFamilyStereoOrMono
		return h
	}
	h.MappingFamily = MappingFamilyVorbis
	h.Streams = streams
	h.CoupledStreams = coupledStreams
	h.ChannelMapping = mapping
	return h
}

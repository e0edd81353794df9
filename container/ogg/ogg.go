// Package ogg implements the Ogg page framing format: CRC-32 checksums,
// segment-table lacing, and page header encode/decode.
//
// This package knows nothing about Opus or about packet accumulation across
// pages — it is the wire-format layer only. See package packer for the
// stateful accumulate/flush/chain logic built on top of it.
package ogg

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidPage indicates the byte slice is too short or missing the "OggS"
// capture pattern.
var ErrInvalidPage = errors.New("ogg: invalid page")

// ErrBadCRC indicates the page's CRC-32 field does not match the computed
// checksum of its header and body.
var ErrBadCRC = errors.New("ogg: bad crc")

// Page header flag bits (byte 5 of the Ogg page header).
const (
	PageFlagContinuation byte = 0x01
	PageFlagBOS          byte = 0x02
	PageFlagEOS          byte = 0x04
)

// HeaderSize is the fixed portion of an Ogg page header, before the
// variable-length segment table.
const HeaderSize = 27

// MaxSegments is the largest segment count a single page's 1-byte segment
// count field can express.
const MaxSegments = 255

// MaxSegmentBytes is the largest payload a single page can carry
// (255 segments of 255 bytes each).
const MaxSegmentBytes = MaxSegments * 255

// Page is one physical Ogg page: a header plus its lacing-delimited body.
type Page struct {
	Version      byte
	HeaderType   byte
	GranulePos   uint64
	SerialNumber uint32
	PageSequence uint32
	Segments     []byte
	Payload      []byte
}

// IsBOS reports whether this is the first page of a logical bitstream.
func (p *Page) IsBOS() bool { return p.HeaderType&PageFlagBOS != 0 }

// IsEOS reports whether this is the last page of a logical bitstream.
func (p *Page) IsEOS() bool { return p.HeaderType&PageFlagEOS != 0 }

// IsContinuation reports whether this page opens with the tail of a packet
// begun on a previous page.
func (p *Page) IsContinuation() bool { return p.HeaderType&PageFlagContinuation != 0 }

// Encode serializes the page to its wire representation, computing the
// CRC-32 over the header (with the CRC field zeroed) followed by the body.
func (p *Page) Encode() []byte {
	out := make([]byte, HeaderSize+len(p.Segments)+len(p.Payload))

	copy(out[0:4], "OggS")
	out[4] = p.Version
	out[5] = p.HeaderType
	binary.LittleEndian.PutUint64(out[6:14], p.GranulePos)
	binary.LittleEndian.PutUint32(out[14:18], p.SerialNumber)
	binary.LittleEndian.PutUint32(out[18:22], p.PageSequence)
	// out[22:26] CRC, filled in below.
	out[26] = byte(len(p.Segments))
	copy(out[27:], p.Segments)
	copy(out[27+len(p.Segments):], p.Payload)

	crc := oggCRC(out)
	binary.LittleEndian.PutUint32(out[22:26], crc)
	return out
}

// ParsePage decodes one page from the front of data, returning the page, the
// number of bytes consumed, and an error if the data is too short, lacks the
// capture pattern, or fails CRC verification.
func ParsePage(data []byte) (*Page, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, ErrInvalidPage
	}
	if string(data[0:4]) != "OggS" {
		return nil, 0, ErrInvalidPage
	}
	nSegments := int(data[26])
	total := HeaderSize + nSegments
	if len(data) < total {
		return nil, 0, ErrInvalidPage
	}
	segments := data[27:total]
	bodyLen := 0
	for _, s := range segments {
		bodyLen += int(s)
	}
	if len(data) < total+bodyLen {
		return nil, 0, ErrInvalidPage
	}

	check := make([]byte, total+bodyLen)
	copy(check, data[:total+bodyLen])
	check[22], check[23], check[24], check[25] = 0, 0, 0, 0
	if oggCRC(check) != binary.LittleEndian.Uint32(data[22:26]) {
		return nil, 0, ErrBadCRC
	}

	p := &Page{
		Version:      data[4],
		HeaderType:   data[5],
		GranulePos:   binary.LittleEndian.Uint64(data[6:14]),
		SerialNumber: binary.LittleEndian.Uint32(data[14:18]),
		PageSequence: binary.LittleEndian.Uint32(data[18:22]),
		Segments:     append([]byte(nil), segments...),
		Payload:      append([]byte(nil), data[total:total+bodyLen]...),
	}
	return p, total + bodyLen, nil
}

// Packets splits the page's payload into its constituent packets according
// to the segment table. A packet whose final segment in this page is 255
// bytes long continues onto the next page and is not included in the
// result: the caller reassembles cross-page packets at a higher level.
func (p *Page) Packets() [][]byte {
	var packets [][]byte
	start := 0
	length := 0
	for _, seg := range p.Segments {
		length += int(seg)
		if seg < 255 {
			packets = append(packets, p.Payload[start:start+length])
			start += length
			length = 0
		}
	}
	return packets
}

// BuildSegmentTable computes the lacing values for a single packet of the
// given length: floor(length/255) segments of 255 followed by one segment
// holding the remainder (always emitted, even if zero, so a zero-length
// packet still laces to a single 0 segment).
func BuildSegmentTable(length int) []byte {
	n := length / 255
	table := make([]byte, 0, n+1)
	for i := 0; i < n; i++ {
		table = append(table, 255)
	}
	table = append(table, byte(length-255*n))
	return table
}

// ParseSegmentTable interprets a segment table as a sequence of complete
// packet lengths. A trailing run of segments that ends in a 255 (i.e. the
// table ends mid-packet) is incomplete and is dropped: it belongs to a
// packet continued on a subsequent page.
func ParseSegmentTable(segments []byte) []int {
	var lengths []int
	sum := 0
	for _, s := range segments {
		sum += int(s)
		if s < 255 {
			lengths = append(lengths, sum)
			sum = 0
		}
	}
	return lengths
}

// oggCRCTable is the byte-at-a-time CRC-32 table for the Ogg checksum
// polynomial 0x04C11DB7 (direct, not reflected — distinct from the
// IEEE/zlib CRC-32 used elsewhere).
var oggCRCTable [256]uint32

func init() {
	const poly = 0x04c11db7
	for i := range oggCRCTable {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ poly
			} else {
				r <<= 1
			}
		}
		oggCRCTable[i] = r
	}
}

func oggCRC(data []byte) uint32 {
	return oggCRCUpdate(0, data)
}

func oggCRCUpdate(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

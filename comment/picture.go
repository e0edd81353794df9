package comment

import "encoding/binary"

// PictureType mirrors the FLAC picture-block type enumeration; only the
// cover-front value is given a name since it's the overwhelmingly common
// case for embedded cover art.
type PictureType uint32

// PictureTypeCoverFront is FLAC picture type 3, "Cover (front)".
const PictureTypeCoverFront PictureType = 3

// Picture is the already-parsed input to the FLAC-style picture block
// builder: spec.md scopes the picture-spec *parser* (turning a shorthand
// string into these fields) out, leaving only the binary block + base64
// serialization in scope.
type Picture struct {
	Type        PictureType
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	Depth       uint32
	Colors      uint32 // 0 for non-indexed formats
	Data        []byte
}

// encode serializes the picture as a FLAC METADATA_BLOCK_PICTURE: type,
// MIME type, description, width, height, color depth, indexed-color
// count, then length-prefixed image data — every length-prefixed field
// is big-endian per the FLAC spec (the only big-endian structure in this
// module; everything Ogg/Opus is little-endian).
func (p Picture) encode() ([]byte, error) {
	var out []byte
	out = appendU32BE(out, uint32(p.Type))
	out = appendStringBE(out, p.MIME)
	out = appendStringBE(out, p.Description)
	out = appendU32BE(out, p.Width)
	out = appendU32BE(out, p.Height)
	out = appendU32BE(out, p.Depth)
	out = appendU32BE(out, p.Colors)
	out = appendU32BE(out, uint32(len(p.Data)))
	out = append(out, p.Data...)
	return out, nil
}

func appendU32BE(out []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(out, buf[:]...)
}

func appendStringBE(out []byte, s string) []byte {
	out = appendU32BE(out, uint32(len(s)))
	return append(out, s...)
}

// Package comment builds the Opus "OpusTags" comment packet: vendor
// string, tag/value pairs, padding, and FLAC-style picture blocks.
package comment

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadTagName is returned when a tag name contains a byte outside
// printable ASCII 0x20-0x7D, or contains '='.
var ErrBadTagName = errors.New("comment: invalid tag name")

// DefaultVendor is used when no vendor string has been set.
const DefaultVendor = "libopusenc-go"

// DefaultPadding is the default number of zero padding bytes appended to
// the comment packet.
const DefaultPadding = 512

// Builder accumulates vendor string, tag/value pairs, and padding for one
// OpusTags packet.
type Builder struct {
	vendor  string
	entries []string
	padding int
}

// New returns a Builder with the default vendor string and padding.
func New() *Builder {
	return &Builder{vendor: DefaultVendor, padding: DefaultPadding}
}

// SetVendor overrides the vendor string.
func (b *Builder) SetVendor(v string) { b.vendor = v }

// SetPadding overrides the padding byte count.
func (b *Builder) SetPadding(n int) { b.padding = n }

// Add appends a TAG=VALUE entry. tag must be printable ASCII 0x20-0x7D
// and must not contain '='.
func (b *Builder) Add(tag, value string) error {
	if err := validateTagName(tag); err != nil {
		return err
	}
	b.entries = append(b.entries, tag+"="+value)
	return nil
}

// AddPicture adds a METADATA_BLOCK_PICTURE entry whose value is the
// base64 encoding of a FLAC-style picture block built from pic.
func (b *Builder) AddPicture(pic Picture) error {
	block, err := pic.encode()
	if err != nil {
		return err
	}
	return b.Add("METADATA_BLOCK_PICTURE", base64.StdEncoding.EncodeToString(block))
}

// Count returns the number of tag/value entries added so far (excluding
// the vendor string).
func (b *Builder) Count() int { return len(b.entries) }

// Build serializes the OpusTags packet: 8-byte magic, vendor, comment
// count, comments, then a trailing zero-padding block. The padding is a
// 4-byte length followed by that many zero bytes; it sits after the
// comment list and is not included in the comment count.
func (b *Builder) Build() []byte {
	var out []byte
	out = append(out, "OpusTags"...)
	out = appendLengthPrefixed(out, []byte(b.vendor))

	count := make([]byte, 4)
	binary.LittleEndian.PutUint32(count, uint32(len(b.entries)))
	out = append(out, count...)
	for _, e := range b.entries {
		out = appendLengthPrefixed(out, []byte(e))
	}

	if b.padding > 0 {
		out = appendLengthPrefixed(out, make([]byte, b.padding))
	}
	return out
}

func appendLengthPrefixed(out []byte, data []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))
	out = append(out, lenBuf...)
	return append(out, data...)
}

func validateTagName(tag string) error {
	if tag == "" {
		return ErrBadTagName
	}
	for _, r := range tag {
		if r == '=' || r < 0x20 || r > 0x7D {
			return fmt.Errorf("%w: %q", ErrBadTagName, tag)
		}
	}
	return nil
}

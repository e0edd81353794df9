package comment

import (
	"encoding/binary"
	"testing"
)

func TestBuildLayout(t *testing.T) {
	b := New()
	b.SetVendor("test-vendor")
	b.SetPadding(0)
	if err := b.Add("TITLE", "Song"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add("ARTIST", "Someone"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	out := b.Build()
	if string(out[:8]) != "OpusTags" {
		t.Fatalf("magic = %q, want OpusTags", out[:8])
	}
	pos := 8
	vendorLen := binary.LittleEndian.Uint32(out[pos : pos+4])
	pos += 4
	if string(out[pos:pos+int(vendorLen)]) != "test-vendor" {
		t.Fatalf("vendor = %q", out[pos:pos+int(vendorLen)])
	}
	pos += int(vendorLen)

	count := binary.LittleEndian.Uint32(out[pos : pos+4])
	pos += 4
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	entryLen := binary.LittleEndian.Uint32(out[pos : pos+4])
	pos += 4
	if string(out[pos:pos+int(entryLen)]) != "TITLE=Song" {
		t.Fatalf("entry 0 = %q", out[pos:pos+int(entryLen)])
	}
	pos += int(entryLen)

	entryLen = binary.LittleEndian.Uint32(out[pos : pos+4])
	pos += 4
	if string(out[pos:pos+int(entryLen)]) != "ARTIST=Someone" {
		t.Fatalf("entry 1 = %q", out[pos:pos+int(entryLen)])
	}
	pos += int(entryLen)

	if pos != len(out) {
		t.Errorf("trailing bytes = %d, want 0 (padding disabled)", len(out)-pos)
	}
}

func TestPaddingAppended(t *testing.T) {
	b := New()
	b.SetPadding(64)
	out := b.Build()
	// magic(8) + vendorLen(4) + vendor + count(4) + paddingLen(4) + padding(64)
	want := 8 + 4 + len(DefaultVendor) + 4 + 4 + 64
	if len(out) != want {
		t.Errorf("len(out) = %d, want %d", len(out), want)
	}
}

func TestAddRejectsBadTagNames(t *testing.T) {
	b := New()
	cases := []string{"TAG=NAME", "tag\x01", "", "tag\x7e"}
	for _, tag := range cases {
		if err := b.Add(tag, "v"); err == nil {
			t.Errorf("Add(%q, ...) succeeded, want error", tag)
		}
	}
}

func TestAddPictureProducesBase64Value(t *testing.T) {
	b := New()
	b.SetPadding(0)
	pic := Picture{
		Type:   PictureTypeCoverFront,
		MIME:   "image/png",
		Width:  10,
		Height: 10,
		Depth:  24,
		Data:   []byte{1, 2, 3, 4},
	}
	if err := b.AddPicture(pic); err != nil {
		t.Fatalf("AddPicture: %v", err)
	}
	if b.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", b.Count())
	}
	if len(b.entries) != 1 || len(b.entries[0]) < len("METADATA_BLOCK_PICTURE=") {
		t.Fatalf("unexpected entry: %q", b.entries)
	}
	if got, want := b.entries[0][:23], "METADATA_BLOCK_PICTURE"; got != want+"=" {
		t.Errorf("entry prefix = %q, want %q=", got, want)
	}
}

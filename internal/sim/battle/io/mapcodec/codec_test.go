package mapcodec

import (
	"bytes"
	"errors"
	"testing"
)

func TestRead_HeaderAxesSwapped(t *testing.T) {
	// 20 rows (y), 10 columns (x), 1 level.
	raw := []byte{20, 10, 1}
	raw = append(raw, make([]byte, 10*20*RecordSize)...)
	b, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b.SizeX != 10 || b.SizeY != 20 || b.SizeZ != 1 {
		t.Fatalf("size=%dx%dx%d want 10x20x1", b.SizeX, b.SizeY, b.SizeZ)
	}
	if len(b.Cells) != 200 {
		t.Fatalf("cells=%d want 200", len(b.Cells))
	}
}

func TestRead_PartialRecord(t *testing.T) {
	raw := []byte{10, 10, 1, 1, 2, 3, 4, 5, 6}
	_, err := Read(bytes.NewReader(raw))
	if !errors.Is(err, ErrPartialRecord) {
		t.Fatalf("err=%v want ErrPartialRecord", err)
	}
}

func TestRead_ShortHeader(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{10}))
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("err=%v want ErrShortHeader", err)
	}
}

func TestCellPos_DescendsOnLevelWrap(t *testing.T) {
	b := Fill(2, 3, 2, [RecordSize]uint8{})
	cases := []struct{ i, x, y, z int }{
		{0, 0, 0, 1},
		{1, 1, 0, 1},
		{2, 0, 1, 1},
		{5, 1, 2, 1},
		{6, 0, 0, 0},
		{11, 1, 2, 0},
	}
	for _, c := range cases {
		x, y, z := b.CellPos(c.i)
		if x != c.x || y != c.y || z != c.z {
			t.Fatalf("CellPos(%d)=(%d,%d,%d) want (%d,%d,%d)", c.i, x, y, z, c.x, c.y, c.z)
		}
	}
}

func TestWriteRead(t *testing.T) {
	in := Fill(10, 10, 2, [RecordSize]uint8{1, 0, 0, 2})
	in.Cells[7] = [RecordSize]uint8{3, 4, 5, 6}
	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Cells[7] != in.Cells[7] || len(out.Cells) != len(in.Cells) {
		t.Fatalf("cells differ after write/read")
	}
}

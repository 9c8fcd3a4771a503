// Package mapcodec reads and writes fragment terrain files.
//
// Layout: a 3-byte header holding the row count (y), column count (x) and
// level count (z), in that order, followed by one 4-byte record per cell:
// floor, west wall, north wall and content object part indices. Records run
// x-fastest, then y; when a level is complete the next records describe the
// level below it, so the first level in the file is the top one. Index 0
// means no part.
package mapcodec

import (
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize = 3
	RecordSize = 4
)

var (
	ErrShortHeader   = errors.New("short header")
	ErrPartialRecord = errors.New("stream ends inside a record")
	ErrTooManyCells  = errors.New("more records than cells")
)

type Block struct {
	SizeX, SizeY, SizeZ int

	// Cells are in file order; see CellPos.
	Cells [][RecordSize]uint8
}

// CellPos maps a record index to block-relative coordinates, z counted from the ground.
func (b *Block) CellPos(i int) (x, y, z int) {
	plane := b.SizeX * b.SizeY
	x = i % b.SizeX
	y = (i / b.SizeX) % b.SizeY
	z = b.SizeZ - 1 - i/plane
	return x, y, z
}

func Read(r io.Reader) (*Block, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) < HeaderSize {
		return nil, ErrShortHeader
	}
	b := &Block{
		SizeY: int(raw[0]),
		SizeX: int(raw[1]),
		SizeZ: int(raw[2]),
	}
	body := raw[HeaderSize:]
	if len(body)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrPartialRecord, len(body)%RecordSize)
	}
	n := len(body) / RecordSize
	if n > b.SizeX*b.SizeY*b.SizeZ {
		return nil, fmt.Errorf("%w: %d records for %dx%dx%d", ErrTooManyCells, n, b.SizeX, b.SizeY, b.SizeZ)
	}
	b.Cells = make([][RecordSize]uint8, n)
	for i := range b.Cells {
		copy(b.Cells[i][:], body[i*RecordSize:])
	}
	return b, nil
}

func Write(w io.Writer, b *Block) error {
	if b.SizeX > 255 || b.SizeY > 255 || b.SizeZ > 255 {
		return fmt.Errorf("block too large: %dx%dx%d", b.SizeX, b.SizeY, b.SizeZ)
	}
	buf := make([]byte, 0, HeaderSize+len(b.Cells)*RecordSize)
	buf = append(buf, uint8(b.SizeY), uint8(b.SizeX), uint8(b.SizeZ))
	for _, c := range b.Cells {
		buf = append(buf, c[:]...)
	}
	_, err := w.Write(buf)
	return err
}

// Fill builds a block of the given size where every cell is rec. Handy for fixtures.
func Fill(sizeX, sizeY, sizeZ int, rec [RecordSize]uint8) *Block {
	b := &Block{SizeX: sizeX, SizeY: sizeY, SizeZ: sizeZ}
	b.Cells = make([][RecordSize]uint8, sizeX*sizeY*sizeZ)
	for i := range b.Cells {
		b.Cells[i] = rec
	}
	return b
}

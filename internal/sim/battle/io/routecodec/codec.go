// Package routecodec reads and writes fragment route files.
//
// Each node is a 24-byte record: row (y), column (x) and level, one unused
// byte, unit type, rank, patrol priority, attack facility and spawn weight,
// then five 3-byte link slots of which only the first byte is used. Levels
// are counted from the top of the fragment.
package routecodec

import (
	"errors"
	"fmt"
	"io"

	"skirmish.dev/internal/sim/battle"
)

const (
	RecordSize = 24
	Links      = battle.NodeLinks
	linkBase   = 9
	linkStride = 3
)

// Link byte values above MaxNodeIndex are sentinels.
const (
	MaxNodeIndex   = 250
	SentinelUnused = 251
	SentinelSouth  = 252
	SentinelEast   = 253
	SentinelNorth  = 254
	SentinelWest   = 255
)

var ErrTruncated = errors.New("truncated route record")

type Record struct {
	X, Y, Z     int
	Type        uint8
	Rank        uint8
	Patrol      uint8
	Attack      uint8
	SpawnWeight uint8
	Links       [Links]uint8
}

func Read(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, len(raw)%RecordSize)
	}
	out := make([]Record, len(raw)/RecordSize)
	for i := range out {
		v := raw[i*RecordSize : (i+1)*RecordSize]
		rec := Record{
			Y:           int(v[0]),
			X:           int(v[1]),
			Z:           int(v[2]),
			Type:        v[4],
			Rank:        v[5],
			Patrol:      v[6],
			Attack:      v[7],
			SpawnWeight: v[8],
		}
		for j := 0; j < Links; j++ {
			rec.Links[j] = v[linkBase+j*linkStride]
		}
		out[i] = rec
	}
	return out, nil
}

func Write(w io.Writer, recs []Record) error {
	buf := make([]byte, len(recs)*RecordSize)
	for i, rec := range recs {
		v := buf[i*RecordSize : (i+1)*RecordSize]
		v[0], v[1], v[2] = uint8(rec.Y), uint8(rec.X), uint8(rec.Z)
		v[4], v[5], v[6], v[7], v[8] = rec.Type, rec.Rank, rec.Patrol, rec.Attack, rec.SpawnWeight
		for j := 0; j < Links; j++ {
			v[linkBase+j*linkStride] = rec.Links[j]
		}
	}
	_, err := w.Write(buf)
	return err
}

// DecodeLink turns a link byte into a battle link. Node indices are
// fragment-relative and get offset added.
func DecodeLink(v uint8, offset int) battle.Link {
	switch v {
	case SentinelUnused:
		return battle.UnusedLink
	case SentinelSouth:
		return battle.EdgeLink(battle.South)
	case SentinelEast:
		return battle.EdgeLink(battle.East)
	case SentinelNorth:
		return battle.EdgeLink(battle.North)
	case SentinelWest:
		return battle.EdgeLink(battle.West)
	}
	return battle.NodeLink(int(v) + offset)
}

// EncodeEdge is the inverse of DecodeLink for edge sentinels.
func EncodeEdge(c battle.Compass) uint8 {
	switch c {
	case battle.South:
		return SentinelSouth
	case battle.East:
		return SentinelEast
	case battle.North:
		return SentinelNorth
	}
	return SentinelWest
}

// UnusedLinks is a record link block with every slot empty.
func UnusedLinks() [Links]uint8 {
	return [Links]uint8{SentinelUnused, SentinelUnused, SentinelUnused, SentinelUnused, SentinelUnused}
}

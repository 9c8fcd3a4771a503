package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrRunOverflow is returned when a decoded layer would exceed its expected length.
var ErrRunOverflow = errors.New("encoding: run overflows layer")

// EncodeRuns packs a tile layer into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRuns(vals []uint32) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(vals) {
		v := vals[i]
		run := 1
		for j := i + 1; j < len(vals) && vals[j] == v; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRuns reverses EncodeRuns. The result must have exactly want values.
func DecodeRuns(b64 string, want int) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, want)
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFFFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if run > uint64(want-len(out)) {
			return nil, ErrRunOverflow
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint32(v))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("layer has %d values, want %d", len(out), want)
	}
	return out, nil
}

// PackPart stores a (data set, part index) pair as one layer value; 0 is no part.
func PackPart(dataSet, index int) uint32 {
	if dataSet < 0 || index < 0 {
		return 0
	}
	return (uint32(dataSet)<<16 | uint32(index)) + 1
}

func UnpackPart(v uint32) (dataSet, index int) {
	if v == 0 {
		return -1, -1
	}
	v--
	return int(v >> 16), int(v & 0xFFFF)
}

package mathx

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CeilPercent returns ceil(v * pct / 100) for non-negative inputs.
func CeilPercent(v, pct int) int {
	return (v*pct + 99) / 100
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash2 derives a stable 64-bit value from a seed and two coordinates.
// Stage seeds are derived with Hash2(seed, stage, 0) so every stage of a
// mission replays identically from the mission seed alone.
func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Distance3 is the tile distance used for facing decisions (rounded euclidean).
func Distance3(ax, ay, az, bx, by, bz int) int {
	dx := ax - bx
	dy := ay - by
	dz := az - bz
	d2 := dx*dx + dy*dy + dz*dz
	r := 0
	for (r+1)*(r+1) <= d2 {
		r++
	}
	if d2-r*r > r {
		r++
	}
	return r
}

package battle

type Position struct {
	X, Y, Z int
}

// NoPosition marks a unit or item that is not on the map.
var NoPosition = Position{-1, -1, -1}

func (p Position) Add(o Position) Position {
	return Position{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

func (p Position) OnMap() bool { return p != NoPosition }

// Facing vectors, clockwise from north. Y grows southwards.
var directionVectors = [8]Position{
	{0, -1, 0},
	{1, -1, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{-1, 1, 0},
	{-1, 0, 0},
	{-1, -1, 0},
}

func DirectionVector(dir int) Position {
	return directionVectors[((dir%8)+8)%8]
}

// DirectionTo returns the facing (0-7) that best points from a to b.
func DirectionTo(a, b Position) int {
	dx := sign(b.X - a.X)
	dy := sign(b.Y - a.Y)
	for d, v := range directionVectors {
		if v.X == dx && v.Y == dy {
			return d
		}
	}
	return 0
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

package mapgen

import (
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

const slot = ruleset.SlotSize

type CellState uint8

const (
	CellEmpty CellState = iota
	// CellOrigin is the north-west slot of a placed fragment.
	CellOrigin
	// CellCovered is any other slot of a placed fragment.
	CellCovered
)

// Drill marks the fragment borders a tunnel may be cut through.
type Drill uint8

const (
	DrillNone Drill = iota
	DrillEast
	DrillSouth
	DrillBoth
)

type Cell struct {
	State CellState
	// OX, OY locate the owning fragment's origin slot.
	OX, OY   int
	Fragment *ruleset.Fragment
	// Height is the level count of the loaded fragment, set on origin cells.
	Height int
	Drill  Drill
	// Landing marks slots reserved for a transport overlay.
	Landing bool
	Segment int
}

// Grid is the slot-level view of the battlefield: which fragment covers which
// 10x10 slot. Placing a fragment loads its terrain into the battle at once.
type Grid struct {
	b       *battle.Battle
	src     Source
	terrain *ruleset.Terrain

	// RevealAll marks every loaded tile discovered.
	RevealAll bool

	w, h   int
	cells  []Cell
	free   int
	placed bool
	uses   map[*ruleset.Fragment]int
}

func NewGrid(b *battle.Battle, src Source, terrain *ruleset.Terrain) *Grid {
	return &Grid{b: b, src: src, terrain: terrain, uses: map[*ruleset.Fragment]int{}}
}

// Reset sizes the battle and the grid. Dimensions are in tiles.
func (g *Grid) Reset(sizeX, sizeY, sizeZ int) {
	g.b.Resize(sizeX, sizeY, sizeZ)
	g.w, g.h = sizeX/slot, sizeY/slot
	g.cells = make([]Cell, g.w*g.h)
	for i := range g.cells {
		g.cells[i].Segment = -1
	}
	g.free = g.w * g.h
	g.placed = false
	g.uses = map[*ruleset.Fragment]int{}
}

func (g *Grid) Width() int                { return g.w }
func (g *Grid) Height() int               { return g.h }
func (g *Grid) Free() int                 { return g.free }
func (g *Grid) Terrain() *ruleset.Terrain { return g.terrain }

// Placed reports whether any fragment was ever placed since the last Reset.
func (g *Grid) Placed() bool { return g.placed }

func (g *Grid) inside(x, y int) bool { return x >= 0 && y >= 0 && x < g.w && y < g.h }

// At returns the cell at slot (x, y), nil outside the grid.
func (g *Grid) At(x, y int) *Cell {
	if !g.inside(x, y) {
		return nil
	}
	return &g.cells[y*g.w+x]
}

// Owner returns the origin cell of the fragment covering (x, y).
func (g *Grid) Owner(x, y int) *Cell {
	c := g.At(x, y)
	if c == nil || c.State == CellEmpty {
		return nil
	}
	return g.At(c.OX, c.OY)
}

func (g *Grid) Uses(f *ruleset.Fragment) int { return g.uses[f] }

// Fits reports whether every slot under a fragment at (x, y) is free.
func (g *Grid) Fits(x, y, sx, sy int) bool {
	if !g.inside(x, y) || !g.inside(x+sx-1, y+sy-1) {
		return false
	}
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			if g.At(i, j).State != CellEmpty {
				return false
			}
		}
	}
	return true
}

// Place puts f with its north-west slot at (x, y) and loads its terrain. It
// reports false without touching the grid when any slot is taken. Errors come
// from the terrain file and are fatal.
func (g *Grid) Place(x, y int, f *ruleset.Fragment) (bool, error) {
	sx, sy := f.SlotsX(), f.SlotsY()
	if !g.Fits(x, y, sx, sy) {
		return false, nil
	}
	height, err := LoadBlock(g.b, g.src, BlockLoad{
		Fragment:  f,
		Origin:    battle.Position{X: x * slot, Y: y * slot},
		RevealAll: g.RevealAll,
	})
	if err != nil {
		return false, err
	}
	g.claim(x, y, f, height)
	return true, nil
}

func (g *Grid) claim(x, y int, f *ruleset.Fragment, height int) {
	sx, sy := f.SlotsX(), f.SlotsY()
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			c := g.At(i, j)
			c.State = CellCovered
			c.OX, c.OY = x, y
			c.Fragment = f
			c.Drill = DrillNone
			switch {
			case i == x+sx-1 && j == y+sy-1:
				c.Drill = DrillBoth
			case i == x+sx-1:
				c.Drill = DrillEast
			case j == y+sy-1:
				c.Drill = DrillSouth
			}
		}
	}
	origin := g.At(x, y)
	origin.State = CellOrigin
	origin.Height = height
	g.free -= sx * sy
	g.placed = true
	g.uses[f]++
}

// Replace swaps the single-slot fragment at (x, y) for f, reloading its terrain.
func (g *Grid) Replace(x, y int, f *ruleset.Fragment) (bool, error) {
	c := g.At(x, y)
	if c == nil || c.State != CellOrigin || c.Fragment.SlotsX() != 1 || c.Fragment.SlotsY() != 1 {
		return false, nil
	}
	if f.SlotsX() != 1 || f.SlotsY() != 1 {
		return false, nil
	}
	g.release(x, y)
	return g.Place(x, y, f)
}

// release frees the fragment whose origin is (x, y) and blanks its tiles.
func (g *Grid) release(x, y int) int {
	origin := g.At(x, y)
	f := origin.Fragment
	sx, sy := f.SlotsX(), f.SlotsY()
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			c := g.At(i, j)
			landing := c.Landing
			*c = Cell{Segment: -1, Landing: landing}
		}
	}
	for z := 0; z < g.b.SizeZ; z++ {
		for ty := y * slot; ty < (y+sy)*slot; ty++ {
			for tx := x * slot; tx < (x+sx)*slot; tx++ {
				g.b.Tile(battle.Position{X: tx, Y: ty, Z: z}).ClearParts()
			}
		}
	}
	g.free += sx * sy
	g.uses[f]--
	return sx * sy
}

// ClearRegion removes every placed fragment whose origin lies in one of the
// rectangles (the whole grid when none are given) and that matches the group
// or catalog index filters. It reports whether anything was removed.
func (g *Grid) ClearRegion(rects []ruleset.Rect, groups, blocks []int) bool {
	if len(rects) == 0 {
		rects = []ruleset.Rect{{W: g.w, H: g.h}}
	}
	removed := false
	for _, r := range rects {
		for j := r.Y; j < r.Y+r.H; j++ {
			for i := r.X; i < r.X+r.W; i++ {
				c := g.At(i, j)
				if c == nil || c.State != CellOrigin || !matches(c.Fragment, groups, blocks) {
					continue
				}
				g.release(i, j)
				removed = true
			}
		}
	}
	return removed
}

func matches(f *ruleset.Fragment, groups, blocks []int) bool {
	if len(groups) == 0 && len(blocks) == 0 {
		return true
	}
	for _, gr := range groups {
		if f.InGroup(gr) {
			return true
		}
	}
	for _, b := range blocks {
		if f.Index == b {
			return true
		}
	}
	return false
}

// Reserve marks slots as a transport landing zone.
func (g *Grid) Reserve(x, y, sx, sy int) {
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			if c := g.At(i, j); c != nil {
				c.Landing = true
			}
		}
	}
}

// Reserved reports whether any slot of the rectangle belongs to a landing zone.
func (g *Grid) Reserved(x, y, sx, sy int) bool {
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			if c := g.At(i, j); c != nil && c.Landing {
				return true
			}
		}
	}
	return false
}

// DrillTunnel cuts openings through fragment borders along the drill markers.
// Cells outside rects (when given) and dirt fragments are left alone.
func (g *Grid) DrillTunnel(t *ruleset.TunnelDef, rects []ruleset.Rect, dir ruleset.Direction) {
	if t == nil || t.Level < 0 || t.Level >= g.b.SizeZ {
		return
	}
	for j := 0; j < g.h; j++ {
		for i := 0; i < g.w; i++ {
			c := g.At(i, j)
			if c.State == CellEmpty || c.Fragment.InGroup(ruleset.GroupDirt) || !inRects(rects, i, j) {
				continue
			}
			if dir != ruleset.DirVertical && (c.Drill == DrillEast || c.Drill == DrillBoth) && g.occupied(i+1, j) {
				g.drillEast(i, j, t)
			}
			if dir != ruleset.DirHorizontal && (c.Drill == DrillSouth || c.Drill == DrillBoth) && g.occupied(i, j+1) {
				g.drillSouth(i, j, t)
			}
		}
	}
}

func (g *Grid) occupied(x, y int) bool {
	c := g.At(x, y)
	return c != nil && c.State != CellEmpty
}

func inRects(rects []ruleset.Rect, x, y int) bool {
	if len(rects) == 0 {
		return true
	}
	for _, r := range rects {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}

func tunnelSpan(t *ruleset.TunnelDef) (from, to int) {
	from = t.Offset
	if from < 0 || from >= slot {
		from = 0
	}
	to = slot
	if t.Width > 0 && from+t.Width < slot {
		to = from + t.Width
	}
	return from, to
}

func (g *Grid) part(t *ruleset.TunnelDef, name string) (battle.PartRef, bool) {
	p, ok := t.Replacements[name]
	if !ok {
		return battle.NoPart, false
	}
	return battle.PartRef{DataSet: p.Set, Index: p.Index}, true
}

func (g *Grid) tile(x, y, z int) *battle.Tile {
	return g.b.Tile(battle.Position{X: x, Y: y, Z: z})
}

// drillEast opens the border between slot (i, j) and its eastern neighbour.
func (g *Grid) drillEast(i, j int, t *ruleset.TunnelDef) {
	from, to := tunnelSpan(t)
	nearX, farX := i*slot+slot-1, (i+1)*slot
	floor, hasFloor := g.part(t, "floor")
	for k := from; k < to; k++ {
		y := j*slot + k
		near, far := g.tile(nearX, y, t.Level), g.tile(farX, y, t.Level)
		near.ClearPart(battle.PartObject)
		far.ClearPart(battle.PartObject)
		far.ClearPart(battle.PartWestWall)
		if hasFloor {
			near.SetPart(battle.PartFloor, floor)
			far.SetPart(battle.PartFloor, floor)
		}
	}
	if wall, ok := g.part(t, "northWall"); ok {
		for _, x := range []int{nearX, farX} {
			g.tile(x, j*slot+from, t.Level).SetPart(battle.PartNorthWall, wall)
			if to < slot {
				g.tile(x, j*slot+to, t.Level).SetPart(battle.PartNorthWall, wall)
			}
		}
	}
	if corner, ok := g.part(t, "corner"); ok && to < slot {
		g.tile(farX, j*slot+to, t.Level).SetPart(battle.PartObject, corner)
	}
}

// drillSouth opens the border between slot (i, j) and its southern neighbour.
func (g *Grid) drillSouth(i, j int, t *ruleset.TunnelDef) {
	from, to := tunnelSpan(t)
	nearY, farY := j*slot+slot-1, (j+1)*slot
	floor, hasFloor := g.part(t, "floor")
	for k := from; k < to; k++ {
		x := i*slot + k
		near, far := g.tile(x, nearY, t.Level), g.tile(x, farY, t.Level)
		near.ClearPart(battle.PartObject)
		far.ClearPart(battle.PartObject)
		far.ClearPart(battle.PartNorthWall)
		if hasFloor {
			near.SetPart(battle.PartFloor, floor)
			far.SetPart(battle.PartFloor, floor)
		}
	}
	if wall, ok := g.part(t, "westWall"); ok {
		for _, y := range []int{nearY, farY} {
			g.tile(i*slot+from, y, t.Level).SetPart(battle.PartWestWall, wall)
			if to < slot {
				g.tile(i*slot+to, y, t.Level).SetPart(battle.PartWestWall, wall)
			}
		}
	}
	if corner, ok := g.part(t, "corner"); ok && to < slot {
		g.tile(i*slot+to, farY, t.Level).SetPart(battle.PartObject, corner)
	}
}

// Origin is a placed fragment, listed in row order.
type Origin struct {
	X, Y     int
	Fragment *ruleset.Fragment
	Height   int
}

func (g *Grid) Origins() []Origin {
	var out []Origin
	for j := 0; j < g.h; j++ {
		for i := 0; i < g.w; i++ {
			c := g.At(i, j)
			if c.State == CellOrigin {
				out = append(out, Origin{X: i, Y: j, Fragment: c.Fragment, Height: c.Height})
			}
		}
	}
	return out
}

// SetSegment stamps a segment id onto every slot of the fragment with origin (x, y).
func (g *Grid) SetSegment(x, y, segment int) {
	c := g.At(x, y)
	for j := y; j < y+c.Fragment.SlotsY(); j++ {
		for i := x; i < x+c.Fragment.SlotsX(); i++ {
			g.At(i, j).Segment = segment
		}
	}
}

// SegmentAt is the segment covering slot (x, y); ok is false off the grid.
func (g *Grid) SegmentAt(x, y int) (int, bool) {
	c := g.At(x, y)
	if c == nil {
		return -1, false
	}
	return c.Segment, true
}

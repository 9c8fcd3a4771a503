package mapgen

import (
	"strconv"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/io/mapcodec"
	"skirmish.dev/internal/sim/battle/io/routecodec"
	"skirmish.dev/internal/sim/ruleset"
)

// BlockLoad describes where and how a fragment's terrain is written.
type BlockLoad struct {
	Fragment *ruleset.Fragment
	Origin   battle.Position

	// DataSetOffset is the battle data-set index of the fragment terrain's first set.
	DataSetOffset int
	// Overlay marks craft and UFO fragments laid over already loaded terrain.
	Overlay   bool
	RevealAll bool
}

func readBlock(src Source, f *ruleset.Fragment) (*mapcodec.Block, error) {
	rc, err := src.OpenMap(f.Name)
	if err != nil {
		return nil, battle.FormatWrap("load block", err, "open terrain file for %s", f.Name)
	}
	defer rc.Close()
	blk, err := mapcodec.Read(rc)
	if err != nil {
		return nil, battle.FormatWrap("load block", err, "invalid terrain file for %s", f.Name)
	}
	return blk, nil
}

// LoadBlock reads a fragment's terrain file into the battle's tiles and
// returns the fragment height in levels.
func LoadBlock(b *battle.Battle, src Source, l BlockLoad) (int, error) {
	blk, err := readBlock(src, l.Fragment)
	if err != nil {
		return 0, err
	}
	if err := applyBlock(b, blk, l); err != nil {
		return 0, err
	}
	return blk.SizeZ, nil
}

func applyBlock(b *battle.Battle, blk *mapcodec.Block, l BlockLoad) error {
	f := l.Fragment
	if blk.SizeZ+l.Origin.Z > b.SizeZ {
		return battle.Formatf("load block", "height of %s is %d at level %d, map height is %d", f.Name, blk.SizeZ, l.Origin.Z, b.SizeZ)
	}
	if blk.SizeX != f.SizeX || blk.SizeY != f.SizeY {
		return battle.Formatf("load block", "%s is %dx%d on disk, catalog declares %dx%d", f.Name, blk.SizeX, blk.SizeY, f.SizeX, f.SizeY)
	}
	if l.Origin.X+blk.SizeX > b.SizeX || l.Origin.Y+blk.SizeY > b.SizeY {
		return battle.Formatf("load block", "%s at (%d,%d) does not fit a %dx%d map", f.Name, l.Origin.X, l.Origin.Y, b.SizeX, b.SizeY)
	}

	clearUnder(b, blk, l)

	for i, cell := range blk.Cells {
		x, y, z := blk.CellPos(i)
		t := b.Tile(l.Origin.Add(battle.Position{X: x, Y: y, Z: z}))
		for part := battle.PartFloor; part < battle.PartCount; part++ {
			v := int(cell[part])
			if v == 0 {
				continue
			}
			ref, ok := resolvePart(f.Terrain, v, l.DataSetOffset)
			if !ok {
				return battle.Formatf("load block", "%s: part index %d at (%d,%d,%d) is outside the terrain's data sets", f.Name, v, x, y, z)
			}
			t.SetPart(part, ref)
		}
		if l.RevealAll || f.FloorRevealed(z) {
			t.Discovered = true
		}
	}
	return nil
}

// clearUnder blanks terrain that would poke through the fragment. Overlays
// keep the ground floor of whatever lies below them.
func clearUnder(b *battle.Battle, blk *mapcodec.Block, l BlockLoad) {
	zFrom, zTo := 0, b.SizeZ
	if l.Overlay {
		zFrom, zTo = l.Origin.Z, l.Origin.Z+blk.SizeZ
	}
	for z := zFrom; z < zTo; z++ {
		for y := 0; y < blk.SizeY; y++ {
			for x := 0; x < blk.SizeX; x++ {
				t := b.Tile(battle.Position{X: l.Origin.X + x, Y: l.Origin.Y + y, Z: z})
				if t == nil {
					continue
				}
				if l.Overlay && z == l.Origin.Z {
					t.ClearPart(battle.PartWestWall)
					t.ClearPart(battle.PartNorthWall)
					t.ClearPart(battle.PartObject)
					continue
				}
				t.ClearParts()
			}
		}
	}
}

// resolvePart walks the terrain's data sets in order; a raw index counts
// across all of them.
func resolvePart(t *ruleset.Terrain, raw, offset int) (battle.PartRef, bool) {
	for i, ds := range t.DataSets {
		if raw < ds.Size {
			return battle.PartRef{DataSet: offset + i, Index: raw}, true
		}
		raw -= ds.Size
	}
	return battle.NoPart, false
}

func dataSetsOf(t *ruleset.Terrain) []battle.DataSet {
	out := make([]battle.DataSet, 0, len(t.DataSets))
	for _, d := range t.DataSets {
		ds := battle.DataSet{
			Name:     d.Name,
			Size:     d.Size,
			Specials: map[int]battle.SpecialType{},
			Blocking: map[int]bool{},
		}
		for k, v := range d.Specials {
			idx, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			ds.Specials[idx] = battle.ParseSpecial(v)
		}
		for _, idx := range d.Blocking {
			ds.Blocking[idx] = true
		}
		out = append(out, ds)
	}
	return out
}

// RouteLoad describes where a fragment's route nodes land.
type RouteLoad struct {
	Fragment *ruleset.Fragment
	Origin   battle.Position
	Height   int
	Segment  int
}

type RouteResult struct {
	Added int
	// Invalid holds file record indices dropped because they lie outside the footprint.
	Invalid []int
}

// LoadRoutes appends a fragment's route nodes to the battle. Records outside
// the fragment footprint are dropped and later ids are compacted over them;
// links to dropped records become unused.
func LoadRoutes(b *battle.Battle, src Source, l RouteLoad) (RouteResult, error) {
	var res RouteResult
	f := l.Fragment
	rc, err := src.OpenRoute(f.Name)
	if err != nil {
		return res, battle.FormatWrap("load routes", err, "open route file for %s", f.Name)
	}
	defer rc.Close()
	recs, err := routecodec.Read(rc)
	if err != nil {
		return res, battle.FormatWrap("load routes", err, "invalid route file for %s", f.Name)
	}

	offset := len(b.Nodes)
	compact := make([]int, len(recs))
	next := 0
	for i, r := range recs {
		if r.X < f.SizeX && r.Y < f.SizeY && r.Z < l.Height {
			compact[i] = next
			next++
			continue
		}
		compact[i] = -1
		res.Invalid = append(res.Invalid, i)
		b.Warnf("%s: route node %d at (%d,%d,%d) is outside the %dx%dx%d footprint", f.Name, i, r.X, r.Y, r.Z, f.SizeX, f.SizeY, l.Height)
	}

	for i, r := range recs {
		if compact[i] < 0 {
			continue
		}
		n := &battle.Node{
			ID:          offset + compact[i],
			Pos:         l.Origin.Add(battle.Position{X: r.X, Y: r.Y, Z: l.Height - 1 - r.Z}),
			Segment:     l.Segment,
			Type:        int(r.Type),
			Rank:        int(r.Rank),
			Patrol:      int(r.Patrol),
			Attack:      int(r.Attack),
			SpawnWeight: int(r.SpawnWeight),
		}
		for j, v := range r.Links {
			if v > routecodec.MaxNodeIndex {
				n.Links[j] = routecodec.DecodeLink(v, 0)
				continue
			}
			if int(v) >= len(recs) || compact[v] < 0 {
				n.Links[j] = battle.UnusedLink
				continue
			}
			n.Links[j] = battle.NodeLink(offset + compact[v])
		}
		b.Nodes = append(b.Nodes, n)
		res.Added++
	}
	return res, nil
}

package mapgen

import (
	"log"
	"sort"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type Generator struct {
	Rules  *ruleset.Ruleset
	Source Source
	Tuning tuning.Tuning
	Log    *log.Logger
}

// Request selects what to generate. Empty Terrain picks one of the
// deployment's terrains at random.
type Request struct {
	Deployment string
	Terrain    string
	Craft      string
	UFO        string
}

// PlacedOverlay is a transport fragment after its terrain and routes were loaded.
type PlacedOverlay struct {
	Overlay
	Origin  battle.Position
	Height  int
	Segment int
}

// Battlefield is the result of map generation, ready for deployment.
type Battlefield struct {
	Battle     *battle.Battle
	Grid       *Grid
	Deployment *ruleset.Deployment
	Terrain    *ruleset.Terrain
	Script     string
	Craft      *ruleset.Transport
	UFO        *ruleset.Transport
	Overlays   []PlacedOverlay
	Directives []DirectiveResult
	Links      int
}

// CraftOverlay returns the placed craft, if any.
func (f *Battlefield) CraftOverlay() *PlacedOverlay {
	for i := range f.Overlays {
		if f.Overlays[i].Transport == f.Craft && f.Craft != nil {
			return &f.Overlays[i]
		}
	}
	return nil
}

// Segments is the slot segment map the linker sees: overlay segments cover
// the ground segments beneath them.
func (f *Battlefield) Segments() SegmentMap {
	return overlaySegments{grid: f.Grid, overlays: f.Overlays}
}

// Generate runs the whole map pipeline: script, overlays, routes, node
// linking and fixed fragment items.
func (g *Generator) Generate(req Request, rng *battle.RNG) (*Battlefield, error) {
	dep := g.Rules.Deployments[req.Deployment]
	if dep == nil {
		return nil, battle.Configf("generate", "unknown deployment %s", req.Deployment)
	}
	terrain, err := g.pickTerrain(dep, req.Terrain, rng)
	if err != nil {
		return nil, err
	}
	craft, err := g.transport(req.Craft, "craft")
	if err != nil {
		return nil, err
	}
	ufo, err := g.transport(req.UFO, "ufo")
	if err != nil {
		return nil, err
	}
	scriptID, script, ok := g.Rules.ScriptFor(dep, terrain)
	if !ok {
		return nil, battle.Configf("generate", "no script %q for deployment %s on terrain %s", scriptID, dep.ID, terrain.ID)
	}

	b := &battle.Battle{Log: g.Log}
	b.AddDataSets(dataSetsOf(terrain))
	grid := NewGrid(b, g.Source, terrain)
	grid.RevealAll = dep.BaseDefense
	grid.Reset(dep.Width, dep.Length, dep.Height)

	in := &Interpreter{
		Grid:        grid,
		RNG:         rng,
		Craft:       craft,
		UFO:         ufo,
		Transports:  g.Rules.Transports,
		LineRetries: g.Tuning.LineRetries,
	}
	if err := in.Run(script); err != nil {
		return nil, err
	}
	if grid.Free() > 0 {
		return nil, battle.Configf("generate", "script %s left %d of %d slots empty", scriptID, grid.Free(), grid.Width()*grid.Height())
	}
	if craft != nil && !in.CraftPlaced {
		return nil, battle.Placementf("generate", "no landing zone for craft %s", craft.ID)
	}

	bf := &Battlefield{
		Battle:     b,
		Grid:       grid,
		Deployment: dep,
		Terrain:    terrain,
		Script:     scriptID,
		Craft:      craft,
		UFO:        ufo,
		Directives: in.Results,
	}

	origins := grid.Origins()
	for seg, o := range origins {
		grid.SetSegment(o.X, o.Y, seg)
		origin := battle.Position{X: o.X * slot, Y: o.Y * slot}
		if _, err := LoadRoutes(b, g.Source, RouteLoad{Fragment: o.Fragment, Origin: origin, Height: o.Height, Segment: seg}); err != nil {
			return nil, err
		}
	}
	for k, ov := range in.Overlays {
		placed, err := g.loadOverlay(bf, ov, len(origins)+k)
		if err != nil {
			return nil, err
		}
		bf.Overlays = append(bf.Overlays, placed)
	}
	bf.Links = LinkNodes(b.Nodes, bf.Segments())

	for _, o := range origins {
		g.dropFixedItems(b, o.Fragment, battle.Position{X: o.X * slot, Y: o.Y * slot})
	}
	for _, ov := range bf.Overlays {
		g.dropFixedItems(b, ov.Fragment, ov.Origin)
	}

	b.Logf("generated %s on %s with script %s: %d fragments, %d overlays, %d nodes, %d link rewrites",
		dep.ID, terrain.ID, scriptID, len(origins), len(bf.Overlays), len(b.Nodes), bf.Links)
	return bf, nil
}

func (g *Generator) pickTerrain(dep *ruleset.Deployment, id string, rng *battle.RNG) (*ruleset.Terrain, error) {
	if id == "" {
		id = dep.Terrains[rng.Generate(0, len(dep.Terrains)-1)]
	}
	t := g.Rules.Terrains[id]
	if t == nil {
		return nil, battle.Configf("generate", "unknown terrain %s", id)
	}
	return t, nil
}

func (g *Generator) transport(id, kind string) (*ruleset.Transport, error) {
	if id == "" {
		return nil, nil
	}
	tr := g.Rules.Transports[id]
	if tr == nil {
		return nil, battle.Configf("generate", "unknown %s %s", kind, id)
	}
	if tr.Kind != kind {
		return nil, battle.Configf("generate", "transport %s is a %s, not a %s", id, tr.Kind, kind)
	}
	return tr, nil
}

// loadOverlay lays a transport fragment one level below the top of the
// tallest ground fragment under it, so it sits on the ground surface.
func (g *Generator) loadOverlay(bf *Battlefield, ov Overlay, segment int) (PlacedOverlay, error) {
	b := bf.Battle
	blk, err := readBlock(g.Source, ov.Fragment)
	if err != nil {
		return PlacedOverlay{}, err
	}
	ground := 0
	for j := ov.Y; j < ov.Y+ov.Fragment.SlotsY(); j++ {
		for i := ov.X; i < ov.X+ov.Fragment.SlotsX(); i++ {
			if c := bf.Grid.Owner(i, j); c != nil && c.Height > ground {
				ground = c.Height
			}
		}
	}
	z := ground - 1
	if z > b.SizeZ-blk.SizeZ {
		z = b.SizeZ - blk.SizeZ
	}
	if z < 0 {
		z = 0
	}
	origin := battle.Position{X: ov.X * slot, Y: ov.Y * slot, Z: z}
	offset := b.AddDataSets(dataSetsOf(&ov.Transport.Terrain))
	err = applyBlock(b, blk, BlockLoad{
		Fragment:      ov.Fragment,
		Origin:        origin,
		DataSetOffset: offset,
		Overlay:       true,
		RevealAll:     bf.Deployment.BaseDefense || ov.Transport.Kind == "craft",
	})
	if err != nil {
		return PlacedOverlay{}, err
	}
	if _, err := LoadRoutes(b, g.Source, RouteLoad{Fragment: ov.Fragment, Origin: origin, Height: blk.SizeZ, Segment: segment}); err != nil {
		return PlacedOverlay{}, err
	}
	return PlacedOverlay{Overlay: ov, Origin: origin, Height: blk.SizeZ, Segment: segment}, nil
}

// dropFixedItems puts a fragment's catalog items on the ground.
func (g *Generator) dropFixedItems(b *battle.Battle, f *ruleset.Fragment, origin battle.Position) {
	types := make([]string, 0, len(f.Items))
	for t := range f.Items {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, typ := range types {
		if _, ok := g.Rules.Items[typ]; !ok {
			b.Warnf("%s: unknown fixed item %s", f.Name, typ)
			continue
		}
		for _, p := range f.Items[typ] {
			t := b.Tile(origin.Add(battle.Position{X: p[0], Y: p[1], Z: p[2]}))
			if t == nil {
				b.Warnf("%s: fixed item %s at (%d,%d,%d) is off the map", f.Name, typ, p[0], p[1], p[2])
				continue
			}
			b.DropItem(b.NewItem(typ), t)
		}
	}
}

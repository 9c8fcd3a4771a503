// Package battletest builds small rulesets and in-memory terrain data for
// generation and deployment tests.
package battletest

import (
	"bytes"
	"testing"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/io/mapcodec"
	"skirmish.dev/internal/sim/battle/io/routecodec"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

// Raw part indices of the fixture terrain's palette. The first data set holds
// floors, the second walls and objects.
const (
	Floor      = 1
	StartFloor = 2
	ExitFloor  = 3
	Wall       = 5
	Crate      = 7
)

const Terrain = "plain"

// Fixture collects a ruleset and the binary files it refers to.
type Fixture struct {
	T      testing.TB
	Rules  *ruleset.Ruleset
	Source mapgen.MemSource
	Tuning tuning.Tuning
}

// New returns a fixture with one empty terrain, a few armors, items, units
// and a two-rank alien race. Fragments and scripts are added by the test.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		T:      t,
		Rules:  ruleset.New(),
		Source: mapgen.MemSource{},
		Tuning: tuning.Defaults(),
	}
	f.Rules.Terrains[Terrain] = &ruleset.Terrain{ID: Terrain, DataSets: Palette()}

	for _, a := range []*ruleset.ArmorRule{
		{ID: "overalls", Size: 1},
		{ID: "hull", Size: 2},
		{ID: "anti_grav", Size: 1, Flying: true},
	} {
		f.Rules.Armors[a.ID] = a
	}
	for _, it := range []*ruleset.ItemRule{
		{ID: "RIFLE", Kind: ruleset.KindFirearm, CompatibleAmmo: []string{"RIFLE_CLIP"}, Recoverable: true},
		{ID: "RIFLE_CLIP", Kind: ruleset.KindAmmo, ClipSize: 20, Recoverable: true},
		{ID: "PISTOL", Kind: ruleset.KindFirearm, CompatibleAmmo: []string{"PISTOL_CLIP"}, Recoverable: true},
		{ID: "PISTOL_CLIP", Kind: ruleset.KindAmmo, ClipSize: 12, Recoverable: true},
		{ID: "GRENADE", Kind: ruleset.KindGrenade, Recoverable: true},
		{ID: "MEDKIT", Kind: ruleset.KindOther, Recoverable: true},
		{ID: "PLASMA_PISTOL", Kind: ruleset.KindFirearm, CompatibleAmmo: []string{"PLASMA_CLIP"}, Recoverable: true, Requires: []string{"PLASMA_RESEARCH"}},
		{ID: "PLASMA_CLIP", Kind: ruleset.KindAmmo, ClipSize: 26, Recoverable: true, Requires: []string{"PLASMA_RESEARCH"}},
		{ID: "TANK_CANNON", Kind: ruleset.KindFirearm, CompatibleAmmo: []string{"CANNON_SHELLS"}, Fixed: true, VehicleUnit: "TANK"},
		{ID: "CANNON_SHELLS", Kind: ruleset.KindAmmo, ClipSize: 30},
		{ID: "CHRYSALID_WEAPON", Kind: ruleset.KindMelee, Fixed: true},
		{ID: "ALIEN_CORPSE", Kind: ruleset.KindCorpse},
		{ID: "ALIEN_ALLOY", Kind: ruleset.KindOther, Recoverable: true},
	} {
		f.Rules.Items[it.ID] = it
	}
	for _, u := range []*ruleset.UnitRule{
		{ID: "SOLDIER", Armor: "overalls"},
		{ID: "TANK", Armor: "hull"},
		{ID: "SECTOID_SOLDIER", Race: "STR_SECTOID", Armor: "overalls"},
		{ID: "SECTOID_LEADER", Race: "STR_SECTOID", Armor: "overalls"},
		{ID: "CHRYSALID", Race: "STR_CHRYSALID", Armor: "overalls", LivingWeapon: true},
		{ID: "FLOATER", Race: "STR_FLOATER", Armor: "anti_grav"},
		{ID: "CIVILIAN_M", Armor: "overalls"},
		{ID: "CIVILIAN_F", Armor: "overalls"},
	} {
		f.Rules.Units[u.ID] = u
	}
	f.Rules.Races["STR_SECTOID"] = &ruleset.RaceRule{
		ID:      "STR_SECTOID",
		Members: []string{"SECTOID_LEADER", "SECTOID_LEADER", "SECTOID_SOLDIER", "SECTOID_SOLDIER", "SECTOID_SOLDIER", "SECTOID_SOLDIER", "SECTOID_SOLDIER", "SECTOID_SOLDIER"},
	}
	f.Rules.Races["STR_CHRYSALID"] = &ruleset.RaceRule{
		ID:      "STR_CHRYSALID",
		Members: []string{"CHRYSALID", "CHRYSALID", "CHRYSALID", "CHRYSALID", "CHRYSALID", "CHRYSALID", "CHRYSALID", "CHRYSALID"},
	}
	return f
}

// Palette is the fixture data-set list: floors (index 2 start, 3 exit) and
// walls/objects (index 3, raw 7, blocks movement).
func Palette() []ruleset.DataSetDef {
	return []ruleset.DataSetDef{
		{Name: "floors", Size: 4, Specials: map[string]string{"2": "start", "3": "exit"}},
		{Name: "walls", Size: 4, Blocking: []int{3}},
	}
}

// TerrainRule returns the fixture terrain.
func (f *Fixture) TerrainRule() *ruleset.Terrain { return f.Rules.Terrains[Terrain] }

// AddFragment appends a catalog entry to the fixture terrain and writes a
// terrain file with the given floor on the ground level and a route file
// with one scout node in the middle of every slot, edges open on all sides.
func (f *Fixture) AddFragment(name string, sx, sy, sz int, floor uint8, groups ...int) *ruleset.Fragment {
	f.T.Helper()
	frag := &ruleset.Fragment{Name: name, SizeX: sx * ruleset.SlotSize, SizeY: sy * ruleset.SlotSize, SizeZ: sz, Groups: groups}
	t := f.TerrainRule()
	frag.Index = len(t.Fragments)
	frag.Terrain = t
	t.Fragments = append(t.Fragments, frag)
	f.WriteMap(name, GroundBlock(frag.SizeX, frag.SizeY, sz, floor))
	f.WriteRoutes(name, SlotNodes(sx, sy, sz, battle.RankScout, 5))
	return frag
}

// GroundBlock is a terrain block with floor on every ground cell and nothing above.
func GroundBlock(x, y, z int, floor uint8) *mapcodec.Block {
	b := &mapcodec.Block{SizeX: x, SizeY: y, SizeZ: z}
	b.Cells = make([][mapcodec.RecordSize]uint8, x*y*z)
	for i := range b.Cells {
		if _, _, cz := b.CellPos(i); cz == 0 {
			b.Cells[i][battle.PartFloor] = floor
		}
	}
	return b
}

// SlotNodes builds one ground-level node per 10x10 slot at the slot centre.
// Nodes inside the fragment are chained east and south; border slots carry
// edge sentinels.
func SlotNodes(sx, sy, sz, rank int, weight uint8) []routecodec.Record {
	var recs []routecodec.Record
	idx := func(i, j int) uint8 { return uint8(j*sx + i) }
	for j := 0; j < sy; j++ {
		for i := 0; i < sx; i++ {
			r := routecodec.Record{
				X:           i*ruleset.SlotSize + 5,
				Y:           j*ruleset.SlotSize + 5,
				Z:           sz - 1,
				Rank:        uint8(rank),
				SpawnWeight: weight,
				Links:       routecodec.UnusedLinks(),
			}
			r.Links[0] = routecodec.SentinelWest
			if i > 0 {
				r.Links[0] = idx(i-1, j)
			}
			r.Links[1] = routecodec.SentinelSouth
			if j < sy-1 {
				r.Links[1] = idx(i, j+1)
			}
			r.Links[2] = routecodec.SentinelEast
			if i < sx-1 {
				r.Links[2] = idx(i+1, j)
			}
			r.Links[3] = routecodec.SentinelNorth
			if j > 0 {
				r.Links[3] = idx(i, j-1)
			}
			recs = append(recs, r)
		}
	}
	return recs
}

func (f *Fixture) WriteMap(name string, b *mapcodec.Block) {
	f.T.Helper()
	var buf bytes.Buffer
	if err := mapcodec.Write(&buf, b); err != nil {
		f.T.Fatalf("write map %s: %v", name, err)
	}
	f.Source["maps/"+name+".map"] = buf.Bytes()
}

func (f *Fixture) WriteRoutes(name string, recs []routecodec.Record) {
	f.T.Helper()
	var buf bytes.Buffer
	if err := routecodec.Write(&buf, recs); err != nil {
		f.T.Fatalf("write routes %s: %v", name, err)
	}
	f.Source["routes/"+name+".rmp"] = buf.Bytes()
}

// AddTransport registers a one-fragment craft or UFO with a start-tile floor.
func (f *Fixture) AddTransport(id, kind string, sx, sy int, deployment [][4]int) *ruleset.Transport {
	f.T.Helper()
	name := id + "_hull"
	frag := &ruleset.Fragment{Name: name, SizeX: sx * ruleset.SlotSize, SizeY: sy * ruleset.SlotSize, SizeZ: 1}
	tr := &ruleset.Transport{
		ID:   id,
		Kind: kind,
		Terrain: ruleset.Terrain{
			ID:        id,
			DataSets:  Palette(),
			Fragments: []*ruleset.Fragment{frag},
		},
		Deployment: deployment,
	}
	frag.Terrain = &tr.Terrain
	f.Rules.Transports[id] = tr
	f.WriteMap(name, GroundBlock(frag.SizeX, frag.SizeY, 1, StartFloor))
	f.WriteRoutes(name, SlotNodes(sx, sy, 1, battle.RankScout, 0))
	return tr
}

func (f *Fixture) AddScript(id string, ds ...ruleset.Directive) {
	f.Rules.Scripts[id] = ds
}

// AddDeployment registers a deployment on the fixture terrain using script.
func (f *Fixture) AddDeployment(id, script string, slotsX, slotsY, levels int) *ruleset.Deployment {
	d := &ruleset.Deployment{
		ID:       id,
		Terrains: []string{Terrain},
		Script:   script,
		Width:    slotsX * ruleset.SlotSize,
		Length:   slotsY * ruleset.SlotSize,
		Height:   levels,
	}
	f.Rules.Deployments[id] = d
	return d
}

// Finalize validates the ruleset and fails the test on error.
func (f *Fixture) Finalize() {
	f.T.Helper()
	if err := f.Rules.Finalize(); err != nil {
		f.T.Fatalf("finalize ruleset: %v", err)
	}
}

func (f *Fixture) Generator() *mapgen.Generator {
	return &mapgen.Generator{Rules: f.Rules, Source: f.Source, Tuning: f.Tuning}
}

// Generate finalizes the ruleset and generates a deployment, failing the test on error.
func (f *Fixture) Generate(req mapgen.Request, seed int64) *mapgen.Battlefield {
	f.T.Helper()
	f.Finalize()
	bf, err := f.Generator().Generate(req, battle.NewRNG(seed))
	if err != nil {
		f.T.Fatalf("generate %s: %v", req.Deployment, err)
	}
	return bf
}

// Chance is a helper for Directive.ExecutionChance.
func Chance(p int) *int { return &p }

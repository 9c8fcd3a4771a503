package stage

import (
	"testing"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

func TestTablesAreExhaustive(t *testing.T) {
	if err := CheckTables(); err != nil {
		t.Fatal(err)
	}
	if got := len(AllUnitKeys()); got != 3*3*3*2*2 {
		t.Fatalf("unit keys: %d", got)
	}
}

func TestDecideUnit(t *testing.T) {
	cases := []struct {
		name string
		key  UnitKey
		want Carry
	}{
		{"standing full success", UnitKey{ClassPlayer, battle.StatusStanding, TileOther, true, false}, CarryNormal},
		{"standing on exit", UnitKey{ClassPlayer, battle.StatusStanding, TileExit, false, false}, CarryNormal},
		{"standing on start", UnitKey{ClassPlayer, battle.StatusStanding, TileStart, false, false}, CarryLatentStart},
		{"standing elsewhere", UnitKey{ClassPlayer, battle.StatusStanding, TileOther, false, false}, CarryLatent},
		{"dead even on success", UnitKey{ClassPlayer, battle.StatusDead, TileExit, true, true}, CarryLatent},
		{"unconscious carried", UnitKey{ClassPlayer, battle.StatusUnconscious, TileOther, false, true}, CarryLatentStart},
		{"unconscious on success", UnitKey{ClassPlayer, battle.StatusUnconscious, TileOther, true, false}, CarryLatentStart},
		{"unconscious on exit", UnitKey{ClassPlayer, battle.StatusUnconscious, TileExit, false, false}, CarryLatentStart},
		{"unconscious left behind", UnitKey{ClassPlayer, battle.StatusUnconscious, TileOther, false, false}, CarryLatent},
		{"hostile standing", UnitKey{ClassHostile, battle.StatusStanding, TileExit, true, false}, CarryLatent},
		{"civilian", UnitKey{ClassNeutral, battle.StatusStanding, TileStart, true, false}, CarryLatent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DecideUnit(tc.key)
			if !ok || got != tc.want {
				t.Fatalf("got %v ok=%v want %v", got, ok, tc.want)
			}
		})
	}
}

func TestDecideItem(t *testing.T) {
	cases := []struct {
		name string
		key  ItemKey
		want Bucket
	}{
		{"held by forwarded unit", ItemKey{true, TileOther, false, false}, BucketForwarded},
		{"on exit", ItemKey{false, TileExit, false, false}, BucketForwarded},
		{"unrecoverable on start", ItemKey{false, TileStart, false, true}, BucketDeletable},
		{"on start", ItemKey{false, TileStart, true, false}, BucketGuaranteed},
		{"field after success", ItemKey{false, TileOther, true, true}, BucketConditional},
		{"field after retreat", ItemKey{false, TileOther, true, false}, BucketDeletable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DecideItem(tc.key)
			if !ok || got != tc.want {
				t.Fatalf("got %v ok=%v want %v", got, ok, tc.want)
			}
		})
	}
}

const (
	floorPlain = 1
	floorStart = 2
	floorExit  = 3
)

// strip builds a 3x1 map: start, plain, exit.
func strip() *battle.Battle {
	b := battle.New(3, 1, 1)
	b.AddDataSets([]battle.DataSet{{
		Name:     "STRIP",
		Size:     4,
		Specials: map[int]battle.SpecialType{floorStart: battle.SpecialStart, floorExit: battle.SpecialExit},
	}})
	for x, f := range []int{floorStart, floorPlain, floorExit} {
		b.Tile(battle.Position{X: x}).SetPart(battle.PartFloor, battle.PartRef{DataSet: 0, Index: f})
	}
	return b
}

func addUnit(b *battle.Battle, f battle.Faction, s battle.Status, x int) *battle.Unit {
	u := &battle.Unit{ID: b.NextUnitID(), Faction: f, OriginalFaction: f, Status: s, Size: 1, Pos: battle.NoPosition}
	b.Units = append(b.Units, u)
	b.SetUnitPosition(u, battle.Position{X: x})
	return u
}

func planRules() *ruleset.Ruleset {
	return &ruleset.Ruleset{Items: map[string]*ruleset.ItemRule{
		"RIFLE":         {ID: "RIFLE", Kind: ruleset.KindFirearm, Recoverable: true, CompatibleAmmo: []string{"RIFLE_CLIP"}},
		"RIFLE_CLIP":    {ID: "RIFLE_CLIP", Kind: ruleset.KindAmmo, Recoverable: true},
		"PLASMA_PISTOL": {ID: "PLASMA_PISTOL", Kind: ruleset.KindFirearm, Recoverable: true, Requires: []string{"PLASMA"}},
		"CORPSE":        {ID: "CORPSE", Kind: ruleset.KindCorpse},
	}}
}

func TestPlan_BucketsAndCarries(t *testing.T) {
	b := strip()
	runner := addUnit(b, battle.FactionPlayer, battle.StatusStanding, 2)
	rear := addUnit(b, battle.FactionPlayer, battle.StatusStanding, 0)
	addUnit(b, battle.FactionHostile, battle.StatusStanding, 1)

	rifle := b.NewItem("RIFLE")
	clip := b.NewItem("RIFLE_CLIP")
	b.GiveItem(rifle, runner, battle.SlotRightHand, 0, 0)
	b.LoadAmmo(rifle, clip)

	onStart := b.NewItem("RIFLE_CLIP")
	b.DropItem(onStart, b.Tile(battle.Position{X: 0}))
	gated := b.NewItem("PLASMA_PISTOL")
	b.DropItem(gated, b.Tile(battle.Position{X: 0}))
	corpse := b.NewItem("CORPSE")
	b.DropItem(corpse, b.Tile(battle.Position{X: 1}))
	field := b.NewItem("RIFLE")
	b.DropItem(field, b.Tile(battle.Position{X: 1}))

	if FullSuccess(b) {
		t.Fatalf("a hostile is still standing")
	}
	p := &Planner{Rules: planRules(), Researched: map[string]bool{}}
	plan := p.Plan(b, false)

	if got := plan.UnitsWith(CarryNormal); len(got) != 1 || got[0] != runner {
		t.Fatalf("normal units: %+v", got)
	}
	if got := plan.UnitsWith(CarryLatentStart); len(got) != 1 || got[0] != rear {
		t.Fatalf("latent start units: %+v", got)
	}
	want := map[*battle.Item]Bucket{
		rifle:   BucketForwarded,
		clip:    BucketForwarded,
		onStart: BucketGuaranteed,
		gated:   BucketDeletable,
		corpse:  BucketDeletable,
		field:   BucketDeletable,
	}
	if len(plan.Items) != len(want) {
		t.Fatalf("items planned: %d", len(plan.Items))
	}
	for _, ic := range plan.Items {
		if ic.Bucket != want[ic.Item] {
			t.Errorf("%s #%d: got %v want %v", ic.Item.Type, ic.Item.ID, ic.Bucket, want[ic.Item])
		}
	}
	if loose := plan.Loose(); len(loose) != 0 {
		t.Fatalf("held items are not loose: %+v", loose)
	}
}

func TestPlan_FullSuccessRecoversField(t *testing.T) {
	b := strip()
	addUnit(b, battle.FactionPlayer, battle.StatusStanding, 1)
	addUnit(b, battle.FactionHostile, battle.StatusDead, 1)
	dropped := b.NewItem("RIFLE")
	b.DropItem(dropped, b.Tile(battle.Position{X: 1}))
	exit := b.NewItem("RIFLE_CLIP")
	b.DropItem(exit, b.Tile(battle.Position{X: 2}))

	if !FullSuccess(b) {
		t.Fatalf("no hostile standing")
	}
	plan := (&Planner{Rules: planRules()}).Plan(b, true)
	if got := plan.ItemsIn(BucketConditional); len(got) != 1 || got[0] != dropped {
		t.Fatalf("conditional: %+v", got)
	}
	if got := plan.Loose(); len(got) != 1 || got[0] != exit {
		t.Fatalf("loose: %+v", got)
	}
	if got := plan.UnitsWith(CarryNormal); len(got) != 1 {
		t.Fatalf("normal units: %d", len(got))
	}
}

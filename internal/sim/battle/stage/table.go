package stage

import (
	"fmt"

	"skirmish.dev/internal/sim/battle"
)

// wild matches any value of a row column.
const wild = -1

// UnitKey is everything the unit table looks at.
type UnitKey struct {
	Class       Class
	Status      battle.Status
	Tile        TileKind
	FullSuccess bool
	Carried     bool
}

type unitRow struct {
	class, status, tile, success, carried int
	carry                                 Carry
}

// Rows are matched top to bottom; the first match wins.
var unitRows = []unitRow{
	{int(ClassPlayer), int(battle.StatusStanding), wild, 1, wild, CarryNormal},
	{int(ClassPlayer), int(battle.StatusStanding), int(TileExit), wild, wild, CarryNormal},
	{int(ClassPlayer), int(battle.StatusStanding), int(TileStart), wild, wild, CarryLatentStart},
	{int(ClassPlayer), int(battle.StatusStanding), wild, wild, wild, CarryLatent},
	{int(ClassPlayer), int(battle.StatusDead), wild, wild, wild, CarryLatent},
	{int(ClassPlayer), int(battle.StatusUnconscious), wild, wild, 1, CarryLatentStart},
	{int(ClassPlayer), int(battle.StatusUnconscious), wild, 1, wild, CarryLatentStart},
	{int(ClassPlayer), int(battle.StatusUnconscious), int(TileStart), wild, wild, CarryLatentStart},
	{int(ClassPlayer), int(battle.StatusUnconscious), int(TileExit), wild, wild, CarryLatentStart},
	{int(ClassPlayer), int(battle.StatusUnconscious), wild, wild, wild, CarryLatent},
	{int(ClassHostile), wild, wild, wild, wild, CarryLatent},
	{int(ClassNeutral), wild, wild, wild, wild, CarryLatent},
}

// ItemKey is everything the item table looks at. HeldForward is set when the
// item's holder carries on into the next stage.
type ItemKey struct {
	HeldForward bool
	Tile        TileKind
	Recoverable bool
	FullSuccess bool
}

type itemRow struct {
	held, tile, recoverable, success int
	bucket                           Bucket
}

var itemRows = []itemRow{
	{1, wild, wild, wild, BucketForwarded},
	{wild, int(TileExit), wild, wild, BucketForwarded},
	{wild, wild, 0, wild, BucketDeletable},
	{wild, int(TileStart), wild, wild, BucketGuaranteed},
	{wild, wild, wild, 1, BucketConditional},
	{wild, wild, wild, wild, BucketDeletable},
}

func col(want, got int) bool { return want == wild || want == got }

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}

// DecideUnit returns the carry status for k. ok is false when no row matches.
func DecideUnit(k UnitKey) (Carry, bool) {
	for _, r := range unitRows {
		if col(r.class, int(k.Class)) && col(r.status, int(k.Status)) && col(r.tile, int(k.Tile)) &&
			col(r.success, bit(k.FullSuccess)) && col(r.carried, bit(k.Carried)) {
			return r.carry, true
		}
	}
	return CarryLatent, false
}

// DecideItem returns the bucket for k. ok is false when no row matches.
func DecideItem(k ItemKey) (Bucket, bool) {
	for _, r := range itemRows {
		if col(r.held, bit(k.HeldForward)) && col(r.tile, int(k.Tile)) &&
			col(r.recoverable, bit(k.Recoverable)) && col(r.success, bit(k.FullSuccess)) {
			return r.bucket, true
		}
	}
	return BucketDeletable, false
}

var (
	classes  = []Class{ClassPlayer, ClassHostile, ClassNeutral}
	statuses = []battle.Status{battle.StatusStanding, battle.StatusUnconscious, battle.StatusDead}
	tiles    = []TileKind{TileOther, TileStart, TileExit}
	bools    = []bool{false, true}
)

// AllUnitKeys enumerates every unit table input.
func AllUnitKeys() []UnitKey {
	var out []UnitKey
	for _, c := range classes {
		for _, s := range statuses {
			for _, t := range tiles {
				for _, fs := range bools {
					for _, carried := range bools {
						out = append(out, UnitKey{c, s, t, fs, carried})
					}
				}
			}
		}
	}
	return out
}

// AllItemKeys enumerates every item table input.
func AllItemKeys() []ItemKey {
	var out []ItemKey
	for _, held := range bools {
		for _, t := range tiles {
			for _, rec := range bools {
				for _, fs := range bools {
					out = append(out, ItemKey{held, t, rec, fs})
				}
			}
		}
	}
	return out
}

// CheckTables reports the first input neither table covers.
func CheckTables() error {
	for _, k := range AllUnitKeys() {
		if _, ok := DecideUnit(k); !ok {
			return fmt.Errorf("stage: unit table has no row for %+v", k)
		}
	}
	for _, k := range AllItemKeys() {
		if _, ok := DecideItem(k); !ok {
			return fmt.Errorf("stage: item table has no row for %+v", k)
		}
	}
	return nil
}

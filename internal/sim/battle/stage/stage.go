// Package stage decides what carries over when a multi-stage mission moves
// to its next map. It places nothing; the next deployment consumes the plan.
package stage

import (
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

type Carry int

const (
	// CarryNormal rejoins the next stage like a fresh unit.
	CarryNormal Carry = iota
	// CarryLatent is kept out of the next stage; its state stays for scoring.
	CarryLatent
	// CarryLatentStart reappears on the next stage's start area.
	CarryLatentStart
)

func (c Carry) String() string {
	switch c {
	case CarryNormal:
		return "normal"
	case CarryLatent:
		return "latent"
	}
	return "latentStart"
}

type Bucket int

const (
	BucketGuaranteed Bucket = iota
	BucketConditional
	BucketForwarded
	BucketDeletable
)

func (b Bucket) String() string {
	switch b {
	case BucketGuaranteed:
		return "guaranteed"
	case BucketConditional:
		return "conditional"
	case BucketForwarded:
		return "forwarded"
	}
	return "deletable"
}

type TileKind int

const (
	TileOther TileKind = iota
	TileStart
	TileExit
)

// Class groups units by the side they started the mission on.
type Class int

const (
	ClassPlayer Class = iota
	ClassHostile
	ClassNeutral
)

type UnitCarry struct {
	Unit  *battle.Unit
	Carry Carry
}

type ItemCarry struct {
	Item   *battle.Item
	Bucket Bucket
}

type Plan struct {
	FullSuccess bool
	Units       []UnitCarry
	Items       []ItemCarry
}

// FullSuccess reports whether no hostile is left standing.
func FullSuccess(b *battle.Battle) bool {
	for _, u := range b.UnitsOf(battle.FactionHostile) {
		if !u.Out() {
			return false
		}
	}
	return true
}

// Planner builds the carry plan for a finished stage. Researched lists the
// research topics the player owns; items gated behind others are not recovered.
type Planner struct {
	Rules      *ruleset.Ruleset
	Researched map[string]bool
}

func (p *Planner) Plan(b *battle.Battle, fullSuccess bool) *Plan {
	plan := &Plan{FullSuccess: fullSuccess}
	forward := map[*battle.Unit]bool{}
	for _, u := range b.Units {
		c, _ := DecideUnit(UnitKey{
			Class:       classOf(u),
			Status:      u.Status,
			Tile:        tileKind(b, u.Pos),
			FullSuccess: fullSuccess,
			Carried:     u.CarriedBy != 0,
		})
		forward[u] = c != CarryLatent
		plan.Units = append(plan.Units, UnitCarry{Unit: u, Carry: c})
	}
	for _, it := range b.Items {
		if it.InWeapon != nil {
			continue
		}
		k := ItemKey{FullSuccess: fullSuccess, Recoverable: p.recoverable(it)}
		pos := it.Pos
		if it.Owner != nil {
			k.HeldForward = forward[it.Owner]
			pos = it.Owner.Pos
		}
		k.Tile = tileKind(b, pos)
		bucket, _ := DecideItem(k)
		plan.Items = append(plan.Items, ItemCarry{Item: it, Bucket: bucket})
		if it.Ammo != nil {
			plan.Items = append(plan.Items, ItemCarry{Item: it.Ammo, Bucket: bucket})
		}
	}
	return plan
}

// UnitsWith lists the units given carry c, in battle order.
func (p *Plan) UnitsWith(c Carry) []*battle.Unit {
	var out []*battle.Unit
	for _, uc := range p.Units {
		if uc.Carry == c {
			out = append(out, uc.Unit)
		}
	}
	return out
}

// ItemsIn lists the items in bucket b. Loaded ammo is listed after its weapon.
func (p *Plan) ItemsIn(b Bucket) []*battle.Item {
	var out []*battle.Item
	for _, ic := range p.Items {
		if ic.Bucket == b {
			out = append(out, ic.Item)
		}
	}
	return out
}

// Loose returns the forwarded items that do not travel inside a carried
// unit's inventory or inside a weapon. These are staged on the next map.
func (p *Plan) Loose() []*battle.Item {
	forward := map[*battle.Unit]bool{}
	for _, uc := range p.Units {
		forward[uc.Unit] = uc.Carry != CarryLatent
	}
	var out []*battle.Item
	for _, ic := range p.Items {
		it := ic.Item
		if ic.Bucket != BucketForwarded || it.InWeapon != nil {
			continue
		}
		if it.Owner != nil && forward[it.Owner] {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (p *Planner) recoverable(it *battle.Item) bool {
	rule := p.Rules.Items[it.Type]
	if rule == nil || it.Fixed || rule.Fixed {
		return false
	}
	if rule.Kind == ruleset.KindCorpse && !rule.Recoverable {
		return false
	}
	for _, req := range rule.Requires {
		if !p.Researched[req] {
			return false
		}
	}
	return true
}

func classOf(u *battle.Unit) Class {
	switch u.OriginalFaction {
	case battle.FactionPlayer:
		return ClassPlayer
	case battle.FactionHostile:
		return ClassHostile
	}
	return ClassNeutral
}

func tileKind(b *battle.Battle, p battle.Position) TileKind {
	if !p.OnMap() {
		return TileOther
	}
	t := b.Tile(p)
	if t == nil {
		return TileOther
	}
	switch b.Special(t) {
	case battle.SpecialStart:
		return TileStart
	case battle.SpecialExit:
		return TileExit
	}
	return TileOther
}

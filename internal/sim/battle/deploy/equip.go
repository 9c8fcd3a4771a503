package deploy

import (
	"sort"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

// equip stages the pre-battle items on the equip tile and hands them out by
// soldier layout: other items first, then ammunition (loading the weapon at
// the layout slot when the layout names its ammo), then any weapon still on
// the ground is loaded from compatible ground ammunition.
func (r *run) equip(in Input) {
	t := r.b.EquipTile
	if t == nil {
		return
	}
	types := make([]string, 0, len(in.Roster.Items))
	for typ := range in.Roster.Items {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		for i := 0; i < in.Roster.Items[typ]; i++ {
			it, rule := r.newItem(typ)
			if it == nil {
				break
			}
			it.Player = true
			if rule.Kind == ruleset.KindAmmo {
				it.AmmoQty = rule.ClipSize
			}
			r.b.DropItem(it, t)
		}
	}
	for _, it := range in.Forwarded {
		r.adoptItem(it)
		r.b.DropItem(it, t)
	}

	soldiers := r.layoutOwners()
	for _, u := range soldiers {
		for _, li := range u.Layout {
			rule := r.Rules.Items[li.ItemType]
			if rule == nil || rule.Kind == ruleset.KindAmmo || u.ItemAt(li.Slot, li.X, li.Y) != nil {
				continue
			}
			if it := r.takeGround(t, li.ItemType); it != nil {
				r.b.GiveItem(it, u, li.Slot, li.X, li.Y)
			}
		}
	}
	for _, u := range soldiers {
		for _, li := range u.Layout {
			rule := r.Rules.Items[li.ItemType]
			if rule == nil {
				continue
			}
			if rule.Kind == ruleset.KindAmmo {
				if u.ItemAt(li.Slot, li.X, li.Y) != nil {
					continue
				}
				if it := r.takeGround(t, li.ItemType); it != nil {
					r.b.GiveItem(it, u, li.Slot, li.X, li.Y)
				}
				continue
			}
			if li.AmmoType == "" || !rule.Accepts(li.AmmoType) {
				continue
			}
			w := u.ItemAt(li.Slot, li.X, li.Y)
			if w == nil || w.Type != li.ItemType || w.Ammo != nil {
				continue
			}
			if a := r.takeGround(t, li.AmmoType); a != nil {
				r.b.LoadAmmo(w, a)
			}
		}
	}
	for _, w := range r.b.GroundItems(t) {
		rule := r.Rules.Items[w.Type]
		if rule == nil || !rule.Weapon() || len(rule.CompatibleAmmo) == 0 || w.Ammo != nil {
			continue
		}
		for _, a := range r.b.GroundItems(t) {
			if a.InWeapon == nil && a.Pos.OnMap() && rule.Accepts(a.Type) {
				r.b.LoadAmmo(w, a)
				break
			}
		}
	}
}

func (r *run) layoutOwners() []*battle.Unit {
	var out []*battle.Unit
	for _, u := range r.b.UnitsOf(battle.FactionPlayer) {
		if u.Origin == battle.OriginSoldier && !u.Out() && len(u.Layout) > 0 {
			out = append(out, u)
		}
	}
	return out
}

// takeGround returns the first loose item of a type on t.
func (r *run) takeGround(t *battle.Tile, typ string) *battle.Item {
	for _, it := range t.Items {
		if it.Type == typ && it.InWeapon == nil {
			return it
		}
	}
	return nil
}

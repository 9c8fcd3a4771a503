package deploy

import (
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

type craftSlot struct {
	pos  battle.Position
	dir  int
	used bool
}

type playerPlacer struct {
	*run
	slots  []craftSlot
	starts []battle.Position
	// mapless is set when no transport brought the squad, so route nodes may be used.
	mapless bool
}

func (r *run) players(in Input) error {
	p := &playerPlacer{run: r, mapless: r.bf.Craft == nil}
	if ov := r.bf.CraftOverlay(); ov != nil {
		for _, d := range ov.Transport.Deployment {
			p.slots = append(p.slots, craftSlot{pos: ov.Origin.Add(battle.Position{X: d[0], Y: d[1], Z: d[2]}), dir: d[3]})
		}
	}
	p.starts = r.startTiles()

	for _, c := range in.Carried {
		u := c.Unit
		r.adopt(u)
		var placed bool
		if c.StartOnly {
			placed = p.scan(u)
		} else {
			placed = p.place(u)
		}
		p.settle(u, placed)
	}

	for _, v := range in.Roster.Vehicles {
		rule := r.Rules.Items[v]
		if rule == nil || rule.VehicleUnit == "" {
			r.b.Warnf("item %s is not a vehicle", v)
			continue
		}
		u := r.newUnit(rule.VehicleUnit, battle.FactionPlayer, battle.OriginVehicle)
		if p.settle(u, p.place(u)) {
			r.mountVehicleWeapon(u, rule)
		}
	}
	for _, s := range in.Roster.Soldiers {
		if !r.assigned(s) {
			continue
		}
		u := r.newUnit(s.Type, battle.FactionPlayer, battle.OriginSoldier)
		u.SoldierID = s.ID
		u.Layout = s.Layout
		p.settle(u, p.place(u))
	}

	soldiers := 0
	for _, u := range r.b.UnitsOf(battle.FactionPlayer) {
		if u.Origin == battle.OriginSoldier {
			soldiers++
		}
	}
	if soldiers == 0 {
		return battle.Placementf("deploy", "no soldiers placed on %s", r.bf.Deployment.ID)
	}
	r.b.EquipTile = r.equipTile()
	return nil
}

// settle commits a placed unit or records it as dropped.
func (p *playerPlacer) settle(u *battle.Unit, placed bool) bool {
	if !placed {
		p.drop(u)
		return false
	}
	p.commit(u)
	p.report.Players++
	return true
}

// assigned filters soldiers by the mission's transport. Base defense takes everyone.
func (r *run) assigned(s Soldier) bool {
	if r.bf.Deployment.BaseDefense || r.bf.Craft == nil {
		return true
	}
	return s.Craft == r.bf.Craft.ID
}

// place tries the transport's declared slots, then a start-tile scan, then
// route nodes when there is no transport.
func (p *playerPlacer) place(u *battle.Unit) bool {
	if len(p.slots) > 0 {
		return p.declared(u)
	}
	if p.scan(u) {
		return true
	}
	if !p.mapless {
		return false
	}
	for _, rank := range []int{battle.RankPlayer, battle.RankScout} {
		if n := p.spawnNode(u, rank); n != nil && p.b.SetUnitPosition(u, n.Pos) {
			return true
		}
	}
	return p.placeNearFriend(u)
}

func (p *playerPlacer) declared(u *battle.Unit) bool {
	for i := range p.slots {
		s := &p.slots[i]
		if s.used || !p.allStart(u, s.pos) || !p.b.SetUnitPosition(u, s.pos) {
			continue
		}
		s.used = true
		u.Direction = s.dir
		return true
	}
	return false
}

// scan takes the first start tile, in map order, whose whole footprint is
// start-marked and free. Large units only use size-aligned tiles.
func (p *playerPlacer) scan(u *battle.Unit) bool {
	for _, pos := range p.starts {
		if u.Size > 1 && (pos.X%u.Size != 0 || pos.Y%u.Size != 0) {
			continue
		}
		if p.allStart(u, pos) && p.b.SetUnitPosition(u, pos) {
			return true
		}
	}
	return false
}

func (r *run) allStart(u *battle.Unit, pos battle.Position) bool {
	for dx := 0; dx < u.Size; dx++ {
		for dy := 0; dy < u.Size; dy++ {
			t := r.b.Tile(pos.Add(battle.Position{X: dx, Y: dy}))
			if t == nil || r.b.Special(t) != battle.SpecialStart {
				return false
			}
		}
	}
	return true
}

func (r *run) startTiles() []battle.Position {
	var out []battle.Position
	for i := range r.b.Tiles {
		t := &r.b.Tiles[i]
		if r.b.Special(t) == battle.SpecialStart {
			out = append(out, t.Pos)
		}
	}
	return out
}

// adopt moves a unit from a previous stage's battle into this one.
func (r *run) adopt(u *battle.Unit) {
	u.ID = r.b.NextUnitID()
	u.Pos = battle.NoPosition
	u.CarriedBy = 0
	for _, it := range u.Inventory {
		r.adoptItem(it)
	}
}

func (r *run) adoptItem(it *battle.Item) {
	it.ID = r.b.NextItemID()
	it.Pos = battle.NoPosition
	r.b.Items = append(r.b.Items, it)
	if it.Ammo != nil {
		r.adoptItem(it.Ammo)
	}
}

// mountVehicleWeapon gives a vehicle its fixed weapon, loaded with the first compatible ammo.
func (r *run) mountVehicleWeapon(u *battle.Unit, rule *ruleset.ItemRule) {
	w := r.b.NewItem(rule.ID)
	w.Fixed = true
	w.Player = true
	r.b.GiveItem(w, u, battle.SlotRightHand, 0, 0)
	if len(rule.CompatibleAmmo) == 0 {
		return
	}
	ammo, _ := r.newItem(rule.CompatibleAmmo[0])
	if ammo == nil {
		return
	}
	ammo.Player = true
	ammo.AmmoQty = r.clip(ammo.Type)
	r.b.LoadAmmo(w, ammo)
}

// equipTile is the transport's inventory tile, else the first soldier's tile.
func (r *run) equipTile() *battle.Tile {
	if ov := r.bf.CraftOverlay(); ov != nil && len(ov.Transport.InventoryTile) == 3 {
		it := ov.Transport.InventoryTile
		if t := r.b.Tile(ov.Origin.Add(battle.Position{X: it[0], Y: it[1], Z: it[2]})); t != nil {
			return t
		}
	}
	for _, u := range r.b.UnitsOf(battle.FactionPlayer) {
		if u.Origin == battle.OriginSoldier && u.Pos.OnMap() {
			return r.b.Tile(u.Pos)
		}
	}
	return nil
}

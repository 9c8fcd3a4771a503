package battle

import (
	"fmt"
	"log"
)

// Battle is the state produced by one generation pass: tile array, route
// nodes, units and items. It is owned by a single pass and never shared.
type Battle struct {
	SizeX, SizeY, SizeZ int

	Tiles    []Tile
	DataSets []DataSet
	Nodes    []*Node
	Units    []*Unit
	Items    []*Item

	// EquipTile is where pre-battle items are staged.
	EquipTile *Tile

	Warnings []string
	Log      *log.Logger

	nextUnitID int
	nextItemID int
}

func New(sizeX, sizeY, sizeZ int) *Battle {
	b := &Battle{}
	b.Resize(sizeX, sizeY, sizeZ)
	return b
}

// Resize reallocates the tile array. Existing tiles are discarded.
func (b *Battle) Resize(sizeX, sizeY, sizeZ int) {
	b.SizeX, b.SizeY, b.SizeZ = sizeX, sizeY, sizeZ
	b.Tiles = make([]Tile, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				t := &b.Tiles[b.index(x, y, z)]
				t.Pos = Position{x, y, z}
				t.ClearParts()
			}
		}
	}
}

func (b *Battle) index(x, y, z int) int {
	return z*b.SizeX*b.SizeY + y*b.SizeX + x
}

func (b *Battle) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.Z >= 0 && p.X < b.SizeX && p.Y < b.SizeY && p.Z < b.SizeZ
}

func (b *Battle) Tile(p Position) *Tile {
	if !b.InBounds(p) {
		return nil
	}
	return &b.Tiles[b.index(p.X, p.Y, p.Z)]
}

// AddDataSets appends part palettes and returns the data-set offset of the first one.
func (b *Battle) AddDataSets(sets []DataSet) int {
	off := len(b.DataSets)
	b.DataSets = append(b.DataSets, sets...)
	return off
}

func (b *Battle) dataSet(p PartRef) *DataSet {
	if p.Empty() || p.DataSet >= len(b.DataSets) {
		return nil
	}
	return &b.DataSets[p.DataSet]
}

// Special reports the special type of a tile's floor.
func (b *Battle) Special(t *Tile) SpecialType {
	f := t.Parts[PartFloor]
	ds := b.dataSet(f)
	if ds == nil {
		return SpecialNone
	}
	return ds.Specials[f.Index]
}

// Blocked reports whether a tile's content object stops units from standing on it.
func (b *Battle) Blocked(t *Tile) bool {
	o := t.Parts[PartObject]
	ds := b.dataSet(o)
	return ds != nil && ds.Blocking[o.Index]
}

func (b *Battle) NextUnitID() int {
	b.nextUnitID++
	return b.nextUnitID
}

func (b *Battle) NextItemID() int {
	b.nextItemID++
	return b.nextItemID
}

// Warnf records a non-fatal problem and logs it.
func (b *Battle) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.Warnings = append(b.Warnings, msg)
	if b.Log != nil {
		b.Log.Printf("warning: %s", msg)
	}
}

func (b *Battle) Logf(format string, args ...any) {
	if b.Log != nil {
		b.Log.Printf(format, args...)
	}
}

// CanStand reports whether a unit's whole footprint fits at p.
func (b *Battle) CanStand(u *Unit, p Position) bool {
	for dx := 0; dx < u.Size; dx++ {
		for dy := 0; dy < u.Size; dy++ {
			t := b.Tile(p.Add(Position{dx, dy, 0}))
			if t == nil {
				return false
			}
			if t.Unit != nil && t.Unit != u {
				return false
			}
			if b.Blocked(t) {
				return false
			}
			if t.Parts[PartFloor].Empty() && !u.Flying {
				return false
			}
		}
	}
	return true
}

// SetUnitPosition moves a unit onto the map. It returns false without
// mutation when the footprint does not fit.
func (b *Battle) SetUnitPosition(u *Unit, p Position) bool {
	if !b.CanStand(u, p) {
		return false
	}
	b.liftUnit(u)
	for dx := 0; dx < u.Size; dx++ {
		for dy := 0; dy < u.Size; dy++ {
			b.Tile(p.Add(Position{dx, dy, 0})).Unit = u
		}
	}
	u.Pos = p
	return true
}

func (b *Battle) liftUnit(u *Unit) {
	if !u.Pos.OnMap() {
		return
	}
	for dx := 0; dx < u.Size; dx++ {
		for dy := 0; dy < u.Size; dy++ {
			if t := b.Tile(u.Pos.Add(Position{dx, dy, 0})); t != nil && t.Unit == u {
				t.Unit = nil
			}
		}
	}
	u.Pos = NoPosition
}

// RemoveUnit takes a unit off the map and out of the unit list.
func (b *Battle) RemoveUnit(u *Unit) {
	b.liftUnit(u)
	for i, x := range b.Units {
		if x == u {
			b.Units = append(b.Units[:i], b.Units[i+1:]...)
			return
		}
	}
}

// NewItem registers an item that is not yet placed anywhere.
func (b *Battle) NewItem(itemType string) *Item {
	it := &Item{ID: b.NextItemID(), Type: itemType, Pos: NoPosition}
	b.Items = append(b.Items, it)
	return it
}

func (b *Battle) detach(it *Item) {
	if it.Owner != nil {
		it.Owner.removeItem(it)
		it.Owner = nil
	}
	if it.Pos.OnMap() {
		if t := b.Tile(it.Pos); t != nil {
			t.RemoveItem(it)
		}
		it.Pos = NoPosition
	}
	if it.InWeapon != nil {
		if it.InWeapon.Ammo == it {
			it.InWeapon.Ammo = nil
		}
		it.InWeapon = nil
	}
}

// DropItem puts an item on the ground of a tile.
func (b *Battle) DropItem(it *Item, t *Tile) {
	b.detach(it)
	it.Slot = SlotGround
	it.SlotX, it.SlotY = 0, 0
	it.Pos = t.Pos
	t.Items = append(t.Items, it)
}

// GiveItem moves an item into a unit's inventory slot.
func (b *Battle) GiveItem(it *Item, u *Unit, slot string, x, y int) {
	b.detach(it)
	it.Owner = u
	it.Slot = slot
	it.SlotX, it.SlotY = x, y
	u.Inventory = append(u.Inventory, it)
}

// LoadAmmo puts ammo into a weapon. The caller checks compatibility.
func (b *Battle) LoadAmmo(weapon, ammo *Item) {
	b.detach(ammo)
	ammo.Slot = SlotLoaded
	ammo.InWeapon = weapon
	weapon.Ammo = ammo
}

// GroundItems lists the items lying on a tile, in drop order.
func (b *Battle) GroundItems(t *Tile) []*Item {
	out := make([]*Item, len(t.Items))
	copy(out, t.Items)
	return out
}

func (b *Battle) UnitsOf(f Faction) []*Unit {
	var out []*Unit
	for _, u := range b.Units {
		if u.Faction == f {
			out = append(out, u)
		}
	}
	return out
}

package battle

type Faction int

const (
	FactionPlayer Faction = iota
	FactionHostile
	FactionNeutral
)

func (f Faction) String() string {
	switch f {
	case FactionPlayer:
		return "player"
	case FactionHostile:
		return "hostile"
	}
	return "neutral"
}

type Origin int

const (
	OriginSoldier Origin = iota
	OriginVehicle
	OriginAlien
	OriginCivilian
)

func (o Origin) String() string {
	switch o {
	case OriginSoldier:
		return "soldier"
	case OriginVehicle:
		return "vehicle"
	case OriginAlien:
		return "alien"
	}
	return "civilian"
}

type Status int

const (
	StatusStanding Status = iota
	StatusUnconscious
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusStanding:
		return "standing"
	case StatusUnconscious:
		return "unconscious"
	}
	return "dead"
}

// LayoutItem is one entry of a soldier's saved equipment layout.
type LayoutItem struct {
	ItemType string `json:"item"`
	Slot     string `json:"slot"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	AmmoType string `json:"ammo,omitempty"`
}

type Unit struct {
	ID              int
	Type            string
	Faction         Faction
	OriginalFaction Faction
	Origin          Origin
	Status          Status

	Size   int
	Flying bool
	Rank   int
	Race   string

	Pos       Position
	Direction int

	SoldierID string
	Layout    []LayoutItem
	Inventory []*Item

	// CarriedBy is the id of the unit holding this one's body, 0 if none.
	CarriedBy int
}

func (u *Unit) Out() bool { return u.Status != StatusStanding }

// ItemAt returns the item held in the given inventory slot cell.
func (u *Unit) ItemAt(slot string, x, y int) *Item {
	for _, it := range u.Inventory {
		if it.Slot == slot && it.SlotX == x && it.SlotY == y {
			return it
		}
	}
	return nil
}

func (u *Unit) removeItem(it *Item) {
	for i, x := range u.Inventory {
		if x == it {
			u.Inventory = append(u.Inventory[:i], u.Inventory[i+1:]...)
			return
		}
	}
}

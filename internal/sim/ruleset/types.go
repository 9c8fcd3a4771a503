package ruleset

// Well-known fragment groups.
const (
	GroupDefault     = 0
	GroupLandingZone = 1
	GroupEWRoad      = 2
	GroupNSRoad      = 3
	GroupCrossing    = 4
	GroupDirt        = 5
)

// SlotSize is the edge of one grid slot in tiles.
const SlotSize = 10

type DataSetDef struct {
	Name     string            `json:"name"`
	Size     int               `json:"size"`
	Specials map[string]string `json:"specials,omitempty"` // part index -> "start"|"exit"
	Blocking []int             `json:"blocking,omitempty"`
}

type Terrain struct {
	ID        string       `json:"id"`
	DataSets  []DataSetDef `json:"data_sets"`
	Fragments []*Fragment  `json:"fragments"`
	Script    string       `json:"script,omitempty"`
}

// Fragment is an immutable catalog entry. Grids reference it, never copy it.
type Fragment struct {
	Name           string              `json:"name"`
	SizeX          int                 `json:"size_x"`
	SizeY          int                 `json:"size_y"`
	SizeZ          int                 `json:"size_z,omitempty"`
	Groups         []int               `json:"groups,omitempty"`
	MaxUses        int                 `json:"max_uses,omitempty"` // 0 = unlimited
	RevealedFloors []int               `json:"revealed_floors,omitempty"`
	Items          map[string][][3]int `json:"items,omitempty"`

	Index   int      `json:"-"`
	Terrain *Terrain `json:"-"`
}

func (f *Fragment) SlotsX() int { return f.SizeX / SlotSize }
func (f *Fragment) SlotsY() int { return f.SizeY / SlotSize }

func (f *Fragment) InGroup(g int) bool {
	for _, x := range f.Groups {
		if x == g {
			return true
		}
	}
	return false
}

func (f *Fragment) FloorRevealed(z int) bool {
	for _, x := range f.RevealedFloors {
		if x == z {
			return true
		}
	}
	return false
}

// Transport is a craft or UFO overlay with its own part palette and fragments.
type Transport struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"` // "craft" | "ufo"
	Terrain       Terrain  `json:"terrain"`
	Deployment    [][4]int `json:"deployment,omitempty"` // x, y, z, facing relative to the overlay origin
	InventoryTile []int    `json:"inventory_tile,omitempty"`
}

type DeploymentRow struct {
	Rank           int        `json:"rank"`
	Low            int        `json:"low"`
	Med            int        `json:"med"`
	High           int        `json:"high"`
	DQty           int        `json:"dqty"`
	ExtraQty       int        `json:"extra_qty,omitempty"`
	PercentOutside int        `json:"percent_outside,omitempty"`
	ItemSets       [][]string `json:"item_sets"`
}

type Deployment struct {
	ID            string          `json:"id"`
	Terrains      []string        `json:"terrains"`
	Script        string          `json:"script,omitempty"`
	Width         int             `json:"width"`
	Length        int             `json:"length"`
	Height        int             `json:"height"`
	Race          string          `json:"race,omitempty"`
	Data          []DeploymentRow `json:"data,omitempty"`
	Civilians     int             `json:"civilians,omitempty"`
	CivilianTypes []string        `json:"civilian_types,omitempty"`
	BaseDefense   bool            `json:"base_defense,omitempty"`
	NextStage     string          `json:"next_stage,omitempty"`
}

type ItemKind string

const (
	KindFirearm ItemKind = "firearm"
	KindMelee   ItemKind = "melee"
	KindAmmo    ItemKind = "ammo"
	KindGrenade ItemKind = "grenade"
	KindCorpse  ItemKind = "corpse"
	KindOther   ItemKind = "other"
)

type ItemRule struct {
	ID             string   `json:"id"`
	Kind           ItemKind `json:"kind"`
	CompatibleAmmo []string `json:"compatible_ammo,omitempty"`
	Fixed          bool     `json:"fixed,omitempty"`
	Recoverable    bool     `json:"recoverable,omitempty"`
	Requires       []string `json:"requires,omitempty"`
	VehicleUnit    string   `json:"vehicle_unit,omitempty"`
	ClipSize       int      `json:"clip_size,omitempty"`
}

func (r *ItemRule) Weapon() bool { return r.Kind == KindFirearm || r.Kind == KindMelee }

func (r *ItemRule) Accepts(ammo string) bool {
	for _, a := range r.CompatibleAmmo {
		if a == ammo {
			return true
		}
	}
	return false
}

type UnitRule struct {
	ID           string `json:"id"`
	Race         string `json:"race,omitempty"`
	Armor        string `json:"armor"`
	LivingWeapon bool   `json:"living_weapon,omitempty"`
}

type ArmorRule struct {
	ID     string `json:"id"`
	Size   int    `json:"size"`
	Flying bool   `json:"flying,omitempty"`
}

type RaceRule struct {
	ID      string   `json:"id"`
	Members []string `json:"members"` // unit ids indexed by alien rank
}

// Rect is a rectangle in slot units.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

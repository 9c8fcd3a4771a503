package battle

type PartKind int

const (
	PartFloor PartKind = iota
	PartWestWall
	PartNorthWall
	PartObject

	PartCount
)

func (k PartKind) String() string {
	switch k {
	case PartFloor:
		return "floor"
	case PartWestWall:
		return "westWall"
	case PartNorthWall:
		return "northWall"
	case PartObject:
		return "object"
	}
	return "unknown"
}

// PartRef points at one terrain part: an index inside one of the battle's data sets.
type PartRef struct {
	DataSet int
	Index   int
}

var NoPart = PartRef{DataSet: -1, Index: -1}

func (p PartRef) Empty() bool { return p.DataSet < 0 }

type SpecialType int

const (
	SpecialNone SpecialType = iota
	SpecialStart
	SpecialExit
)

func ParseSpecial(s string) SpecialType {
	switch s {
	case "start":
		return SpecialStart
	case "exit":
		return SpecialExit
	}
	return SpecialNone
}

func (s SpecialType) String() string {
	switch s {
	case SpecialStart:
		return "start"
	case SpecialExit:
		return "exit"
	}
	return "none"
}

// DataSet is the resolved part palette of one terrain set loaded into the battle.
type DataSet struct {
	Name     string
	Size     int
	Specials map[int]SpecialType
	Blocking map[int]bool
}

type Tile struct {
	Pos        Position
	Parts      [PartCount]PartRef
	Discovered bool
	Unit       *Unit
	Items      []*Item
}

func (t *Tile) Part(k PartKind) PartRef { return t.Parts[k] }

func (t *Tile) SetPart(k PartKind, p PartRef) { t.Parts[k] = p }

func (t *Tile) ClearPart(k PartKind) { t.Parts[k] = NoPart }

func (t *Tile) ClearParts() {
	for k := range t.Parts {
		t.Parts[k] = NoPart
	}
}

func (t *Tile) Blank() bool {
	for _, p := range t.Parts {
		if !p.Empty() {
			return false
		}
	}
	return true
}

func (t *Tile) RemoveItem(it *Item) {
	for i, x := range t.Items {
		if x == it {
			t.Items = append(t.Items[:i], t.Items[i+1:]...)
			return
		}
	}
}

package ruleset

type DirectiveKind string

const (
	AddFragment   DirectiveKind = "add-fragment"
	AddLine       DirectiveKind = "add-line"
	AddTransport  DirectiveKind = "add-transport"
	AddUFO        DirectiveKind = "add-ufo"
	DigTunnel     DirectiveKind = "dig-tunnel"
	FillArea      DirectiveKind = "fill-area"
	CheckFragment DirectiveKind = "check-fragment"
	Remove        DirectiveKind = "remove"
	Resize        DirectiveKind = "resize"
)

type Direction string

const (
	DirHorizontal Direction = "horizontal"
	DirVertical   Direction = "vertical"
	DirBoth       Direction = "both"
)

// PartDef names a part by data-set position within the owning terrain and part index.
type PartDef struct {
	Set   int `json:"set"`
	Index int `json:"index"`
}

type TunnelDef struct {
	Level        int                `json:"level"`
	Offset       int                `json:"offset"`
	Width        int                `json:"width"`
	Replacements map[string]PartDef `json:"replacements,omitempty"` // westWall, northWall, corner, floor
}

// Directive is one map-script instruction. Directives are configuration and
// are never mutated by a generation pass.
type Directive struct {
	Type            DirectiveKind `json:"type"`
	Label           int           `json:"label,omitempty"`
	Conditionals    []int         `json:"conditionals,omitempty"`
	ExecutionChance *int          `json:"execution_chance,omitempty"`
	Executions      int           `json:"executions,omitempty"`
	Rects           []Rect        `json:"rects,omitempty"`
	Groups          []int         `json:"groups,omitempty"`
	Blocks          []int         `json:"blocks,omitempty"`
	Freqs           []int         `json:"freqs,omitempty"`
	MaxUses         []int         `json:"max_uses,omitempty"`
	Size            []int         `json:"size,omitempty"`
	Direction       Direction     `json:"direction,omitempty"`
	VerticalGroup   int           `json:"vertical_group,omitempty"`
	HorizontalGroup int           `json:"horizontal_group,omitempty"`
	CrossingGroup   int           `json:"crossing_group,omitempty"`
	Tunnel          *TunnelDef    `json:"tunnel,omitempty"`
	Transport       string        `json:"transport,omitempty"`
}

func (d *Directive) Chance() int {
	if d.ExecutionChance == nil {
		return 100
	}
	return *d.ExecutionChance
}

func (d *Directive) Iterations() int {
	if d.Executions <= 0 {
		return 1
	}
	return d.Executions
}

// SizeSlots is the maximum fragment footprint for random selection, in slots.
func (d *Directive) SizeSlots() (x, y int) {
	x, y = 1, 1
	if len(d.Size) > 0 && d.Size[0] > 0 {
		x = d.Size[0]
	}
	if len(d.Size) > 1 && d.Size[1] > 0 {
		y = d.Size[1]
	}
	return x, y
}

// ResizeTo is the map size requested by a resize directive, in slots and levels. Zero keeps the axis.
func (d *Directive) ResizeTo() (x, y, z int) {
	if len(d.Size) > 0 {
		x = d.Size[0]
	}
	if len(d.Size) > 1 {
		y = d.Size[1]
	}
	if len(d.Size) > 2 {
		z = d.Size[2]
	}
	return x, y, z
}

func (d *Directive) LineGroups() (vertical, horizontal, crossing int) {
	vertical, horizontal, crossing = GroupNSRoad, GroupEWRoad, GroupCrossing
	if d.VerticalGroup > 0 {
		vertical = d.VerticalGroup
	}
	if d.HorizontalGroup > 0 {
		horizontal = d.HorizontalGroup
	}
	if d.CrossingGroup > 0 {
		crossing = d.CrossingGroup
	}
	return vertical, horizontal, crossing
}

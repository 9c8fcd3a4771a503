package battle

// Compass names the four neighbouring fragments a route edge can continue into.
type Compass uint8

const (
	West Compass = iota
	South
	East
	North
)

func (c Compass) Opposite() Compass {
	switch c {
	case West:
		return East
	case East:
		return West
	case North:
		return South
	}
	return North
}

// Offset is the slot-grid step towards the neighbour. Y grows southwards.
func (c Compass) Offset() (dx, dy int) {
	switch c {
	case West:
		return -1, 0
	case East:
		return 1, 0
	case North:
		return 0, -1
	}
	return 0, 1
}

func (c Compass) String() string {
	switch c {
	case West:
		return "west"
	case South:
		return "south"
	case East:
		return "east"
	}
	return "north"
}

type LinkKind uint8

const (
	LinkUnused LinkKind = iota
	LinkNode
	LinkEdge
)

// Link is one route slot of a node: a concrete node id, an edge that continues
// into a neighbouring fragment and is not resolved yet, or nothing.
type Link struct {
	Kind LinkKind
	Node int
	Edge Compass
}

var UnusedLink = Link{Kind: LinkUnused}

func NodeLink(id int) Link      { return Link{Kind: LinkNode, Node: id} }
func EdgeLink(c Compass) Link   { return Link{Kind: LinkEdge, Edge: c} }
func (l Link) Unresolved() bool { return l.Kind == LinkEdge }

const NodeLinks = 5

// Node type bits.
const (
	NodeTypeFlying    = 0x01
	NodeTypeSmall     = 0x02
	NodeTypeDangerous = 0x04
)

// Node ranks.
const (
	RankScout = iota
	RankPlayer
	RankSoldier
	RankNavigator
	RankLeader
	RankEngineer
	RankMisc1
	RankMedic
	RankMisc2
)

type Node struct {
	ID          int
	Pos         Position
	Segment     int
	Type        int
	Rank        int
	Patrol      int
	Attack      int
	SpawnWeight int
	Links       [NodeLinks]Link
}

func (n *Node) AllowsUnit(u *Unit) bool {
	if n.Type&NodeTypeSmall != 0 && u.Size != 1 {
		return false
	}
	if n.Type&NodeTypeFlying != 0 && !u.Flying {
		return false
	}
	return true
}

package mapgen

import (
	"skirmish.dev/internal/sim/battle"
)

// SegmentMap locates segments on the slot grid; ok is false off the map.
type SegmentMap interface {
	SegmentAt(x, y int) (segment int, ok bool)
}

type overlaySegments struct {
	grid     *Grid
	overlays []PlacedOverlay
}

func (s overlaySegments) SegmentAt(x, y int) (int, bool) {
	for _, ov := range s.overlays {
		if x >= ov.X && y >= ov.Y && x < ov.X+ov.Fragment.SlotsX() && y < ov.Y+ov.Fragment.SlotsY() {
			return ov.Segment, true
		}
	}
	return s.grid.SegmentAt(x, y)
}

// LinkNodes resolves edge sentinels between neighbouring segments. A sentinel
// pairs with the first node in the neighbour segment that has the opposite
// sentinel pointing back; both slots are rewritten to node links. Sentinels
// pointing off the map become unused. It returns the number of rewritten
// slots and is idempotent. Overlay nodes link through segs like any other
// segment, so segs must report overlays over the ground they cover.
func LinkNodes(nodes []*battle.Node, segs SegmentMap) int {
	bySegment := map[int][]*battle.Node{}
	for _, n := range nodes {
		bySegment[n.Segment] = append(bySegment[n.Segment], n)
	}
	changed := 0
	for _, n := range nodes {
		sx, sy := n.Pos.X/slot, n.Pos.Y/slot
		for j, l := range n.Links {
			if !l.Unresolved() {
				continue
			}
			dx, dy := l.Edge.Offset()
			seg, ok := segs.SegmentAt(sx+dx, sy+dy)
			if !ok {
				n.Links[j] = battle.UnusedLink
				changed++
				continue
			}
			if seg < 0 || seg == n.Segment {
				continue
			}
			if m, k := reciprocal(bySegment[seg], n, l.Edge.Opposite(), segs); m != nil {
				n.Links[j] = battle.NodeLink(m.ID)
				m.Links[k] = battle.NodeLink(n.ID)
				changed += 2
			}
		}
	}
	return changed
}

// reciprocal finds a node whose edge sentinel c points back into n's segment.
func reciprocal(cands []*battle.Node, n *battle.Node, c battle.Compass, segs SegmentMap) (*battle.Node, int) {
	dx, dy := c.Offset()
	for _, m := range cands {
		back, ok := segs.SegmentAt(m.Pos.X/slot+dx, m.Pos.Y/slot+dy)
		if !ok || back != n.Segment {
			continue
		}
		for k, l := range m.Links {
			if l.Unresolved() && l.Edge == c {
				return m, k
			}
		}
	}
	return nil, -1
}

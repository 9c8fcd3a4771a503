// Package deploy places player units, hostiles and civilians onto a generated
// battlefield and hands out their starting equipment.
package deploy

import (
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type Soldier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Craft is the transport the soldier is assigned to, empty when at base.
	Craft  string              `json:"craft,omitempty"`
	Layout []battle.LayoutItem `json:"layout,omitempty"`
}

// Roster is what the player brings to a mission.
type Roster struct {
	Soldiers []Soldier `json:"soldiers"`
	// Vehicles are item ids whose rule names a vehicle unit.
	Vehicles []string `json:"vehicles,omitempty"`
	// Items are the pre-battle stores staged on the equip tile.
	Items map[string]int `json:"items,omitempty"`
}

// Carried is a player unit coming from a previous stage.
type Carried struct {
	Unit *battle.Unit
	// StartOnly restricts placement to start tiles.
	StartOnly bool
}

type Input struct {
	Roster    Roster
	Carried   []Carried
	Forwarded []*battle.Item
}

type Report struct {
	Players   int
	Hostiles  int
	Civilians int
	Dropped   int
}

// Orchestrator runs the deployment phases in order: players, equipment,
// hostiles, civilians.
type Orchestrator struct {
	Rules  *ruleset.Ruleset
	Tuning tuning.Tuning
	RNG    *battle.RNG

	// Month is the elapsed campaign month, used for alien item levels.
	Month int
	// Mitigation is the percentage of hostiles removed by base defenses.
	Mitigation int
}

type run struct {
	*Orchestrator
	bf     *mapgen.Battlefield
	b      *battle.Battle
	report *Report
}

// Deploy populates bf. It fails when no soldier or no hostile could be placed.
func (o *Orchestrator) Deploy(bf *mapgen.Battlefield, in Input) (*Report, error) {
	r := &run{Orchestrator: o, bf: bf, b: bf.Battle, report: &Report{}}
	if err := r.players(in); err != nil {
		return nil, err
	}
	r.equip(in)
	if err := r.hostiles(); err != nil {
		return nil, err
	}
	r.civilians()
	r.b.Logf("deployed %s: %d players, %d hostiles, %d civilians, %d dropped",
		bf.Deployment.ID, r.report.Players, r.report.Hostiles, r.report.Civilians, r.report.Dropped)
	return r.report, nil
}

func (r *run) newUnit(typ string, f battle.Faction, origin battle.Origin) *battle.Unit {
	rule := r.Rules.Units[typ]
	armor := r.Rules.ArmorOf(rule)
	u := &battle.Unit{
		ID:              r.b.NextUnitID(),
		Type:            typ,
		Faction:         f,
		OriginalFaction: f,
		Origin:          origin,
		Size:            armor.Size,
		Flying:          armor.Flying,
		Pos:             battle.NoPosition,
	}
	if rule != nil {
		u.Race = rule.Race
	}
	return u
}

func (r *run) commit(u *battle.Unit) {
	r.b.Units = append(r.b.Units, u)
}

func (r *run) drop(u *battle.Unit) {
	r.report.Dropped++
	r.b.Warnf("no room for %s %s (%s)", u.Faction, u.Type, u.Origin)
}

// newItem creates an item, warning about and skipping unknown types.
func (r *run) newItem(typ string) (*battle.Item, *ruleset.ItemRule) {
	rule := r.Rules.Items[typ]
	if rule == nil {
		r.b.Warnf("unknown item %s", typ)
		return nil, nil
	}
	return r.b.NewItem(typ), rule
}

func (r *run) clip(typ string) int {
	if rule := r.Rules.Items[typ]; rule != nil {
		return rule.ClipSize
	}
	return 0
}

// placeNearFriend drops u next to a random standing ally of its faction.
func (r *run) placeNearFriend(u *battle.Unit) bool {
	var allies []*battle.Unit
	for _, a := range r.b.UnitsOf(u.Faction) {
		if a != u && !a.Out() && a.Pos.OnMap() {
			allies = append(allies, a)
		}
	}
	if len(allies) == 0 {
		return false
	}
	for i := 0; i < r.Tuning.NearFriendRetries; i++ {
		a := allies[r.RNG.Generate(0, len(allies)-1)]
		p := a.Pos.Add(battle.DirectionVector(r.RNG.Generate(0, 7)))
		if r.b.SetUnitPosition(u, p) {
			return true
		}
	}
	return false
}

// spawnNode picks uniformly among the free nodes of a rank with the highest
// spawn weight that can take the unit.
func (r *run) spawnNode(u *battle.Unit, rank int) *battle.Node {
	best := 0
	var cands []*battle.Node
	for _, n := range r.b.Nodes {
		if n.Rank != rank || n.SpawnWeight <= 0 || !n.AllowsUnit(u) || !r.b.CanStand(u, n.Pos) {
			continue
		}
		switch {
		case n.SpawnWeight > best:
			best = n.SpawnWeight
			cands = append(cands[:0], n)
		case n.SpawnWeight == best:
			cands = append(cands, n)
		}
	}
	if len(cands) == 0 {
		return nil
	}
	return cands[r.RNG.Generate(0, len(cands)-1)]
}

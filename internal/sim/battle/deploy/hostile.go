package deploy

import (
	"strings"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/mathx"
	"skirmish.dev/internal/sim/ruleset"
)

// Alien ranks index race members and the node-rank preference table.
const (
	AlienCommander = iota
	AlienLeader
	AlienEngineer
	AlienMedic
	AlienNavigator
	AlienSoldier
	AlienTerrorist
	AlienTerrorist2
)

// nodeRanks lists, per alien rank, the node ranks to try in order.
var nodeRanks = [...][7]int{
	AlienCommander:  {4, 3, 5, 8, 7, 2, 0},
	AlienLeader:     {4, 3, 5, 8, 7, 2, 0},
	AlienEngineer:   {5, 4, 3, 2, 7, 8, 0},
	AlienMedic:      {7, 6, 2, 8, 3, 4, 0},
	AlienNavigator:  {3, 4, 5, 2, 7, 8, 0},
	AlienSoldier:    {2, 5, 3, 4, 6, 8, 0},
	AlienTerrorist:  {2, 5, 3, 4, 6, 8, 0},
	AlienTerrorist2: {2, 5, 3, 4, 6, 8, 0},
}

// Quantity is the number of hostiles a deployment row asks for at a difficulty.
func Quantity(row ruleset.DeploymentRow, difficulty int, rng *battle.RNG) int {
	q := row.High
	switch {
	case difficulty < 2:
		q = row.Low
	case difficulty < 4:
		q = row.Med
	}
	return q + rng.Generate(0, row.DQty) + rng.Generate(0, row.ExtraQty)
}

// Mitigate reduces q by a base-defense kill percentage, rounding up, never
// below half of q.
func Mitigate(q, pct int) int {
	left := mathx.CeilPercent(q, 100-pct)
	if left < q/2 {
		left = q / 2
	}
	return left
}

func (r *run) hostiles() error {
	dep := r.bf.Deployment
	if len(dep.Data) == 0 {
		return battle.Placementf("deploy", "no hostile units placed: deployment %s has no data rows", dep.ID)
	}
	race := r.Rules.Races[dep.Race]
	if race == nil {
		return battle.Configf("deploy", "deployment %s: unknown race %q", dep.ID, dep.Race)
	}
	for _, row := range dep.Data {
		if row.Rank < 0 || row.Rank >= len(race.Members) || row.Rank >= len(nodeRanks) {
			return battle.Configf("deploy", "deployment %s: race %s has no rank %d", dep.ID, race.ID, row.Rank)
		}
		q := Quantity(row, r.Tuning.Difficulty, r.RNG)
		if dep.BaseDefense && r.Mitigation > 0 {
			q = Mitigate(q, r.Mitigation)
		}
		for i := 0; i < q; i++ {
			u := r.newUnit(race.Members[row.Rank], battle.FactionHostile, battle.OriginAlien)
			u.Rank = row.Rank
			if u.Race == "" {
				u.Race = race.ID
			}
			outside := row.PercentOutside > 0 && r.RNG.Percent(row.PercentOutside)
			if !r.placeHostile(u, row.Rank, outside) {
				r.drop(u)
				continue
			}
			r.commit(u)
			r.report.Hostiles++
			r.armHostile(u, row)
			r.face(u)
		}
	}
	if r.report.Hostiles == 0 {
		return battle.Placementf("deploy", "no hostile units placed on %s", dep.ID)
	}
	return nil
}

// placeHostile walks the rank's node preferences, scouts first when the unit
// spawns outside, then falls back to standing next to an ally.
func (r *run) placeHostile(u *battle.Unit, rank int, outside bool) bool {
	if outside {
		if n := r.spawnNode(u, battle.RankScout); n != nil && r.b.SetUnitPosition(u, n.Pos) {
			return true
		}
	}
	for _, nr := range nodeRanks[rank] {
		if n := r.spawnNode(u, nr); n != nil && r.b.SetUnitPosition(u, n.Pos) {
			return true
		}
	}
	return r.placeNearFriend(u)
}

// armHostile hands out a living weapon or a randomly levelled item set.
func (r *run) armHostile(u *battle.Unit, row ruleset.DeploymentRow) {
	if rule := r.Rules.Units[u.Type]; rule != nil && rule.LivingWeapon {
		typ := strings.TrimPrefix(u.Race, "STR_") + "_WEAPON"
		it, _ := r.newItem(typ)
		if it == nil {
			return
		}
		it.Fixed = true
		r.b.GiveItem(it, u, battle.SlotRightHand, 0, 0)
		return
	}
	if len(row.ItemSets) == 0 {
		return
	}
	levels := r.Tuning.ItemLevelRow(r.Month)
	level := 0
	if len(levels) > 0 {
		level = levels[r.RNG.Generate(0, len(levels)-1)]
	}
	level = mathx.ClampInt(level, 0, len(row.ItemSets)-1)

	var weapon *battle.Item
	var weaponRule *ruleset.ItemRule
	belt := 0
	for _, typ := range row.ItemSets[level] {
		it, rule := r.newItem(typ)
		if it == nil {
			continue
		}
		switch {
		case rule.Weapon() && weapon == nil:
			weapon, weaponRule = it, rule
			r.b.GiveItem(it, u, battle.SlotRightHand, 0, 0)
		case rule.Kind == ruleset.KindAmmo && weapon != nil && weapon.Ammo == nil && weaponRule.Accepts(typ):
			it.AmmoQty = rule.ClipSize
			r.b.LoadAmmo(weapon, it)
		default:
			if rule.Kind == ruleset.KindAmmo {
				it.AmmoQty = rule.ClipSize
			}
			r.b.GiveItem(it, u, "belt", belt, 0)
			belt++
		}
	}
}

// face turns a hostile towards the first player unit when it is close and
// the difficulty roll succeeds, otherwise in a random direction.
func (r *run) face(u *battle.Unit) {
	players := r.b.UnitsOf(battle.FactionPlayer)
	if len(players) > 0 {
		p := players[0]
		d := mathx.Distance3(u.Pos.X, u.Pos.Y, u.Pos.Z, p.Pos.X, p.Pos.Y, p.Pos.Z)
		if d <= r.Tuning.FacingDistance && r.RNG.Percent(r.Tuning.FacingChancePerDifficulty*r.Tuning.Difficulty) {
			u.Direction = battle.DirectionTo(u.Pos, p.Pos)
			return
		}
	}
	u.Direction = r.RNG.Generate(0, 7)
}

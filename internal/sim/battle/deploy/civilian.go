package deploy

import "skirmish.dev/internal/sim/battle"

// civilians places between half and all of the deployment's civilian count,
// splitting the types evenly in order.
func (r *run) civilians() {
	dep := r.bf.Deployment
	if dep.Civilians <= 0 {
		return
	}
	if len(dep.CivilianTypes) == 0 {
		r.b.Warnf("deployment %s asks for civilians but names no civilian types", dep.ID)
		return
	}
	n := r.RNG.Generate(dep.Civilians/2, dep.Civilians)
	for i := 0; i < n; i++ {
		typ := dep.CivilianTypes[i*len(dep.CivilianTypes)/n]
		if r.Rules.Units[typ] == nil {
			r.b.Warnf("unknown civilian type %s", typ)
			continue
		}
		u := r.newUnit(typ, battle.FactionNeutral, battle.OriginCivilian)
		placed := false
		if node := r.spawnNode(u, battle.RankScout); node != nil {
			placed = r.b.SetUnitPosition(u, node.Pos)
		}
		if !placed {
			placed = r.placeNearFriend(u)
		}
		if !placed {
			r.drop(u)
			continue
		}
		r.commit(u)
		u.Direction = r.RNG.Generate(0, 7)
		r.report.Civilians++
	}
}

// Package mission runs a whole mission: one generated and deployed map per
// stage, following the deployment's next-stage chain.
package mission

import (
	"log"
	"sort"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/battle/stage"
	"skirmish.dev/internal/sim/mathx"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type Request struct {
	Deployment string `json:"deployment"`
	Terrain    string `json:"terrain,omitempty"`
	Craft      string `json:"craft,omitempty"`
	UFO        string `json:"ufo,omitempty"`
	Seed       int64  `json:"seed"`

	Month      int           `json:"month,omitempty"`
	Mitigation int           `json:"mitigation,omitempty"`
	Roster     deploy.Roster `json:"roster"`
	Researched []string      `json:"researched,omitempty"`
}

// Stage is one map of a mission after deployment.
type Stage struct {
	Index  int
	Seed   int64
	Field  *mapgen.Battlefield
	Report *deploy.Report
	// Plan is the carry-over computed when leaving this stage; nil on the last one.
	Plan *stage.Plan
	// Recovered counts the item types secured when leaving this stage.
	Recovered map[string]int
}

type Result struct {
	Stages []*Stage
}

func (r *Result) Last() *Stage { return r.Stages[len(r.Stages)-1] }

// Resolver decides whether a stage ended in full success before its carry-over
// is planned. It may mutate the battle, e.g. to apply the outcome of play.
type Resolver func(st *Stage) bool

type Runner struct {
	Rules  *ruleset.Ruleset
	Source mapgen.Source
	Tuning tuning.Tuning
	Log    *log.Logger
	// Resolve defaults to stage.FullSuccess on the deployed battle.
	Resolve Resolver
}

// StageSeed derives the generation seed of stage i.
func StageSeed(seed int64, i int) int64 {
	return int64(mathx.Hash2(seed, i, 0))
}

func (r *Runner) Run(req Request) (*Result, error) {
	researched := map[string]bool{}
	for _, id := range req.Researched {
		researched[id] = true
	}
	planner := &stage.Planner{Rules: r.Rules, Researched: researched}

	res := &Result{}
	in := deploy.Input{Roster: req.Roster}
	seen := map[string]bool{}
	depID := req.Deployment
	for i := 0; ; i++ {
		if seen[depID] {
			return res, battle.Configf("mission", "stage chain revisits %s", depID)
		}
		seen[depID] = true

		st, err := r.stage(req, i, depID, in)
		if st != nil {
			res.Stages = append(res.Stages, st)
		}
		if err != nil {
			return res, err
		}
		next := st.Field.Deployment.NextStage
		if next == "" {
			return res, nil
		}

		full := r.resolve(st)
		st.Plan = planner.Plan(st.Field.Battle, full)
		st.Recovered = recovered(st.Plan)
		in = carryInput(st.Plan)
		if r.Log != nil {
			r.Log.Printf("stage %d (%s) -> %s: full success=%v, %d carried, %d items forwarded",
				i, depID, next, full, len(in.Carried), len(in.Forwarded))
		}
		depID = next
	}
}

func (r *Runner) stage(req Request, i int, depID string, in deploy.Input) (*Stage, error) {
	gen := &mapgen.Generator{Rules: r.Rules, Source: r.Source, Tuning: r.Tuning, Log: r.Log}
	seed := StageSeed(req.Seed, i)
	rng := battle.NewRNG(seed)

	mreq := mapgen.Request{Deployment: depID}
	if i == 0 {
		mreq.Terrain, mreq.Craft, mreq.UFO = req.Terrain, req.Craft, req.UFO
	}
	bf, err := gen.Generate(mreq, rng)
	if err != nil {
		return nil, err
	}
	st := &Stage{Index: i, Seed: seed, Field: bf}
	o := &deploy.Orchestrator{
		Rules:      r.Rules,
		Tuning:     r.Tuning,
		RNG:        rng,
		Month:      req.Month,
		Mitigation: req.Mitigation,
	}
	st.Report, err = o.Deploy(bf, in)
	return st, err
}

func (r *Runner) resolve(st *Stage) bool {
	if r.Resolve != nil {
		return r.Resolve(st)
	}
	return stage.FullSuccess(st.Field.Battle)
}

// carryInput turns a plan into the next stage's deployment input. Player
// stores stay behind; only what the plan forwards travels. Units and items
// are copied so each stage's battle stays as it was left.
func carryInput(p *stage.Plan) deploy.Input {
	var in deploy.Input
	for _, uc := range p.Units {
		if uc.Carry == stage.CarryLatent {
			continue
		}
		in.Carried = append(in.Carried, deploy.Carried{Unit: cloneUnit(uc.Unit), StartOnly: uc.Carry == stage.CarryLatentStart})
	}
	for _, it := range p.Loose() {
		in.Forwarded = append(in.Forwarded, cloneItem(it, nil))
	}
	return in
}

func cloneUnit(u *battle.Unit) *battle.Unit {
	c := *u
	c.Pos = battle.NoPosition
	c.CarriedBy = 0
	c.Layout = append([]battle.LayoutItem(nil), u.Layout...)
	c.Inventory = nil
	for _, it := range u.Inventory {
		c.Inventory = append(c.Inventory, cloneItem(it, &c))
	}
	return &c
}

func cloneItem(it *battle.Item, owner *battle.Unit) *battle.Item {
	c := *it
	c.Owner = owner
	c.Pos = battle.NoPosition
	c.InWeapon = nil
	if owner == nil {
		c.Slot = ""
	}
	if it.Ammo != nil {
		c.Ammo = cloneItem(it.Ammo, nil)
		c.Ammo.Slot = battle.SlotLoaded
		c.Ammo.InWeapon = &c
	}
	return &c
}

func recovered(p *stage.Plan) map[string]int {
	out := map[string]int{}
	for _, b := range []stage.Bucket{stage.BucketGuaranteed, stage.BucketConditional} {
		for _, it := range p.ItemsIn(b) {
			out[it.Type]++
		}
	}
	return out
}

// RecoveredTypes lists the recovered item types in sorted order.
func (s *Stage) RecoveredTypes() []string {
	out := make([]string, 0, len(s.Recovered))
	for k := range s.Recovered {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package ruleset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Ruleset is the read-only rule collaborator of map generation and deployment.
type Ruleset struct {
	Terrains    map[string]*Terrain
	Transports  map[string]*Transport
	Deployments map[string]*Deployment
	Scripts     map[string][]Directive
	Items       map[string]*ItemRule
	Units       map[string]*UnitRule
	Armors      map[string]*ArmorRule
	Races       map[string]*RaceRule

	// Digests maps file name to the sha256 of its bytes.
	Digests map[string]string
}

func New() *Ruleset {
	return &Ruleset{
		Terrains:    map[string]*Terrain{},
		Transports:  map[string]*Transport{},
		Deployments: map[string]*Deployment{},
		Scripts:     map[string][]Directive{},
		Items:       map[string]*ItemRule{},
		Units:       map[string]*UnitRule{},
		Armors:      map[string]*ArmorRule{},
		Races:       map[string]*RaceRule{},
		Digests:     map[string]string{},
	}
}

func Load(configDir string) (*Ruleset, error) {
	r := New()

	var terrains []*Terrain
	if err := r.loadJSON(configDir, "terrains.json", true, &terrains); err != nil {
		return nil, err
	}
	for _, t := range terrains {
		r.Terrains[t.ID] = t
	}

	var deployments []*Deployment
	if err := r.loadJSON(configDir, "deployments.json", true, &deployments); err != nil {
		return nil, err
	}
	for _, d := range deployments {
		r.Deployments[d.ID] = d
	}

	scriptsPath := filepath.Join(configDir, "scripts.json")
	raw, err := os.ReadFile(scriptsPath)
	if err != nil {
		return nil, err
	}
	if err := ValidateScripts(raw); err != nil {
		return nil, fmt.Errorf("scripts.json: %w", err)
	}
	r.Digests["scripts.json"] = sha256Hex(raw)
	if err := json.Unmarshal(raw, &r.Scripts); err != nil {
		return nil, fmt.Errorf("scripts.json: %w", err)
	}

	var transports []*Transport
	if err := r.loadJSON(configDir, "transports.json", false, &transports); err != nil {
		return nil, err
	}
	for _, t := range transports {
		r.Transports[t.ID] = t
	}

	var items []*ItemRule
	if err := r.loadJSON(configDir, "items.json", false, &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		r.Items[it.ID] = it
	}

	var units []*UnitRule
	if err := r.loadJSON(configDir, "units.json", false, &units); err != nil {
		return nil, err
	}
	for _, u := range units {
		r.Units[u.ID] = u
	}

	var armors []*ArmorRule
	if err := r.loadJSON(configDir, "armors.json", false, &armors); err != nil {
		return nil, err
	}
	for _, a := range armors {
		r.Armors[a.ID] = a
	}

	var races []*RaceRule
	if err := r.loadJSON(configDir, "races.json", false, &races); err != nil {
		return nil, err
	}
	for _, rc := range races {
		r.Races[rc.ID] = rc
	}

	if err := r.Finalize(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Ruleset) loadJSON(dir, name string, required bool, out any) error {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) && !required {
			r.Digests[name] = sha256Hex(nil)
			return nil
		}
		return err
	}
	r.Digests[name] = sha256Hex(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Finalize links catalog back-references and validates cross-file rules.
// Rulesets built in code must call it before use.
func (r *Ruleset) Finalize() error {
	for id, t := range r.Terrains {
		if id == "" {
			return fmt.Errorf("terrains.json: empty id")
		}
		if err := finalizeTerrain(t); err != nil {
			return fmt.Errorf("terrain %s: %w", id, err)
		}
	}
	for id, tr := range r.Transports {
		if tr.Kind != "craft" && tr.Kind != "ufo" {
			return fmt.Errorf("transport %s: kind %q must be craft or ufo", id, tr.Kind)
		}
		if tr.Terrain.ID == "" {
			tr.Terrain.ID = id
		}
		if len(tr.Terrain.Fragments) == 0 {
			return fmt.Errorf("transport %s: no fragments", id)
		}
		if err := finalizeTerrain(&tr.Terrain); err != nil {
			return fmt.Errorf("transport %s: %w", id, err)
		}
	}
	for id, d := range r.Deployments {
		if len(d.Terrains) == 0 {
			return fmt.Errorf("deployment %s: no terrains", id)
		}
		for _, tid := range d.Terrains {
			if _, ok := r.Terrains[tid]; !ok {
				return fmt.Errorf("deployment %s: unknown terrain %s", id, tid)
			}
		}
		if d.Width%SlotSize != 0 || d.Length%SlotSize != 0 || d.Width <= 0 || d.Length <= 0 || d.Height <= 0 {
			return fmt.Errorf("deployment %s: bad dimensions %dx%dx%d", id, d.Width, d.Length, d.Height)
		}
		if d.NextStage != "" {
			if _, ok := r.Deployments[d.NextStage]; !ok {
				return fmt.Errorf("deployment %s: unknown next stage %s", id, d.NextStage)
			}
		}
	}
	for id, u := range r.Units {
		if _, ok := r.Armors[u.Armor]; !ok {
			return fmt.Errorf("unit %s: unknown armor %s", id, u.Armor)
		}
	}
	return nil
}

func finalizeTerrain(t *Terrain) error {
	seen := map[string]bool{}
	for i, f := range t.Fragments {
		if f.Name == "" {
			return fmt.Errorf("fragment %d: empty name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("fragment %s: duplicate name", f.Name)
		}
		seen[f.Name] = true
		if f.SizeX <= 0 || f.SizeY <= 0 || f.SizeX%SlotSize != 0 || f.SizeY%SlotSize != 0 {
			return fmt.Errorf("fragment %s: size %dx%d is not a multiple of %d", f.Name, f.SizeX, f.SizeY, SlotSize)
		}
		if len(f.Groups) == 0 {
			f.Groups = []int{GroupDefault}
		}
		f.Index = i
		f.Terrain = t
	}
	for _, ds := range t.DataSets {
		for k, v := range ds.Specials {
			if _, err := strconv.Atoi(k); err != nil {
				return fmt.Errorf("data set %s: special key %q is not an index", ds.Name, k)
			}
			if v != "start" && v != "exit" {
				return fmt.Errorf("data set %s: unknown special %q", ds.Name, v)
			}
		}
	}
	return nil
}

// ScriptFor resolves the directive list for a deployment on a terrain. The
// deployment's script wins over the terrain default.
func (r *Ruleset) ScriptFor(d *Deployment, t *Terrain) (string, []Directive, bool) {
	id := d.Script
	if id == "" && t != nil {
		id = t.Script
	}
	if id == "" {
		return "", nil, false
	}
	s, ok := r.Scripts[id]
	return id, s, ok
}

// ArmorOf returns the armor of a unit rule, defaulting to a 1x1 walker.
func (r *Ruleset) ArmorOf(u *UnitRule) ArmorRule {
	if u != nil {
		if a, ok := r.Armors[u.Armor]; ok && a.Size > 0 {
			return *a
		}
	}
	return ArmorRule{Size: 1}
}

// SortedDeploymentIDs is used by tooling for stable listings.
func (r *Ruleset) SortedDeploymentIDs() []string {
	ids := make([]string, 0, len(r.Deployments))
	for id := range r.Deployments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

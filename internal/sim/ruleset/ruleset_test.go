package ruleset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const terrainsJSON = `[
  {"id":"FARM","script":"FARM_SCRIPT",
   "data_sets":[{"name":"BLANKS","size":4,"specials":{"1":"start","2":"exit"},"blocking":[3]}],
   "fragments":[
     {"name":"FARM00","size_x":10,"size_y":10,"groups":[0]},
     {"name":"FARM01","size_x":20,"size_y":20,"groups":[0,5]},
     {"name":"ROAD","size_x":10,"size_y":10,"groups":[2]}
   ]}
]`

const deploymentsJSON = `[
  {"id":"STR_TERROR","terrains":["FARM"],"width":40,"length":40,"height":4,"race":"SECTOIDS",
   "data":[{"rank":5,"low":2,"med":3,"high":4,"dqty":1,"item_sets":[["PISTOL"]]}]}
]`

const scriptsJSON = `{
  "FARM_SCRIPT":[
    {"type":"add-fragment","label":1,"size":[2,2],"executions":2},
    {"type":"fill-area","conditionals":[1]}
  ]
}`

func TestLoad(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"terrains.json":    terrainsJSON,
		"deployments.json": deploymentsJSON,
		"scripts.json":     scriptsJSON,
	})
	r, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	farm := r.Terrains["FARM"]
	if farm == nil || len(farm.Fragments) != 3 {
		t.Fatalf("terrain not loaded: %+v", farm)
	}
	big := farm.Fragments[1]
	if big.Index != 1 || big.Terrain != farm || big.SlotsX() != 2 || !big.InGroup(5) {
		t.Fatalf("fragment not finalized: %+v", big)
	}
	if r.Digests["terrains.json"] == "" || r.Digests["scripts.json"] == "" {
		t.Fatalf("missing digests: %v", r.Digests)
	}
	id, script, ok := r.ScriptFor(r.Deployments["STR_TERROR"], farm)
	if !ok || id != "FARM_SCRIPT" || len(script) != 2 {
		t.Fatalf("ScriptFor=%s,%d,%v", id, len(script), ok)
	}
	if script[0].Chance() != 100 || script[0].Iterations() != 2 {
		t.Fatalf("defaults not applied: chance=%d exec=%d", script[0].Chance(), script[0].Iterations())
	}
	if x, y := script[0].SizeSlots(); x != 2 || y != 2 {
		t.Fatalf("SizeSlots=%d,%d", x, y)
	}
}

func TestLoad_RejectsUnknownDirective(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"terrains.json":    terrainsJSON,
		"deployments.json": deploymentsJSON,
		"scripts.json":     `{"S":[{"type":"add-block"}]}`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "scripts.json") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestLoad_RejectsZeroConditional(t *testing.T) {
	if err := ValidateScripts([]byte(`{"S":[{"type":"remove","conditionals":[0]}]}`)); err == nil {
		t.Fatalf("expected conditional 0 to be rejected")
	}
	if err := ValidateScripts([]byte(`{"S":[{"type":"remove","conditionals":[-3,2]}]}`)); err != nil {
		t.Fatalf("valid conditionals rejected: %v", err)
	}
}

func TestFinalize_BadFragmentSize(t *testing.T) {
	r := New()
	r.Terrains["T"] = &Terrain{ID: "T", Fragments: []*Fragment{{Name: "X", SizeX: 15, SizeY: 10}}}
	if err := r.Finalize(); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestFinalize_UnknownTerrain(t *testing.T) {
	r := New()
	r.Deployments["D"] = &Deployment{ID: "D", Terrains: []string{"NOPE"}, Width: 10, Length: 10, Height: 1}
	if err := r.Finalize(); err == nil {
		t.Fatalf("expected unknown terrain error")
	}
}

func TestScriptFor_Missing(t *testing.T) {
	r := New()
	d := &Deployment{ID: "D"}
	if _, _, ok := r.ScriptFor(d, &Terrain{ID: "T"}); ok {
		t.Fatalf("expected no script")
	}
}

package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

func TestSQLiteIndex_StagesAndRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "runs.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordStage(eventlog.StageEvent{
		RunID: "r1", Stage: 0, Deployment: "assault", Terrain: "farm", Script: "default", Seed: 11,
		Fragments: 16, Nodes: 40, Links: 12, Players: 8, Hostiles: 6, Civilians: 2,
		Warnings: []string{"no room for hostile X", "unknown item Y"},
	}, "/data/snapshots/r1-0.snap.zst")
	idx.RecordStage(eventlog.StageEvent{RunID: "r1", Stage: 1, Deployment: "core", Seed: 12, Error: "no hostile units placed on core"}, "")
	idx.RecordRun(RunRow{RunID: "r1", Deployment: "assault", Seed: 7, Stages: 2, Error: "no hostile units placed on core"})
	idx.RecordRun(RunRow{RunID: "r2", Deployment: "raid", Seed: 8, Stages: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	stages, err := idx.Stages(ctx, "r1")
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("stages=%+v", stages)
	}
	s0 := stages[0]
	if s0.Fragments != 16 || s0.Hostiles != 6 || s0.Warnings != 2 || s0.SnapshotPath != "/data/snapshots/r1-0.snap.zst" {
		t.Fatalf("stage 0=%+v", s0)
	}
	if stages[1].Error == "" || stages[1].Deployment != "core" {
		t.Fatalf("stage 1=%+v", stages[1])
	}

	runs, err := idx.Runs(ctx, "assault", 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Stages != 2 || runs[0].Seed != 7 {
		t.Fatalf("runs=%+v", runs)
	}
	all, err := idx.Runs(ctx, "", 10)
	if err != nil || len(all) != 2 {
		t.Fatalf("all runs=%+v err=%v", all, err)
	}
}

func TestSQLiteIndex_UpsertRuleset(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	rules := ruleset.New()
	rules.Digests["terrains.json"] = "abc"
	rules.Digests["items.json"] = "def"
	if err := idx.UpsertRuleset(rules, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertRuleset: %v", err)
	}
	// Upserting twice replaces rows.
	if err := idx.UpsertRuleset(rules, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertRuleset again: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM rulesets`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("ruleset rows=%d want 2 files + tuning", n)
	}
	var digest string
	if err := idx.db.QueryRow(`SELECT digest FROM rulesets WHERE name='items.json'`).Scan(&digest); err != nil || digest != "def" {
		t.Fatalf("items digest=%q err=%v", digest, err)
	}
}

func TestOpen_Backends(t *testing.T) {
	idx, err := Open(Config{Backend: "none"})
	if err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	if _, err := Open(Config{Backend: "mongo"}); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	if _, err := Open(Config{Backend: "d1"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	idx, err = Open(Config{SQLitePath: filepath.Join(t.TempDir(), "x.sqlite")})
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := idx.(*SQLiteIndex); !ok {
		t.Fatalf("default backend=%T", idx)
	}
	_ = idx.Close()
}

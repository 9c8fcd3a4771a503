package archive

import (
	"errors"
	"path/filepath"
	"testing"

	"skirmish.dev/internal/persistence/indexdb"
	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/persistence/snapshot"
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/battletest"
	"skirmish.dev/internal/sim/mission"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type recordingIndex struct {
	stages []string
	runs   []indexdb.RunRow
}

func (f *recordingIndex) UpsertRuleset(*ruleset.Ruleset, tuning.Tuning) error { return nil }
func (f *recordingIndex) RecordStage(ev eventlog.StageEvent, path string) {
	f.stages = append(f.stages, path)
}
func (f *recordingIndex) RecordRun(run indexdb.RunRow) { f.runs = append(f.runs, run) }
func (f *recordingIndex) Close() error                 { return nil }

func runner(t *testing.T) *mission.Runner {
	t.Helper()
	fx := battletest.New(t)
	fx.AddFragment("yard", 1, 1, 1, battletest.StartFloor)
	fx.AddScript("fill", ruleset.Directive{Type: ruleset.FillArea})
	d := fx.AddDeployment("raid", "fill", 2, 1, 1)
	d.Race = "STR_SECTOID"
	d.Data = []ruleset.DeploymentRow{{Rank: deploy.AlienSoldier, Low: 1, Med: 1, High: 1}}
	fx.Finalize()
	return &mission.Runner{Rules: fx.Rules, Source: fx.Source, Tuning: fx.Tuning}
}

func TestRecorder_WritesSnapshotsMetaAndEvents(t *testing.T) {
	dir := t.TempDir()
	events := eventlog.NewEventLogger(dir)
	idx := &recordingIndex{}
	rec := &Recorder{DataDir: dir, Events: events, Index: idx}

	req := mission.Request{Deployment: "raid", Seed: 5, Roster: deploy.Roster{Soldiers: []deploy.Soldier{{ID: "a", Type: "SOLDIER"}}}}
	res, err := runner(t).Run(req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	runID := NewRunID()
	meta, err := rec.Record(runID, req, res, nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := events.Close(); err != nil {
		t.Fatal(err)
	}

	if len(meta.Stages) != 1 || meta.Stages[0].Snapshot == "" {
		t.Fatalf("meta=%+v", meta)
	}
	got, err := ReadMeta(rec.RunDir(runID))
	if err != nil || got.RunID != runID || got.Seed != 5 {
		t.Fatalf("meta on disk=%+v err=%v", got, err)
	}
	snap, err := snapshot.ReadSnapshot(filepath.Join(rec.RunDir(runID), meta.Stages[0].Snapshot))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Header.Deployment != "raid" || snap.Header.Seed != res.Stages[0].Seed {
		t.Fatalf("snapshot header=%+v", snap.Header)
	}
	evs, err := eventlog.ReadEvents(dir)
	if err != nil || len(evs) != 1 || evs[0].RunID != runID || evs[0].Players != 1 {
		t.Fatalf("events=%+v err=%v", evs, err)
	}
	if len(idx.stages) != 1 || len(idx.runs) != 1 || idx.runs[0].Stages != 1 {
		t.Fatalf("index stages=%v runs=%+v", idx.stages, idx.runs)
	}
}

func TestRecorder_FailedRun(t *testing.T) {
	dir := t.TempDir()
	events := eventlog.NewEventLogger(dir)
	idx := &recordingIndex{}
	rec := &Recorder{DataDir: dir, Events: events, Index: idx}

	req := mission.Request{Deployment: "raid", Seed: 5}
	res, runErr := runner(t).Run(req)
	if !errors.Is(runErr, battle.ErrPlacement) {
		t.Fatalf("expected placement failure, got %v", runErr)
	}
	meta, err := rec.Record(NewRunID(), req, res, runErr)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = events.Close()
	if meta.Error == "" || len(meta.Stages) != 1 {
		t.Fatalf("meta=%+v", meta)
	}
	evs, _ := eventlog.ReadEvents(dir)
	if len(evs) != 1 || evs[0].Error == "" {
		t.Fatalf("events=%+v", evs)
	}
	if idx.runs[0].Error == "" {
		t.Fatalf("run row lacks error")
	}

	// A run that failed before any map existed still leaves a trace.
	_, unknownErr := runner(t).Run(mission.Request{Deployment: "nope"})
	if _, err := rec.Record(NewRunID(), mission.Request{Deployment: "nope"}, &mission.Result{}, unknownErr); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(idx.runs) != 2 || idx.runs[1].Stages != 0 {
		t.Fatalf("runs=%+v", idx.runs)
	}
}

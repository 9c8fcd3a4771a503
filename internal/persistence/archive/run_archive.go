// Package archive persists a finished mission run: one snapshot per stage,
// a meta.json, the stage events and the index rows.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"skirmish.dev/internal/persistence/indexdb"
	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/persistence/snapshot"
	"skirmish.dev/internal/sim/mission"
)

type RunMeta struct {
	RunID      string      `json:"run_id"`
	Deployment string      `json:"deployment"`
	Seed       int64       `json:"seed"`
	Stages     []StageMeta `json:"stages"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  string      `json:"created_at"`
}

type StageMeta struct {
	Stage      int    `json:"stage"`
	Deployment string `json:"deployment"`
	Seed       int64  `json:"seed"`
	Snapshot   string `json:"snapshot,omitempty"`
}

// Recorder writes runs under DataDir/runs/<run id>/. Events and Index are optional.
type Recorder struct {
	DataDir string
	Events  *eventlog.EventLogger
	Index   indexdb.Index
}

func NewRunID() string { return uuid.NewString() }

func (r *Recorder) RunDir(runID string) string {
	return filepath.Join(r.DataDir, "runs", runID)
}

// Record persists res. runErr is the error that ended the run, if any; it is
// attributed to the last stage. Stages that failed before a battlefield existed
// get no snapshot.
func (r *Recorder) Record(runID string, req mission.Request, res *mission.Result, runErr error) (RunMeta, error) {
	meta := RunMeta{
		RunID:      runID,
		Deployment: req.Deployment,
		Seed:       req.Seed,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	dir := r.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return meta, err
	}

	var errs []error
	var stages []*mission.Stage
	if res != nil {
		stages = res.Stages
	}
	for i, st := range stages {
		sm := StageMeta{Stage: st.Index, Seed: st.Seed}
		var stageErr error
		if i == len(stages)-1 {
			stageErr = runErr
		}
		if st.Field != nil {
			sm.Deployment = st.Field.Deployment.ID
			sm.Snapshot = fmt.Sprintf("stage_%02d.snap.zst", st.Index)
			snap := snapshot.Capture(st.Field, st.Index, st.Seed)
			if err := snapshot.WriteSnapshot(filepath.Join(dir, sm.Snapshot), snap); err != nil {
				errs = append(errs, fmt.Errorf("stage %d snapshot: %w", st.Index, err))
				sm.Snapshot = ""
			}
		}
		meta.Stages = append(meta.Stages, sm)

		ev := eventlog.NewStageEvent(runID, st, stageErr)
		if r.Events != nil {
			if err := r.Events.WriteStage(ev); err != nil {
				errs = append(errs, fmt.Errorf("stage %d event: %w", st.Index, err))
			}
		}
		if r.Index != nil {
			path := ""
			if sm.Snapshot != "" {
				path = filepath.Join(dir, sm.Snapshot)
			}
			r.Index.RecordStage(ev, path)
		}
	}
	if runErr != nil && len(stages) == 0 && r.Events != nil {
		ev := eventlog.StageEvent{RunID: runID, Deployment: req.Deployment, Seed: mission.StageSeed(req.Seed, 0), Error: runErr.Error()}
		if err := r.Events.WriteStage(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Index != nil {
		r.Index.RecordRun(indexdb.RunRow{
			RunID:      runID,
			Deployment: req.Deployment,
			Seed:       req.Seed,
			Stages:     len(stages),
			Error:      meta.Error,
			RecordedAt: meta.CreatedAt,
		})
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	if err != nil {
		errs = append(errs, err)
	}
	return meta, errors.Join(errs...)
}

// ReadMeta loads a run's meta.json.
func ReadMeta(runDir string) (RunMeta, error) {
	var meta RunMeta
	b, err := os.ReadFile(filepath.Join(runDir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

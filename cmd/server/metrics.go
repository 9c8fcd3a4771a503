package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"skirmish.dev/internal/persistence/indexdb"
	"skirmish.dev/internal/persistence/mirror"
	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/mission"
)

type serverStats struct {
	runs       atomic.Uint64
	stages     atomic.Uint64
	failures   atomic.Uint64
	placement  atomic.Uint64
	config     atomic.Uint64
	format     atomic.Uint64
	lastStages atomic.Int64
}

func (s *serverStats) observe(res *mission.Result, err error) {
	s.runs.Add(1)
	if res != nil {
		s.stages.Add(uint64(len(res.Stages)))
		s.lastStages.Store(int64(len(res.Stages)))
	}
	if err == nil {
		return
	}
	s.failures.Add(1)
	switch protocol.CodeFor(err) {
	case protocol.ErrPlacement:
		s.placement.Add(1)
	case protocol.ErrConfiguration:
		s.config.Add(1)
	case protocol.ErrFormat:
		s.format.Add(1)
	}
}

// writeMetrics emits a minimal Prometheus exposition.
func writeMetrics(w io.Writer, s *serverStats, idx indexdb.Index, mir *mirror.Mirror) {
	fmt.Fprintf(w, "# HELP skirmish_runs_total Generation runs served.\n")
	fmt.Fprintf(w, "# TYPE skirmish_runs_total counter\n")
	fmt.Fprintf(w, "skirmish_runs_total %d\n", s.runs.Load())

	fmt.Fprintf(w, "# HELP skirmish_stages_total Stages generated across all runs.\n")
	fmt.Fprintf(w, "# TYPE skirmish_stages_total counter\n")
	fmt.Fprintf(w, "skirmish_stages_total %d\n", s.stages.Load())

	fmt.Fprintf(w, "# HELP skirmish_run_failures_total Runs that ended in a fatal error.\n")
	fmt.Fprintf(w, "# TYPE skirmish_run_failures_total counter\n")
	fmt.Fprintf(w, "skirmish_run_failures_total{kind=%q} %d\n", "placement", s.placement.Load())
	fmt.Fprintf(w, "skirmish_run_failures_total{kind=%q} %d\n", "configuration", s.config.Load())
	fmt.Fprintf(w, "skirmish_run_failures_total{kind=%q} %d\n", "format", s.format.Load())
	other := s.failures.Load() - s.placement.Load() - s.config.Load() - s.format.Load()
	fmt.Fprintf(w, "skirmish_run_failures_total{kind=%q} %d\n", "other", other)

	fmt.Fprintf(w, "# HELP skirmish_last_run_stages Stage count of the most recent run.\n")
	fmt.Fprintf(w, "# TYPE skirmish_last_run_stages gauge\n")
	fmt.Fprintf(w, "skirmish_last_run_stages %d\n", s.lastStages.Load())

	if sq, ok := idx.(*indexdb.SQLiteIndex); ok {
		fmt.Fprintf(w, "# HELP skirmish_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(w, "# TYPE skirmish_index_dropped_total counter\n")
		fmt.Fprintf(w, "skirmish_index_dropped_total %d\n", sq.Dropped())
	}
	if mir == nil {
		return
	}
	m := mir.Stats()
	fmt.Fprintf(w, "# HELP skirmish_mirror_queue_depth Current mirror queue depth.\n")
	fmt.Fprintf(w, "# TYPE skirmish_mirror_queue_depth gauge\n")
	fmt.Fprintf(w, "skirmish_mirror_queue_depth %d\n", m.QueueDepth)
	fmt.Fprintf(w, "# HELP skirmish_mirror_files_total Mirror outcomes per file.\n")
	fmt.Fprintf(w, "# TYPE skirmish_mirror_files_total counter\n")
	fmt.Fprintf(w, "skirmish_mirror_files_total{result=%q} %d\n", "uploaded", m.UploadedTotal)
	fmt.Fprintf(w, "skirmish_mirror_files_total{result=%q} %d\n", "failed", m.FailedTotal)
	fmt.Fprintf(w, "skirmish_mirror_files_total{result=%q} %d\n", "dropped", m.DroppedTotal)
	fmt.Fprintf(w, "# HELP skirmish_mirror_last_upload_unix Unix time of the last successful upload.\n")
	fmt.Fprintf(w, "# TYPE skirmish_mirror_last_upload_unix gauge\n")
	fmt.Fprintf(w, "skirmish_mirror_last_upload_unix %d\n", m.LastUploadUnix)
}

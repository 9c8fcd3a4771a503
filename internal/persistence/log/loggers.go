// Package log persists generation events as hourly rotated, zstd compressed
// JSONL files.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"skirmish.dev/internal/sim/battle/stage"
	"skirmish.dev/internal/sim/mission"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v as one line. Lines are flushed to the encoder, not to disk;
// a file is only complete after rotation or Close.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// A reopened hour gets a numbered file.
	path := w.pathForHour(hour)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		path = filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.%d.jsonl.zst", w.prefix, hour, n))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var errs []error
	if w.w != nil {
		errs = append(errs, w.w.Flush())
	}
	if w.enc != nil {
		errs = append(errs, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		errs = append(errs, w.f.Close())
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return errors.Join(errs...)
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadEvents decodes every stage event under dataDir, oldest file first.
func ReadEvents(dataDir string) ([]StageEvent, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, "events", "events-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []StageEvent
	for _, p := range paths {
		evs, err := readFile(p)
		if err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, evs...)
	}
	return out, nil
}

func readFile(path string) ([]StageEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []StageEvent
	jd := json.NewDecoder(dec)
	for {
		var ev StageEvent
		if err := jd.Decode(&ev); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// EventLogger writes one JSONL entry per generated stage (compressed).
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(dataDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events")}
}

func (l *EventLogger) WriteStage(v StageEvent) error { return l.w.Write(v) }
func (l *EventLogger) Close() error                  { return l.w.Close() }

// StageEvent summarises one stage of a mission run.
type StageEvent struct {
	RunID      string `json:"run_id"`
	Stage      int    `json:"stage"`
	Deployment string `json:"deployment"`
	Terrain    string `json:"terrain,omitempty"`
	Script     string `json:"script,omitempty"`
	Seed       int64  `json:"seed"`

	Fragments int `json:"fragments"`
	Nodes     int `json:"nodes"`
	Links     int `json:"links"`

	Players   int `json:"players"`
	Hostiles  int `json:"hostiles"`
	Civilians int `json:"civilians"`
	Dropped   int `json:"dropped"`

	Carried   int            `json:"carried,omitempty"`
	Recovered map[string]int `json:"recovered,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// NewStageEvent builds the log entry for st. err is the failure that ended
// the run on this stage, if any.
func NewStageEvent(runID string, st *mission.Stage, err error) StageEvent {
	ev := StageEvent{RunID: runID, Stage: st.Index, Seed: st.Seed}
	if err != nil {
		ev.Error = err.Error()
	}
	bf := st.Field
	if bf == nil {
		return ev
	}
	ev.Deployment = bf.Deployment.ID
	ev.Terrain = bf.Terrain.ID
	ev.Script = bf.Script
	if bf.Grid != nil {
		ev.Fragments = len(bf.Grid.Origins())
	}
	ev.Nodes = len(bf.Battle.Nodes)
	ev.Links = bf.Links
	ev.Warnings = bf.Battle.Warnings
	if r := st.Report; r != nil {
		ev.Players, ev.Hostiles, ev.Civilians, ev.Dropped = r.Players, r.Hostiles, r.Civilians, r.Dropped
	}
	if st.Plan != nil {
		for _, uc := range st.Plan.Units {
			if uc.Carry != stage.CarryLatent {
				ev.Carried++
			}
		}
	}
	ev.Recovered = st.Recovered
	return ev
}

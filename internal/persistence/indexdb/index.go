// Package indexdb keeps a queryable index of mission runs next to the JSONL
// event logs. Writes are queued and may be dropped; the logs are authoritative.
package indexdb

import (
	"fmt"
	"log"
	"strings"
	"time"

	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type Index interface {
	UpsertRuleset(rules *ruleset.Ruleset, tune tuning.Tuning) error
	RecordStage(ev eventlog.StageEvent, snapshotPath string)
	RecordRun(run RunRow)
	Close() error
}

type RunRow struct {
	RunID      string `json:"run_id"`
	Deployment string `json:"deployment"`
	Seed       int64  `json:"seed"`
	Stages     int    `json:"stages"`
	Error      string `json:"error,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

type Config struct {
	Backend    string
	SQLitePath string

	D1Endpoint  string
	D1Token     string
	D1BatchSize int
	D1Flush     time.Duration
	Logger      *log.Logger
}

// Open returns the configured backend, or nil for "none".
func Open(cfg Config) (Index, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "d1":
		idx, err := OpenD1(D1Config{
			Endpoint:      cfg.D1Endpoint,
			Token:         cfg.D1Token,
			BatchSize:     cfg.D1BatchSize,
			FlushInterval: cfg.D1Flush,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unsupported index backend: %s", backend)
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

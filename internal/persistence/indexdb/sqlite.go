package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

type reqKind int

const (
	reqStage reqKind = iota + 1
	reqRun
)

type req struct {
	kind reqKind

	stage    eventlog.StageEvent
	snapshot string
	run      RunRow
}

type StageRow struct {
	RunID        string `json:"run_id"`
	Stage        int    `json:"stage"`
	Deployment   string `json:"deployment"`
	Terrain      string `json:"terrain"`
	Script       string `json:"script"`
	Seed         int64  `json:"seed"`
	Fragments    int    `json:"fragments"`
	Nodes        int    `json:"nodes"`
	Links        int    `json:"links"`
	Players      int    `json:"players"`
	Hostiles     int    `json:"hostiles"`
	Civilians    int    `json:"civilians"`
	Dropped      int    `json:"dropped"`
	Warnings     int    `json:"warnings"`
	SnapshotPath string `json:"snapshot_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rulesets (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			deployment TEXT NOT NULL,
			seed INTEGER NOT NULL,
			stages INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_deployment ON runs(deployment, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS stages (
			run_id TEXT NOT NULL,
			stage INTEGER NOT NULL,
			deployment TEXT NOT NULL,
			terrain TEXT NOT NULL,
			script TEXT NOT NULL,
			seed INTEGER NOT NULL,
			fragments INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			links INTEGER NOT NULL,
			players INTEGER NOT NULL,
			hostiles INTEGER NOT NULL,
			civilians INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, stage)
		);`,
		`CREATE TABLE IF NOT EXISTS warnings (
			run_id TEXT NOT NULL,
			stage INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, stage, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Dropped counts writes lost to a full queue.
func (s *SQLiteIndex) Dropped() int64 { return s.dropped.Load() }

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RecordStage(ev eventlog.StageEvent, snapshotPath string) {
	s.enqueue(req{kind: reqStage, stage: ev, snapshot: snapshotPath})
}

func (s *SQLiteIndex) RecordRun(run RunRow) {
	if run.RecordedAt == "" {
		run.RecordedAt = now()
	}
	s.enqueue(req{kind: reqRun, run: run})
}

// UpsertRuleset stores the digest of every ruleset file and of the applied tuning.
func (s *SQLiteIndex) UpsertRuleset(rules *ruleset.Ruleset, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	rows := digestRows(rules, tune)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO rulesets(name,digest,updated_at) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	at := now()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, at); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type digestRow struct{ name, digest string }

func digestRows(rules *ruleset.Ruleset, tune tuning.Tuning) []digestRow {
	var rows []digestRow
	for name, d := range rules.Digests {
		rows = append(rows, digestRow{name, d})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return append(rows, digestRow{"tuning", hex.EncodeToString(sum[:])})
}

// Runs lists recorded runs, newest first. An empty deployment lists all.
func (s *SQLiteIndex) Runs(ctx context.Context, deployment string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id,deployment,seed,stages,COALESCE(error,''),recorded_at FROM runs
		 WHERE ?='' OR deployment=? ORDER BY recorded_at DESC LIMIT ?`, deployment, deployment, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.Deployment, &r.Seed, &r.Stages, &r.Error, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Stages(ctx context.Context, runID string) ([]StageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.run_id,s.stage,s.deployment,s.terrain,s.script,s.seed,s.fragments,s.nodes,s.links,
		        s.players,s.hostiles,s.civilians,s.dropped,s.snapshot_path,COALESCE(s.error,''),
		        (SELECT COUNT(*) FROM warnings w WHERE w.run_id=s.run_id AND w.stage=s.stage)
		 FROM stages s WHERE s.run_id=? ORDER BY s.stage`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StageRow
	for rows.Next() {
		var r StageRow
		if err := rows.Scan(&r.RunID, &r.Stage, &r.Deployment, &r.Terrain, &r.Script, &r.Seed,
			&r.Fragments, &r.Nodes, &r.Links, &r.Players, &r.Hostiles, &r.Civilians, &r.Dropped,
			&r.SnapshotPath, &r.Error, &r.Warnings); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStage, _ := s.db.Prepare(`INSERT OR REPLACE INTO stages(run_id,stage,deployment,terrain,script,seed,fragments,nodes,links,players,hostiles,civilians,dropped,snapshot_path,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertWarning, _ := s.db.Prepare(`INSERT OR REPLACE INTO warnings(run_id,stage,seq,message) VALUES(?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,deployment,seed,stages,error,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStage, insertWarning, insertRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.dropped.Add(1)
			continue
		}
		switch r.kind {
		case reqStage:
			ev := r.stage
			raw, _ := json.Marshal(ev)
			if !exec(insertStage, ev.RunID, ev.Stage, ev.Deployment, ev.Terrain, ev.Script, ev.Seed,
				ev.Fragments, ev.Nodes, ev.Links, ev.Players, ev.Hostiles, ev.Civilians, ev.Dropped,
				r.snapshot, ev.Error, string(raw)) {
				continue
			}
			for i, w := range ev.Warnings {
				if !exec(insertWarning, ev.RunID, ev.Stage, i, w) {
					break
				}
			}
		case reqRun:
			run := r.run
			exec(insertRun, run.RunID, run.Deployment, run.Seed, run.Stages, run.Error, run.RecordedAt)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

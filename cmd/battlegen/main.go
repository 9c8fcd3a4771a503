// Command battlegen generates one mission from the command line and records
// it under the data directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"skirmish.dev/internal/config"
	"skirmish.dev/internal/persistence/archive"
	"skirmish.dev/internal/persistence/indexdb"
	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/mission"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
	"skirmish.dev/internal/transport/ws"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("battlegen", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "ruleset directory")
	terrainDir := fs.String("terrain_dir", "", "terrain data root with maps/ and routes/ (default: <configs>/terrain)")
	dataDir := fs.String("data", "./data", "runtime data directory")
	tuningPath := fs.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	deployment := fs.String("deployment", "", "deployment id (required)")
	terrain := fs.String("terrain", "", "terrain id override")
	craft := fs.String("craft", "", "player craft id")
	ufo := fs.String("ufo", "", "ufo id")
	seed := fs.Int64("seed", 1, "mission seed")
	month := fs.Int("month", 0, "elapsed campaign month")
	mitigation := fs.Int("mitigation", 0, "percentage of hostiles removed by base defenses")
	rosterPath := fs.String("roster", "", "roster JSON (required)")
	research := fs.String("researched", "", "comma-separated research ids")
	disableDB := fs.Bool("disable_db", false, "disable the run index")
	asJSON := fs.Bool("json", false, "print the RESULT summary as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*deployment) == "" || strings.TrimSpace(*rosterPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -deployment or -roster")
		return 2
	}

	logger := log.New(os.Stderr, "[battlegen] ", log.LstdFlags)
	rt, err := config.LoadRuntime()
	if err != nil {
		logger.Printf("config: %v", err)
		return 2
	}
	rules, err := ruleset.Load(*configDir)
	if err != nil {
		logger.Printf("load ruleset: %v", err)
		return 1
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) || *tuningPath != "" {
			logger.Printf("load tuning: %v", err)
			return 1
		}
		tune = tuning.Defaults()
	}
	roster, err := deploy.ReadRoster(*rosterPath)
	if err == nil {
		err = roster.Check(rules)
	}
	if err != nil {
		logger.Printf("roster: %v", err)
		return 2
	}

	td := *terrainDir
	if td == "" {
		td = filepath.Join(*configDir, "terrain")
	}
	req := mission.Request{
		Deployment: *deployment,
		Terrain:    *terrain,
		Craft:      *craft,
		UFO:        *ufo,
		Seed:       *seed,
		Month:      *month,
		Mitigation: *mitigation,
		Roster:     roster,
		Researched: splitList(*research),
	}
	runner := &mission.Runner{Rules: rules, Source: mapgen.DirSource{Root: td}, Tuning: tune, Log: logger}
	res, runErr := runner.Run(req)

	var idx indexdb.Index
	if !*disableDB {
		idx, err = indexdb.Open(indexdb.Config{
			Backend:     rt.IndexBackend,
			SQLitePath:  filepath.Join(*dataDir, "index", "runs.sqlite"),
			D1Endpoint:  rt.D1URL,
			D1Token:     rt.D1Token,
			D1BatchSize: rt.D1BatchSize,
			D1Flush:     rt.D1Flush,
			Logger:      logger,
		})
		if err != nil {
			logger.Printf("open index backend: %v", err)
		}
	}
	events := eventlog.NewEventLogger(*dataDir)
	rec := &archive.Recorder{DataDir: *dataDir, Events: events, Index: idx}
	runID := archive.NewRunID()
	if _, err := rec.Record(runID, req, res, runErr); err != nil {
		logger.Printf("record run %s: %v", runID, err)
	}
	_ = events.Close()
	if idx != nil {
		_ = idx.Close()
	}

	sum := ws.Summarize(res, runErr)
	sum.Type, sum.ProtocolVersion, sum.RunID = protocol.TypeResult, protocol.Version, runID
	if *asJSON {
		b, _ := json.MarshalIndent(sum, "", "  ")
		fmt.Println(string(b))
	} else {
		printSummary(sum, rec.RunDir(runID))
	}
	if runErr != nil {
		return 1
	}
	return 0
}

func printSummary(sum protocol.ResultMsg, runDir string) {
	fmt.Printf("run %s -> %s\n", sum.RunID, runDir)
	for _, st := range sum.Stages {
		fmt.Printf("stage %d %s terrain=%s script=%s seed=%d size=%dx%dx%d nodes=%d links=%d\n",
			st.Stage, st.Deployment, st.Terrain, st.Script, st.Seed, st.Size[0], st.Size[1], st.Size[2], st.Nodes, st.Links)
		fmt.Printf("  players=%d hostiles=%d civilians=%d dropped=%d\n", st.Players, st.Hostiles, st.Civilians, st.Dropped)
		for _, w := range st.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	if sum.Error != nil {
		fmt.Printf("error (%s, stage %d): %s\n", sum.Error.Code, sum.Error.Stage, sum.Error.Message)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

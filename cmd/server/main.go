package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"skirmish.dev/internal/config"
	"skirmish.dev/internal/persistence/archive"
	"skirmish.dev/internal/persistence/indexdb"
	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/persistence/mirror"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/mission"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
	"skirmish.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "ruleset directory")
		terrainDir = flag.String("terrain", "", "terrain data root with maps/ and routes/ (default: <configs>/terrain)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		rosterPath = flag.String("roster", "", "default roster JSON for requests that carry none")
		disableDB  = flag.Bool("disable_db", false, "disable the run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	rt, err := config.LoadRuntime()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	rules, err := ruleset.Load(*configDir)
	if err != nil {
		logger.Fatalf("load ruleset: %v", err)
	}
	tune := loadTuning(*configDir, *tuningPath, logger)

	var roster deploy.Roster
	if p := strings.TrimSpace(*rosterPath); p != "" {
		if roster, err = deploy.ReadRoster(p); err != nil {
			logger.Fatalf("roster: %v", err)
		}
		if err := roster.Check(rules); err != nil {
			logger.Fatalf("roster: %v", err)
		}
	}

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
			logger.Fatalf("open index backend: %v", err)
		}
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertRuleset(rules, tune); err != nil {
			logger.Printf("index backend: upsert ruleset: %v", err)
		}
	}

	mir, err := openMirror(rt, *dataDir, logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mir.Close()

	events := eventlog.NewEventLogger(*dataDir)
	defer events.Close()
	rec := &archive.Recorder{DataDir: *dataDir, Events: events, Index: idx}

	td := strings.TrimSpace(*terrainDir)
	if td == "" {
		td = filepath.Join(*configDir, "terrain")
	}
	runner := &mission.Runner{Rules: rules, Source: mapgen.DirSource{Root: td}, Tuning: tune, Log: logger}

	var stats serverStats
	wsSrv := ws.NewServer(runner, ws.Config{
		MaxInFlight:   rt.MaxInFlight,
		DefaultRoster: roster,
		NewRunID:      archive.NewRunID,
		Record: func(runID string, req mission.Request, res *mission.Result, runErr error) error {
			stats.observe(res, runErr)
			_, err := rec.Record(runID, req, res, runErr)
			if merr := mir.EnqueueDir(rec.RunDir(runID)); merr != nil {
				logger.Printf("mirror run %s: %v", runID, merr)
			}
			return err
		},
	}, logger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, &stats, idx, mir)
	})
	if rt.EnableAdmin {
		mux.HandleFunc("/admin/v1/runs", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			sq, ok := idx.(*indexdb.SQLiteIndex)
			if !ok {
				http.Error(rw, "run listing needs the sqlite index backend", http.StatusNotImplemented)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			runs, err := sq.Runs(r.Context(), r.URL.Query().Get("deployment"), limit)
			writeJSONResponse(rw, runs, err)
		}))
		mux.HandleFunc("/admin/v1/runs/{id}", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			meta, err := archive.ReadMeta(rec.RunDir(filepath.Base(r.PathValue("id"))))
			if os.IsNotExist(err) {
				http.NotFound(rw, r)
				return
			}
			writeJSONResponse(rw, meta, err)
		}))
	} else {
		logger.Printf("admin endpoints disabled (SKIRMISH_ENABLE_ADMIN_HTTP=false)")
	}
	if rt.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (%d deployments)", *addr, len(rules.Deployments))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func loadTuning(configDir, path string, logger *log.Logger) tuning.Tuning {
	tp := strings.TrimSpace(path)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err == nil {
		return tune
	}
	if os.IsNotExist(err) && path == "" {
		logger.Printf("tuning not found (%s); using defaults", tp)
		return tuning.Defaults()
	}
	logger.Fatalf("load tuning: %v", err)
	return tune
}

func openMirror(rt config.Runtime, dataDir string, logger *log.Logger) (*mirror.Mirror, error) {
	if !rt.Mirror {
		return nil, nil
	}
	client, err := mirror.NewS3(mirror.S3Config{
		Endpoint:  rt.MirrorEndpoint,
		Bucket:    rt.MirrorBucket,
		Region:    rt.MirrorRegion,
		AccessKey: rt.MirrorAccessKey,
		SecretKey: rt.MirrorSecretKey,
	})
	if err != nil {
		return nil, err
	}
	return mirror.New(client, mirror.Config{
		DataDir: dataDir,
		Prefix:  rt.MirrorPrefix,
		Workers: rt.MirrorWorkers,
		Logger:  logger,
	}), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSONResponse(rw http.ResponseWriter, v any, err error) {
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(rw).Encode(v)
}

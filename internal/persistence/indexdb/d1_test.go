package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	eventlog "skirmish.dev/internal/persistence/log"
	"skirmish.dev/internal/sim/ruleset"
	"skirmish.dev/internal/sim/tuning"
)

func TestD1Index_BatchesEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		kinds  []string
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []struct {
				Kind    string          `json:"kind"`
				Payload json.RawMessage `json:"payload"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		tokens = append(tokens, r.Header.Get("x-skirmish-index-token"))
		for _, ev := range body.Events {
			kinds = append(kinds, ev.Kind)
		}
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{Endpoint: srv.URL, Token: "secret", BatchSize: 2, FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	rules := ruleset.New()
	rules.Digests["terrains.json"] = "abc"
	if err := idx.UpsertRuleset(rules, tuning.Defaults()); err != nil {
		t.Fatal(err)
	}
	idx.RecordStage(eventlog.StageEvent{RunID: "r", Deployment: "raid"}, "snap")
	idx.RecordRun(RunRow{RunID: "r", Deployment: "raid", Stages: 1})
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"ruleset", "ruleset", "stage", "run"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds=%v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds=%v want %v", kinds, want)
		}
	}
	if len(tokens) != 2 || tokens[0] != "secret" {
		t.Fatalf("batches=%d tokens=%v", len(tokens), tokens)
	}
}

func TestD1Index_ClientErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d, err := OpenD1(D1Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.sendBatch([]d1Event{{Kind: "run", Payload: RunRow{RunID: "x"}}}); err == nil {
		t.Fatalf("expected status error")
	}
	_ = d.Close()
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

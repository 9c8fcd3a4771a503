package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/mission"
)

func TestWriteMetrics_CountsFailuresByKind(t *testing.T) {
	var s serverStats
	s.observe(&mission.Result{Stages: make([]*mission.Stage, 2)}, nil)
	s.observe(&mission.Result{Stages: make([]*mission.Stage, 1)}, battle.Placementf("deploy", "no soldiers placed"))
	s.observe(nil, battle.Configf("generate", "unknown deployment x"))

	var buf bytes.Buffer
	writeMetrics(&buf, &s, nil, nil)
	out := buf.String()
	for _, want := range []string{
		"skirmish_runs_total 3\n",
		"skirmish_stages_total 3\n",
		`skirmish_run_failures_total{kind="placement"} 1`,
		`skirmish_run_failures_total{kind="configuration"} 1`,
		`skirmish_run_failures_total{kind="other"} 0`,
		"skirmish_last_run_stages 1\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "mirror") || strings.Contains(out, "index_dropped") {
		t.Fatalf("disabled backends should not be reported:\n%s", out)
	}
}

func TestLoopbackOnly(t *testing.T) {
	h := loopbackOnly(func(rw http.ResponseWriter, r *http.Request) { rw.WriteHeader(http.StatusNoContent) })
	cases := []struct {
		remote string
		code   int
	}{
		{"127.0.0.1:5000", http.StatusNoContent},
		{"[::1]:5000", http.StatusNoContent},
		{"10.0.0.7:5000", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/v1/runs", nil)
		req.RemoteAddr = c.remote
		rw := httptest.NewRecorder()
		h(rw, req)
		if rw.Code != c.code {
			t.Fatalf("%s: code=%d want %d", c.remote, rw.Code, c.code)
		}
	}
}

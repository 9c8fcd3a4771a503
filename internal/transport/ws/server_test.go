package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/battle/deploy"
	"skirmish.dev/internal/sim/battletest"
	"skirmish.dev/internal/sim/mission"
	"skirmish.dev/internal/sim/ruleset"
)

func previewServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	fx := battletest.New(t)
	fx.AddFragment("yard", 1, 1, 1, battletest.StartFloor)
	fx.AddScript("fill", ruleset.Directive{Type: ruleset.FillArea})
	d := fx.AddDeployment("raid", "fill", 2, 2, 1)
	d.Race = "STR_SECTOID"
	d.Data = []ruleset.DeploymentRow{{Rank: deploy.AlienSoldier, Low: 1, Med: 1, High: 1}}
	fx.Finalize()
	runner := &mission.Runner{Rules: fx.Rules, Source: fx.Source, Tuning: fx.Tuning}
	srv := httptest.NewServer(NewServer(runner, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, raw string) protocol.ResultMsg {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := protocol.Validate(protocol.TypeResult, b); err != nil {
		t.Fatalf("RESULT does not match its schema: %v\n%s", err, b)
	}
	var res protocol.ResultMsg
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res
}

func TestServer_Generate(t *testing.T) {
	var mu sync.Mutex
	var recorded []string
	srv := previewServer(t, Config{
		DefaultRoster: deploy.Roster{Soldiers: []deploy.Soldier{{ID: "a", Type: "SOLDIER"}, {ID: "b", Type: "SOLDIER"}}},
		NewRunID:      func() string { return "run-1" },
		Record: func(runID string, req mission.Request, res *mission.Result, runErr error) error {
			mu.Lock()
			defer mu.Unlock()
			recorded = append(recorded, runID+":"+req.Deployment)
			return nil
		},
	})
	conn := dial(t, srv)

	res := roundTrip(t, conn, `{"type":"GENERATE","protocol_version":"1.0","request_id":"q1","deployment":"raid","seed":3}`)
	if res.Error != nil {
		t.Fatalf("error=%+v", res.Error)
	}
	if res.RequestID != "q1" || res.RunID != "run-1" || len(res.Stages) != 1 {
		t.Fatalf("result=%+v", res)
	}
	st := res.Stages[0]
	if st.Size[0] != 20 || st.Size[1] != 20 || len(st.Layout) != 2 || st.Layout[1][1] != "yard" {
		t.Fatalf("stage=%+v", st)
	}
	if st.Players != 2 || st.Hostiles != 1 {
		t.Fatalf("counts=%+v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 || recorded[0] != "run-1:raid" {
		t.Fatalf("recorded=%v", recorded)
	}
}

func TestServer_Errors(t *testing.T) {
	srv := previewServer(t, Config{})
	conn := dial(t, srv)

	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"not json", `{`, protocol.ErrProtoBadRequest},
		{"wrong type", `{"type":"HELLO","protocol_version":"1.0"}`, protocol.ErrProtoBadRequest},
		{"wrong version", `{"type":"GENERATE","protocol_version":"0.1","deployment":"raid","seed":1}`, protocol.ErrProtoBadRequest},
		{"schema", `{"type":"GENERATE","protocol_version":"1.0","seed":1}`, protocol.ErrBadRequest},
		{"unknown deployment", `{"type":"GENERATE","protocol_version":"1.0","deployment":"nope","seed":1}`, protocol.ErrConfiguration},
		{"no soldiers", `{"type":"GENERATE","protocol_version":"1.0","deployment":"raid","seed":1}`, protocol.ErrPlacement},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := roundTrip(t, conn, c.raw)
			if res.Error == nil || res.Error.Code != c.code {
				t.Fatalf("error=%+v want %s", res.Error, c.code)
			}
		})
	}
}

func TestSummarize_ErrorOnLastStage(t *testing.T) {
	msg := Summarize(&mission.Result{Stages: []*mission.Stage{{Index: 0}, {Index: 1}}}, errUnknown{})
	if msg.Error == nil || msg.Error.Stage != 1 || msg.Error.Code != protocol.ErrInternal {
		t.Fatalf("error=%+v", msg.Error)
	}
	if len(msg.Stages) != 0 {
		t.Fatalf("stages without a battlefield are skipped: %+v", msg.Stages)
	}
}

type errUnknown struct{}

func (errUnknown) Error() string { return "unknown" }

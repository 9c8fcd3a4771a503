package protocol_test

import (
	"encoding/json"
	"testing"

	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/battle/deploy"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	valid := []struct {
		typ string
		raw string
	}{
		{protocol.TypeGenerate, `{"type":"GENERATE","protocol_version":"1.0","deployment":"STR_TERROR_MISSION","seed":42}`},
		{protocol.TypeGenerate, `{
		  "type":"GENERATE","protocol_version":"1.0","request_id":"r1","deployment":"raid","seed":-3,
		  "craft":"STR_SKYRANGER","mitigation":50,
		  "roster":{"soldiers":[{"id":"s1","type":"SOLDIER","layout":[{"item":"RIFLE","slot":"rightHand","ammo":"RIFLE_CLIP"}]}],
		            "items":{"RIFLE":2}}
		}`},
		{protocol.TypeResult, `{"type":"RESULT","protocol_version":"1.0","stages":null,"error":{"code":"E_PLACEMENT","stage":0,"message":"no soldiers"}}`},
	}
	for _, c := range valid {
		if err := protocol.Validate(c.typ, []byte(c.raw)); err != nil {
			t.Fatalf("%s sample: %v", c.typ, err)
		}
	}

	invalid := []string{
		`{"type":"GENERATE","protocol_version":"1.0","seed":1}`,
		`{"type":"GENERATE","protocol_version":"1.0","deployment":"","seed":1}`,
		`{"type":"GENERATE","protocol_version":"1.0","deployment":"x","seed":"1"}`,
		`{"type":"GENERATE","protocol_version":"1.0","deployment":"x","seed":1,"mitigation":101}`,
		`{"type":"GENERATE","protocol_version":"1.0","deployment":"x","seed":1,"roster":{"soldiers":[{"id":"a"}]}}`,
	}
	for _, raw := range invalid {
		if err := protocol.Validate(protocol.TypeGenerate, []byte(raw)); err == nil {
			t.Fatalf("expected rejection: %s", raw)
		}
	}
	if err := protocol.Validate("HELLO", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestSchemas_MarshalledResultValidates(t *testing.T) {
	msg := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RunID:           "run-1",
		Stages: []protocol.StageSummary{{
			Stage: 0, Deployment: "raid", Terrain: "plain", Script: "fill", Seed: 9,
			Size:   [3]int{20, 20, 1},
			Layout: [][]string{{"yard", "yard"}, {"field", "yard"}},
			Overlays: []protocol.Overlay{{Transport: "craft", Fragment: "craft_hull", Pos: [3]int{0, 0, 0}}},
			Players: 2, Hostiles: 1,
		}},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := protocol.Validate(protocol.TypeResult, b); err != nil {
		t.Fatalf("validate: %v", err)
	}

	gen := protocol.GenerateMsg{
		Type: protocol.TypeGenerate, ProtocolVersion: protocol.Version, Deployment: "raid", Seed: 1,
		Roster: &deploy.Roster{Soldiers: []deploy.Soldier{{ID: "a", Type: "SOLDIER"}}},
	}
	b, _ = json.Marshal(gen)
	if err := protocol.Validate(protocol.TypeGenerate, b); err != nil {
		t.Fatalf("validate generate: %v", err)
	}
}

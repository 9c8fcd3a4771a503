package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("difficulty: 3\nline_retries: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Difficulty != 3 || tu.LineRetries != 5 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.NearFriendRetries != 100 || len(tu.AlienItemLevels) == 0 {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoad_RejectsBadRow(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("alien_item_levels:\n  - [0, 1]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestItemLevelRow_Clamps(t *testing.T) {
	tu := Defaults()
	last := tu.AlienItemLevels[len(tu.AlienItemLevels)-1]
	got := tu.ItemLevelRow(99)
	if got[9] != last[9] {
		t.Fatalf("expected clamp to last row")
	}
}

package main

import (
	"strings"
	"testing"

	"skirmish.dev/internal/sim/battle"
)

func TestLevel_Glyphs(t *testing.T) {
	b := battle.New(6, 2, 1)
	b.AddDataSets([]battle.DataSet{
		{Name: "floors", Size: 4, Specials: map[int]battle.SpecialType{2: battle.SpecialStart, 3: battle.SpecialExit}},
		{Name: "walls", Size: 4, Blocking: map[int]bool{3: true}},
	})
	at := func(x, y int) *battle.Tile { return b.Tile(battle.Position{X: x, Y: y}) }
	floor := func(x, y, idx int) { at(x, y).Parts[battle.PartFloor] = battle.PartRef{DataSet: 0, Index: idx} }

	floor(0, 0, 2)
	floor(1, 0, 3)
	floor(2, 0, 1)
	floor(3, 0, 1)
	at(3, 0).Parts[battle.PartObject] = battle.PartRef{DataSet: 1, Index: 3}
	floor(4, 0, 1)
	at(4, 0).Unit = &battle.Unit{Faction: battle.FactionHostile, Status: battle.StatusDead}
	floor(5, 0, 1)
	at(5, 0).Items = []*battle.Item{{Type: "MEDKIT"}}

	at(0, 1).Parts[battle.PartWestWall] = battle.PartRef{DataSet: 1, Index: 1}
	at(1, 1).Parts[battle.PartNorthWall] = battle.PartRef{DataSet: 1, Index: 1}
	at(2, 1).Parts[battle.PartWestWall] = battle.PartRef{DataSet: 1, Index: 1}
	at(2, 1).Parts[battle.PartNorthWall] = battle.PartRef{DataSet: 1, Index: 2}
	at(3, 1).Unit = &battle.Unit{Faction: battle.FactionPlayer}
	b.Nodes = append(b.Nodes, &battle.Node{Pos: battle.Position{X: 4, Y: 1}})

	got := Level(b, 0)
	want := []string{"SE.#h*", "|_LPo "}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("level:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestStyled_KeepsGlyphs(t *testing.T) {
	out := Styled([]string{"SE", "P."})
	for _, r := range "SEP." {
		if !strings.ContainsRune(out, r) {
			t.Fatalf("glyph %q missing from %q", r, out)
		}
	}
}

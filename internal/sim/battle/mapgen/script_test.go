package mapgen_test

import (
	"errors"
	"testing"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/battletest"
	"skirmish.dev/internal/sim/ruleset"
)

func newInterpreter(t *testing.T, fx *battletest.Fixture, slotsX, slotsY int) *mapgen.Interpreter {
	t.Helper()
	g, _ := newGrid(t, fx, slotsX, slotsY, 1)
	return &mapgen.Interpreter{Grid: g, RNG: battle.NewRNG(7)}
}

func TestRun_SixteenUniqueSingleSlotFragments(t *testing.T) {
	fx := battletest.New(t)
	for i := 0; i < 16; i++ {
		f := fx.AddFragment(string(rune('a'+i)), 1, 1, 1, battletest.Floor)
		f.MaxUses = 1
	}
	in := newInterpreter(t, fx, 4, 4)
	err := in.Run([]ruleset.Directive{{Type: ruleset.AddFragment, Label: 1, Executions: 16}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.Grid.Free() != 0 {
		t.Fatalf("free=%d want 0", in.Grid.Free())
	}
	origins := in.Grid.Origins()
	if len(origins) != 16 {
		t.Fatalf("origins=%d want 16", len(origins))
	}
	seen := map[string]bool{}
	for _, o := range origins {
		if seen[o.Fragment.Name] {
			t.Fatalf("fragment %s placed twice", o.Fragment.Name)
		}
		seen[o.Fragment.Name] = true
	}
	if r := in.Results[0]; !r.Ran || !r.Success {
		t.Fatalf("result=%+v", r)
	}
}

func TestRun_Prerequisites(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("a", 1, 1, 1, battletest.Floor)
	first := []ruleset.Rect{{X: 0, Y: 0, W: 1, H: 1}}
	second := []ruleset.Rect{{X: 1, Y: 0, W: 1, H: 1}}

	cases := []struct {
		name  string
		conds []int
		ran   bool
	}{
		{"succeeded and failed", []int{1, -2}, true},
		{"requires failure of 1", []int{-1}, false},
		{"requires success of 2", []int{2}, false},
		{"no conditionals", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInterpreter(t, fx, 2, 1)
			err := in.Run([]ruleset.Directive{
				{Type: ruleset.AddFragment, Label: 1, Rects: first},
				{Type: ruleset.AddFragment, Label: 2, Rects: first},
				{Type: ruleset.AddFragment, Label: 3, Rects: second, Conditionals: tc.conds},
			})
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !in.Results[0].Success || in.Results[1].Success {
				t.Fatalf("setup results: %+v", in.Results[:2])
			}
			r := in.Results[2]
			if r.Ran != tc.ran || r.Success != tc.ran {
				t.Fatalf("directive 3: %+v want ran=%v", r, tc.ran)
			}
		})
	}
}

func TestRun_ConfigurationErrors(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("a", 1, 1, 1, battletest.Floor)
	cases := []struct {
		name   string
		script []ruleset.Directive
	}{
		{"unknown prerequisite", []ruleset.Directive{
			{Type: ruleset.AddFragment, Label: 1},
			{Type: ruleset.AddFragment, Conditionals: []int{4}},
		}},
		{"duplicate label", []ruleset.Directive{
			{Type: ruleset.AddFragment, Label: 1},
			{Type: ruleset.AddFragment, Label: 1},
		}},
		{"resize after placement", []ruleset.Directive{
			{Type: ruleset.AddFragment},
			{Type: ruleset.Resize, Size: []int{3, 3}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newInterpreter(t, fx, 2, 2)
			err := in.Run(tc.script)
			if !errors.Is(err, battle.ErrConfiguration) {
				t.Fatalf("err=%v want ErrConfiguration", err)
			}
		})
	}
}

func TestRun_ResizeBeforePlacement(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("a", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 2, 2)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.Resize, Size: []int{3, 1}},
		{Type: ruleset.FillArea},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.Grid.Width() != 3 || in.Grid.Height() != 1 || in.Grid.Free() != 0 {
		t.Fatalf("grid %dx%d free=%d", in.Grid.Width(), in.Grid.Height(), in.Grid.Free())
	}
}

func TestRun_ChanceZeroSkips(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("a", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 1, 1)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.AddFragment, Label: 1, ExecutionChance: battletest.Chance(0)},
		{Type: ruleset.AddFragment, Label: 2, Conditionals: []int{-1}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.Results[0].Ran || !in.Results[1].Success {
		t.Fatalf("results=%+v", in.Results)
	}
}

func TestRun_FillAreaMixedSizes(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("block", 2, 2, 1, battletest.Floor)
	fx.AddFragment("patch", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 3, 3)
	err := in.Run([]ruleset.Directive{{Type: ruleset.FillArea, Size: []int{2, 2}}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.Grid.Free() != 0 {
		t.Fatalf("free=%d", in.Grid.Free())
	}
	covered := 0
	for _, o := range in.Grid.Origins() {
		covered += o.Fragment.SlotsX() * o.Fragment.SlotsY()
	}
	if covered != 9 {
		t.Fatalf("covered=%d want 9", covered)
	}
}

func TestRun_FillAreaBlockList(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("never", 1, 1, 1, battletest.Floor)
	fx.AddFragment("twice", 1, 1, 1, battletest.Floor)
	fx.AddFragment("rest", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 3, 2)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.FillArea, Blocks: []int{1}, MaxUses: []int{2}},
		{Type: ruleset.FillArea, Blocks: []int{2}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	count := map[string]int{}
	for _, o := range in.Grid.Origins() {
		count[o.Fragment.Name]++
	}
	if count["never"] != 0 || count["twice"] != 2 || count["rest"] != 4 {
		t.Fatalf("counts=%v", count)
	}
}

func TestRun_AddLineBothDirections(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("ew", 1, 1, 1, battletest.Floor, ruleset.GroupEWRoad)
	fx.AddFragment("ns", 1, 1, 1, battletest.Floor, ruleset.GroupNSRoad)
	fx.AddFragment("cross", 1, 1, 1, battletest.Floor, ruleset.GroupCrossing)
	fx.AddFragment("grass", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 3, 3)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.AddLine, Label: 1, Direction: ruleset.DirBoth},
		{Type: ruleset.FillArea},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !in.Results[0].Success {
		t.Fatalf("line failed: %+v", in.Results[0])
	}
	count := map[string]int{}
	for _, o := range in.Grid.Origins() {
		count[o.Fragment.Name]++
	}
	want := map[string]int{"ew": 2, "ns": 2, "cross": 1, "grass": 4}
	for k, v := range want {
		if count[k] != v {
			t.Fatalf("counts=%v want %v", count, want)
		}
	}
}

func TestRun_AddLineBlocked(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("ew", 1, 1, 1, battletest.Floor, ruleset.GroupEWRoad)
	fx.AddFragment("house", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 2, 1)
	in.LineRetries = 3
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.AddFragment, Rects: []ruleset.Rect{{X: 0, Y: 0, W: 1, H: 1}}, Groups: []int{ruleset.GroupDefault}},
		{Type: ruleset.AddLine, Direction: ruleset.DirHorizontal},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if in.Results[1].Success {
		t.Fatalf("line across a house succeeded")
	}
}

func TestRun_AddLineWontCrossWideRoad(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("ew", 1, 1, 1, battletest.Floor, ruleset.GroupEWRoad)
	fx.AddFragment("cross", 1, 1, 1, battletest.Floor, ruleset.GroupCrossing)
	fx.AddFragment("ns_wide", 2, 1, 1, battletest.Floor, ruleset.GroupNSRoad)
	in := newInterpreter(t, fx, 3, 2)
	in.LineRetries = 5
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.AddFragment, Rects: []ruleset.Rect{{X: 1, Y: 1, W: 2, H: 1}}, Groups: []int{ruleset.GroupNSRoad}, Size: []int{2, 1}},
		{Type: ruleset.AddLine, Direction: ruleset.DirHorizontal, Rects: []ruleset.Rect{{X: 0, Y: 1, W: 3, H: 1}}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !in.Results[0].Success {
		t.Fatalf("wide road not placed: %+v", in.Results[0])
	}
	if in.Results[1].Success {
		t.Fatalf("line across a two-slot road succeeded")
	}
	for x := 1; x < 3; x++ {
		if c := in.Grid.Owner(x, 1); c == nil || c.Fragment.Name != "ns_wide" {
			t.Fatalf("slot (%d,1) holds %+v, want ns_wide", x, c)
		}
	}
	if c := in.Grid.Owner(0, 1); c != nil {
		t.Fatalf("slot (0,1) holds %s, want no partial road", c.Fragment.Name)
	}
}

func TestRun_CheckFragment(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("road", 1, 1, 1, battletest.Floor, ruleset.GroupEWRoad)
	in := newInterpreter(t, fx, 2, 1)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.AddFragment, Groups: []int{ruleset.GroupEWRoad}, Rects: []ruleset.Rect{{X: 1, Y: 0, W: 1, H: 1}}},
		{Type: ruleset.CheckFragment, Label: 1, Groups: []int{ruleset.GroupEWRoad}, Rects: []ruleset.Rect{{X: 0, Y: 0, W: 1, H: 1}}},
		{Type: ruleset.CheckFragment, Label: 2, Groups: []int{ruleset.GroupEWRoad}, Rects: []ruleset.Rect{{X: 1, Y: 0, W: 1, H: 1}}},
		{Type: ruleset.CheckFragment, Label: 3},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := []bool{in.Results[1].Success, in.Results[2].Success, in.Results[3].Success}
	if got[0] || !got[1] || !got[2] {
		t.Fatalf("check results=%v", got)
	}
	if in.Grid.Free() != 1 {
		t.Fatalf("check mutated the grid")
	}
}

func TestRun_RemoveThenRefill(t *testing.T) {
	fx := battletest.New(t)
	fx.AddFragment("a", 1, 1, 1, battletest.Floor)
	in := newInterpreter(t, fx, 2, 2)
	err := in.Run([]ruleset.Directive{
		{Type: ruleset.FillArea},
		{Type: ruleset.Remove, Label: 1, Rects: []ruleset.Rect{{X: 0, Y: 0, W: 2, H: 1}}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !in.Results[1].Success || in.Grid.Free() != 2 {
		t.Fatalf("remove: %+v free=%d", in.Results[1], in.Grid.Free())
	}
}

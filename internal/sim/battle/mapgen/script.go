package mapgen

import (
	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/ruleset"
)

// Overlay is a transport fragment waiting to be laid over the loaded grid.
// X and Y are in slots.
type Overlay struct {
	Transport *ruleset.Transport
	Fragment  *ruleset.Fragment
	X, Y      int
}

type DirectiveResult struct {
	Index   int
	Label   int
	Kind    ruleset.DirectiveKind
	Ran     bool
	Success bool
}

// Interpreter runs a map script against a grid.
type Interpreter struct {
	Grid *Grid
	RNG  *battle.RNG

	Craft      *ruleset.Transport
	UFO        *ruleset.Transport
	Transports map[string]*ruleset.Transport

	LineRetries int

	Overlays    []Overlay
	Results     []DirectiveResult
	CraftPlaced bool
}

const defaultLineRetries = 20

// Run executes the directives in order. Only malformed scripts return an
// error; directives that cannot find room are recorded as failures.
func (in *Interpreter) Run(script []ruleset.Directive) error {
	outcome := map[int]bool{}
	for i := range script {
		d := &script[i]
		if d.Label > 0 {
			if _, dup := outcome[d.Label]; dup {
				return battle.Configf("run script", "directive %d: duplicate label %d", i, d.Label)
			}
		}
		ready, err := prerequisitesMet(d, outcome)
		if err != nil {
			return err
		}
		res := DirectiveResult{Index: i, Label: d.Label, Kind: d.Type}
		if ready && in.RNG.Percent(d.Chance()) {
			res.Ran = true
			res.Success, err = in.execute(d)
			if err != nil {
				return err
			}
		}
		if d.Label > 0 {
			outcome[d.Label] = res.Success
		}
		in.Results = append(in.Results, res)
	}
	return nil
}

// prerequisitesMet checks the signed conditionals: +id needs directive id to
// have succeeded, -id needs it to have failed or been skipped.
func prerequisitesMet(d *ruleset.Directive, outcome map[int]bool) (bool, error) {
	for _, c := range d.Conditionals {
		id := c
		if id < 0 {
			id = -id
		}
		succeeded, ok := outcome[id]
		if !ok {
			return false, battle.Configf("run script", "conditional %d refers to a directive that has not run", c)
		}
		if succeeded != (c > 0) {
			return false, nil
		}
	}
	return true, nil
}

func (in *Interpreter) execute(d *ruleset.Directive) (bool, error) {
	switch d.Type {
	case ruleset.Resize:
		return in.resize(d)
	case ruleset.CheckFragment:
		return in.check(d), nil
	case ruleset.Remove:
		return in.Grid.ClearRegion(d.Rects, d.Groups, d.Blocks), nil
	case ruleset.DigTunnel:
		in.Grid.DrillTunnel(d.Tunnel, d.Rects, d.Direction)
		return true, nil
	case ruleset.AddTransport:
		if in.Craft == nil || in.CraftPlaced {
			return false, nil
		}
		ok, err := in.addTransport(d, in.Craft)
		in.CraftPlaced = ok
		return ok, err
	case ruleset.AddUFO:
		tr := in.UFO
		if d.Transport != "" {
			tr = in.Transports[d.Transport]
			if tr == nil {
				return false, battle.Configf("run script", "unknown transport %s", d.Transport)
			}
		}
		if tr == nil {
			return false, nil
		}
		return in.addTransport(d, tr)
	}

	p := newPicker(d, ruleset.GroupDefault)
	success := false
	for n := 0; n < d.Iterations(); n++ {
		var ok bool
		var err error
		switch d.Type {
		case ruleset.AddFragment:
			ok, err = in.addFragment(d, p)
		case ruleset.AddLine:
			ok, err = in.addLine(d)
		case ruleset.FillArea:
			ok, err = in.fillArea(d, p)
		default:
			return false, battle.Configf("run script", "unknown directive type %q", d.Type)
		}
		if err != nil {
			return false, err
		}
		success = success || ok
	}
	return success, nil
}

func (in *Interpreter) resize(d *ruleset.Directive) (bool, error) {
	if in.Grid.Placed() || len(in.Overlays) > 0 {
		return false, battle.Configf("run script", "resize after fragments were placed")
	}
	x, y, z := d.ResizeTo()
	b := in.Grid.b
	if x <= 0 {
		x = in.Grid.w
	}
	if y <= 0 {
		y = in.Grid.h
	}
	if z <= 0 {
		z = b.SizeZ
	}
	in.Grid.Reset(x*slot, y*slot, z)
	return true, nil
}

func (in *Interpreter) check(d *ruleset.Directive) bool {
	rects := d.Rects
	if len(rects) == 0 {
		rects = []ruleset.Rect{{W: in.Grid.w, H: in.Grid.h}}
	}
	for _, r := range rects {
		for j := r.Y; j < r.Y+r.H; j++ {
			for i := r.X; i < r.X+r.W; i++ {
				c := in.Grid.Owner(i, j)
				if c != nil && matches(c.Fragment, d.Groups, d.Blocks) {
					return true
				}
			}
		}
	}
	return false
}

func (in *Interpreter) addFragment(d *ruleset.Directive, p *picker) (bool, error) {
	id, ok := p.draw(in.RNG)
	if !ok {
		return false, nil
	}
	sx, sy := d.SizeSlots()
	f := in.resolve(p, id, sx, sy, nil)
	if f == nil {
		return false, nil
	}
	x, y, ok := in.selectPosition(d.Rects, f.SlotsX(), f.SlotsY(), false)
	if !ok {
		return false, nil
	}
	return in.Grid.Place(x, y, f)
}

// fillArea keeps placing fragments until no candidate fits anywhere in the rects.
func (in *Interpreter) fillArea(d *ruleset.Directive, p *picker) (bool, error) {
	sx, sy := d.SizeSlots()
	tooBig := map[*ruleset.Fragment]bool{}
	success := false
	for {
		id, ok := p.draw(in.RNG)
		if !ok {
			return success, nil
		}
		f := in.resolve(p, id, sx, sy, tooBig)
		if f == nil {
			p.drop(id)
			continue
		}
		x, y, ok := in.selectPosition(d.Rects, f.SlotsX(), f.SlotsY(), false)
		if !ok {
			tooBig[f] = true
			if !p.groups {
				p.drop(id)
			}
			continue
		}
		placed, err := in.Grid.Place(x, y, f)
		if err != nil {
			return false, err
		}
		success = success || placed
	}
}

func (in *Interpreter) addLine(d *ruleset.Directive) (bool, error) {
	switch d.Direction {
	case ruleset.DirHorizontal, ruleset.DirVertical:
		return in.line(d, d.Direction)
	}
	ok, err := in.line(d, ruleset.DirVertical)
	if err != nil || !ok {
		return false, err
	}
	if _, err := in.line(d, ruleset.DirHorizontal); err != nil {
		return false, err
	}
	return true, nil
}

// line lays a road across the whole map. Single-slot perpendicular roads in
// the way become crossings; anything else in the way makes the attempt retry.
func (in *Interpreter) line(d *ruleset.Directive, dir ruleset.Direction) (bool, error) {
	vertical, horizontal, crossing := d.LineGroups()
	add, across, limit := horizontal, vertical, in.Grid.w
	if dir == ruleset.DirVertical {
		add, across, limit = vertical, horizontal, in.Grid.h
	}
	at := func(x, y, k int) (int, int) {
		if dir == ruleset.DirVertical {
			return x, k
		}
		return k, y
	}
	retries := in.LineRetries
	if retries <= 0 {
		retries = defaultLineRetries
	}

	rx, ry, found := 0, 0, false
	for tries := 0; !found; tries++ {
		if tries > retries {
			return false, nil
		}
		x, y, ok := in.selectPosition(d.Rects, 1, 1, false)
		if !ok {
			continue
		}
		found = true
		for k := 0; k < limit; k++ {
			if c := in.Grid.Owner(at(x, y, k)); c != nil && !crossable(c.Fragment, across) {
				found = false
				break
			}
		}
		rx, ry = x, y
	}

	for k := 0; k < limit; k++ {
		cx, cy := at(rx, ry, k)
		if in.Grid.Owner(cx, cy) == nil {
			f := in.randomFragment(add, 1, 1, nil)
			if f == nil {
				in.Grid.b.Warnf("add-line: no single-slot fragment in group %d", add)
				return false, nil
			}
			if ok, err := in.Grid.Place(cx, cy, f); err != nil || !ok {
				return false, err
			}
			continue
		}
		f := in.randomFragment(crossing, 1, 1, nil)
		if f == nil {
			in.Grid.b.Warnf("add-line: no single-slot fragment in crossing group %d", crossing)
			return false, nil
		}
		if ok, err := in.Grid.Replace(cx, cy, f); err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// crossable reports whether a road can turn f into a crossing. Only
// single-slot perpendicular roads can be swapped out in place.
func crossable(f *ruleset.Fragment, across int) bool {
	return f.InGroup(across) && f.SlotsX() == 1 && f.SlotsY() == 1
}

// addTransport reserves a landing zone for one of tr's fragments and fills
// the slots under it from the directive's blocks (landing-zone group by default).
func (in *Interpreter) addTransport(d *ruleset.Directive, tr *ruleset.Transport) (bool, error) {
	frags := tr.Terrain.Fragments
	if len(frags) == 0 {
		return false, nil
	}
	f := frags[in.RNG.Generate(0, len(frags)-1)]
	sx, sy := f.SlotsX(), f.SlotsY()
	x, y, ok := in.selectPosition(d.Rects, sx, sy, true)
	if !ok {
		return false, nil
	}
	in.Grid.Reserve(x, y, sx, sy)
	in.Overlays = append(in.Overlays, Overlay{Transport: tr, Fragment: f, X: x, Y: y})

	p := newPicker(d, ruleset.GroupLandingZone)
	for j := y; j < y+sy; j++ {
		for i := x; i < x+sx; i++ {
			if in.Grid.At(i, j).State != CellEmpty {
				continue
			}
			id, ok := p.draw(in.RNG)
			if !ok {
				continue
			}
			block := in.resolve(p, id, 1, 1, nil)
			if block == nil {
				continue
			}
			if _, err := in.Grid.Place(i, j, block); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// selectPosition picks uniformly among the empty positions where an sx by sy
// fragment fits entirely inside one of the rects.
func (in *Interpreter) selectPosition(rects []ruleset.Rect, sx, sy int, avoidLanding bool) (int, int, bool) {
	if len(rects) == 0 {
		rects = []ruleset.Rect{{W: in.Grid.w, H: in.Grid.h}}
	}
	seen := map[[2]int]bool{}
	var valid [][2]int
	for _, r := range rects {
		for x := r.X; x+sx <= r.X+r.W && x+sx <= in.Grid.w; x++ {
			for y := r.Y; y+sy <= r.Y+r.H && y+sy <= in.Grid.h; y++ {
				k := [2]int{x, y}
				if seen[k] {
					continue
				}
				seen[k] = true
				if !in.Grid.Fits(x, y, sx, sy) || (avoidLanding && in.Grid.Reserved(x, y, sx, sy)) {
					continue
				}
				valid = append(valid, k)
			}
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	p := valid[in.RNG.Generate(0, len(valid)-1)]
	return p[0], p[1], true
}

// randomFragment picks uniformly among the grid terrain's fragments of a
// group that fit the size limit and have uses left.
func (in *Interpreter) randomFragment(group, sx, sy int, exclude map[*ruleset.Fragment]bool) *ruleset.Fragment {
	var cands []*ruleset.Fragment
	for _, f := range in.Grid.terrain.Fragments {
		if !f.InGroup(group) || f.SlotsX() > sx || f.SlotsY() > sy || exclude[f] || !in.usable(f) {
			continue
		}
		cands = append(cands, f)
	}
	if len(cands) == 0 {
		return nil
	}
	return cands[in.RNG.Generate(0, len(cands)-1)]
}

func (in *Interpreter) usable(f *ruleset.Fragment) bool {
	return f.MaxUses <= 0 || in.Grid.Uses(f) < f.MaxUses
}

func (in *Interpreter) resolve(p *picker, id, sx, sy int, exclude map[*ruleset.Fragment]bool) *ruleset.Fragment {
	if p.groups {
		return in.randomFragment(id, sx, sy, exclude)
	}
	frags := in.Grid.terrain.Fragments
	if id < 0 || id >= len(frags) {
		in.Grid.b.Warnf("directive names fragment %d, terrain %s has %d", id, in.Grid.terrain.ID, len(frags))
		return nil
	}
	f := frags[id]
	if exclude[f] || !in.usable(f) {
		return nil
	}
	return f
}

// picker draws group numbers or catalog indices by weight, honouring the
// per-directive use limits. It lives for one directive run.
type picker struct {
	groups bool
	ids    []int
	freqs  []int
	left   []int // -1 is unlimited
}

func newPicker(d *ruleset.Directive, fallback int) *picker {
	p := &picker{groups: true, ids: d.Groups}
	if len(d.Blocks) > 0 {
		p.groups, p.ids = false, d.Blocks
	}
	if len(p.ids) == 0 {
		p.ids = []int{fallback}
	}
	p.ids = append([]int(nil), p.ids...)
	for i := range p.ids {
		freq, left := 1, -1
		if i < len(d.Freqs) && d.Freqs[i] > 0 {
			freq = d.Freqs[i]
		}
		if i < len(d.MaxUses) && d.MaxUses[i] > 0 {
			left = d.MaxUses[i]
		}
		p.freqs = append(p.freqs, freq)
		p.left = append(p.left, left)
	}
	return p
}

func (p *picker) draw(rng *battle.RNG) (int, bool) {
	total := 0
	for _, f := range p.freqs {
		total += f
	}
	if total == 0 {
		return 0, false
	}
	r := rng.Generate(0, total-1)
	for i, f := range p.freqs {
		if r >= f {
			r -= f
			continue
		}
		id := p.ids[i]
		if p.left[i] > 0 {
			p.left[i]--
			if p.left[i] == 0 {
				p.remove(i)
			}
		}
		return id, true
	}
	return 0, false
}

func (p *picker) drop(id int) {
	for i := 0; i < len(p.ids); i++ {
		if p.ids[i] == id {
			p.remove(i)
			i--
		}
	}
}

func (p *picker) remove(i int) {
	p.ids = append(p.ids[:i], p.ids[i+1:]...)
	p.freqs = append(p.freqs[:i], p.freqs[i+1:]...)
	p.left = append(p.left[:i], p.left[i+1:]...)
}

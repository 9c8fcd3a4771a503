// Package snapshot stores a generated battlefield as a zstd stream holding a
// JSON header line followed by a gob body.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"skirmish.dev/internal/sim/battle"
	"skirmish.dev/internal/sim/battle/mapgen"
	"skirmish.dev/internal/sim/encoding"
)

const Version = 1

type Header struct {
	Version    int    `json:"version"`
	Deployment string `json:"deployment"`
	Stage      int    `json:"stage"`
	Seed       int64  `json:"seed"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Terrain string `json:"terrain"`
	Script  string `json:"script"`
	Craft   string `json:"craft,omitempty"`
	UFO     string `json:"ufo,omitempty"`

	SizeX int `json:"size_x"`
	SizeY int `json:"size_y"`
	SizeZ int `json:"size_z"`

	DataSets []DataSetV1 `json:"data_sets"`
	// Layers holds one run-length encoded part layer per part kind.
	Layers     [battle.PartCount]string `json:"layers"`
	Discovered string                   `json:"discovered"`

	Fragments  []FragmentV1  `json:"fragments"`
	Overlays   []FragmentV1  `json:"overlays,omitempty"`
	Nodes      []NodeV1      `json:"nodes"`
	Units      []UnitV1      `json:"units"`
	Items      []ItemV1      `json:"items"`
	Directives []DirectiveV1 `json:"directives,omitempty"`
	Links      int           `json:"links"`
	Warnings   []string      `json:"warnings,omitempty"`
}

type DataSetV1 struct {
	Name     string         `json:"name"`
	Size     int            `json:"size"`
	Specials map[int]string `json:"specials,omitempty"`
	Blocking []int          `json:"blocking,omitempty"`
}

type FragmentV1 struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Name   string `json:"name"`
	Height int    `json:"height"`
}

type LinkV1 struct {
	Kind uint8 `json:"kind"`
	Node int   `json:"node,omitempty"`
	Edge uint8 `json:"edge,omitempty"`
}

type NodeV1 struct {
	ID          int                     `json:"id"`
	Pos         [3]int                  `json:"pos"`
	Segment     int                     `json:"segment"`
	Type        int                     `json:"type"`
	Rank        int                     `json:"rank"`
	Patrol      int                     `json:"patrol"`
	Attack      int                     `json:"attack"`
	SpawnWeight int                     `json:"spawn_weight"`
	Links       [battle.NodeLinks]LinkV1 `json:"links"`
}

type UnitV1 struct {
	ID              int    `json:"id"`
	Type            string `json:"type"`
	Faction         int    `json:"faction"`
	OriginalFaction int    `json:"original_faction"`
	Origin          int    `json:"origin"`
	Status          int    `json:"status"`
	Size            int    `json:"size"`
	Flying          bool   `json:"flying,omitempty"`
	Rank            int    `json:"rank"`
	Pos             [3]int `json:"pos"`
	Direction       int    `json:"direction"`
	SoldierID       string `json:"soldier_id,omitempty"`
}

type ItemV1 struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Owner   int    `json:"owner,omitempty"`
	Slot    string `json:"slot"`
	SlotX   int    `json:"slot_x,omitempty"`
	SlotY   int    `json:"slot_y,omitempty"`
	Pos     [3]int `json:"pos"`
	Weapon  int    `json:"weapon,omitempty"`
	AmmoQty int    `json:"ammo_qty,omitempty"`
	Player  bool   `json:"player,omitempty"`
	Fixed   bool   `json:"fixed,omitempty"`
}

type DirectiveV1 struct {
	Index   int    `json:"index"`
	Label   int    `json:"label,omitempty"`
	Kind    string `json:"kind"`
	Ran     bool   `json:"ran"`
	Success bool   `json:"success"`
}

func pos3(p battle.Position) [3]int { return [3]int{p.X, p.Y, p.Z} }

func unpos3(p [3]int) battle.Position { return battle.Position{X: p[0], Y: p[1], Z: p[2]} }

// Capture copies a battlefield into its snapshot form.
func Capture(bf *mapgen.Battlefield, stage int, seed int64) SnapshotV1 {
	b := bf.Battle
	s := SnapshotV1{
		Header:  Header{Version: Version, Deployment: bf.Deployment.ID, Stage: stage, Seed: seed},
		Terrain: bf.Terrain.ID,
		Script:  bf.Script,
		SizeX:   b.SizeX,
		SizeY:   b.SizeY,
		SizeZ:   b.SizeZ,
		Links:   bf.Links,
	}
	if bf.Craft != nil {
		s.Craft = bf.Craft.ID
	}
	if bf.UFO != nil {
		s.UFO = bf.UFO.ID
	}
	for _, ds := range b.DataSets {
		v := DataSetV1{Name: ds.Name, Size: ds.Size, Specials: map[int]string{}}
		for idx, sp := range ds.Specials {
			v.Specials[idx] = sp.String()
		}
		for idx, blocking := range ds.Blocking {
			if blocking {
				v.Blocking = append(v.Blocking, idx)
			}
		}
		sort.Ints(v.Blocking)
		s.DataSets = append(s.DataSets, v)
	}

	layer := make([]uint32, len(b.Tiles))
	for k := battle.PartKind(0); k < battle.PartCount; k++ {
		for i := range b.Tiles {
			p := b.Tiles[i].Part(k)
			layer[i] = encoding.PackPart(p.DataSet, p.Index)
		}
		s.Layers[k] = encoding.EncodeRuns(layer)
	}
	for i := range b.Tiles {
		layer[i] = 0
		if b.Tiles[i].Discovered {
			layer[i] = 1
		}
	}
	s.Discovered = encoding.EncodeRuns(layer)

	if bf.Grid != nil {
		for _, o := range bf.Grid.Origins() {
			s.Fragments = append(s.Fragments, FragmentV1{X: o.X, Y: o.Y, Name: o.Fragment.Name, Height: o.Height})
		}
	}
	for _, o := range bf.Overlays {
		s.Overlays = append(s.Overlays, FragmentV1{X: o.Origin.X, Y: o.Origin.Y, Name: o.Fragment.Name, Height: o.Height})
	}
	for _, n := range b.Nodes {
		v := NodeV1{
			ID: n.ID, Pos: pos3(n.Pos), Segment: n.Segment, Type: n.Type, Rank: n.Rank,
			Patrol: n.Patrol, Attack: n.Attack, SpawnWeight: n.SpawnWeight,
		}
		for i, l := range n.Links {
			v.Links[i] = LinkV1{Kind: uint8(l.Kind), Node: l.Node, Edge: uint8(l.Edge)}
		}
		s.Nodes = append(s.Nodes, v)
	}
	for _, u := range b.Units {
		s.Units = append(s.Units, UnitV1{
			ID: u.ID, Type: u.Type, Faction: int(u.Faction), OriginalFaction: int(u.OriginalFaction),
			Origin: int(u.Origin), Status: int(u.Status), Size: u.Size, Flying: u.Flying, Rank: u.Rank,
			Pos: pos3(u.Pos), Direction: u.Direction, SoldierID: u.SoldierID,
		})
	}
	for _, it := range b.Items {
		v := ItemV1{
			ID: it.ID, Type: it.Type, Slot: it.Slot, SlotX: it.SlotX, SlotY: it.SlotY,
			Pos: pos3(it.Pos), AmmoQty: it.AmmoQty, Player: it.Player, Fixed: it.Fixed,
		}
		if it.Owner != nil {
			v.Owner = it.Owner.ID
		}
		if it.InWeapon != nil {
			v.Weapon = it.InWeapon.ID
		}
		s.Items = append(s.Items, v)
	}
	for _, d := range bf.Directives {
		s.Directives = append(s.Directives, DirectiveV1{Index: d.Index, Label: d.Label, Kind: string(d.Kind), Ran: d.Ran, Success: d.Success})
	}
	s.Warnings = append(s.Warnings, b.Warnings...)
	return s
}

// Battle rebuilds the tile array, nodes, units and items of a snapshot.
func (s *SnapshotV1) Battle() (*battle.Battle, error) {
	b := battle.New(s.SizeX, s.SizeY, s.SizeZ)
	for _, ds := range s.DataSets {
		v := battle.DataSet{Name: ds.Name, Size: ds.Size, Specials: map[int]battle.SpecialType{}, Blocking: map[int]bool{}}
		for idx, sp := range ds.Specials {
			v.Specials[idx] = battle.ParseSpecial(sp)
		}
		for _, idx := range ds.Blocking {
			v.Blocking[idx] = true
		}
		b.AddDataSets([]battle.DataSet{v})
	}
	for k := battle.PartKind(0); k < battle.PartCount; k++ {
		layer, err := encoding.DecodeRuns(s.Layers[k], len(b.Tiles))
		if err != nil {
			return nil, fmt.Errorf("%s layer: %w", k, err)
		}
		for i, v := range layer {
			ds, idx := encoding.UnpackPart(v)
			if ds >= len(b.DataSets) {
				return nil, fmt.Errorf("%s layer: tile %d names data set %d", k, i, ds)
			}
			b.Tiles[i].SetPart(k, battle.PartRef{DataSet: ds, Index: idx})
		}
	}
	disc, err := encoding.DecodeRuns(s.Discovered, len(b.Tiles))
	if err != nil {
		return nil, fmt.Errorf("discovered layer: %w", err)
	}
	for i, v := range disc {
		b.Tiles[i].Discovered = v != 0
	}

	for _, n := range s.Nodes {
		node := &battle.Node{
			ID: n.ID, Pos: unpos3(n.Pos), Segment: n.Segment, Type: n.Type, Rank: n.Rank,
			Patrol: n.Patrol, Attack: n.Attack, SpawnWeight: n.SpawnWeight,
		}
		for i, l := range n.Links {
			node.Links[i] = battle.Link{Kind: battle.LinkKind(l.Kind), Node: l.Node, Edge: battle.Compass(l.Edge)}
		}
		b.Nodes = append(b.Nodes, node)
	}

	units := map[int]*battle.Unit{}
	for _, v := range s.Units {
		u := &battle.Unit{
			ID: v.ID, Type: v.Type, Faction: battle.Faction(v.Faction), OriginalFaction: battle.Faction(v.OriginalFaction),
			Origin: battle.Origin(v.Origin), Status: battle.Status(v.Status), Size: v.Size, Flying: v.Flying,
			Rank: v.Rank, Pos: battle.NoPosition, Direction: v.Direction, SoldierID: v.SoldierID,
		}
		b.Units = append(b.Units, u)
		units[u.ID] = u
		if p := unpos3(v.Pos); p.OnMap() && !b.SetUnitPosition(u, p) {
			return nil, fmt.Errorf("unit %d does not fit at %v", u.ID, p)
		}
	}
	items := map[int]*battle.Item{}
	for _, v := range s.Items {
		it := &battle.Item{
			ID: v.ID, Type: v.Type, Slot: v.Slot, SlotX: v.SlotX, SlotY: v.SlotY, Pos: battle.NoPosition,
			AmmoQty: v.AmmoQty, Player: v.Player, Fixed: v.Fixed,
		}
		b.Items = append(b.Items, it)
		items[it.ID] = it
	}
	for _, v := range s.Items {
		it := items[v.ID]
		switch {
		case v.Weapon != 0:
			w := items[v.Weapon]
			if w == nil {
				return nil, fmt.Errorf("item %d loaded in missing weapon %d", v.ID, v.Weapon)
			}
			w.Ammo, it.InWeapon = it, w
		case v.Owner != 0:
			u := units[v.Owner]
			if u == nil {
				return nil, fmt.Errorf("item %d held by missing unit %d", v.ID, v.Owner)
			}
			it.Owner = u
			u.Inventory = append(u.Inventory, it)
		default:
			if t := b.Tile(unpos3(v.Pos)); t != nil {
				it.Pos = t.Pos
				t.Items = append(t.Items, it)
			}
		}
	}
	b.Warnings = append(b.Warnings, s.Warnings...)
	return b, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func open(path string) (*os.File, *zstd.Decoder, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}
	return f, dec, bufio.NewReaderSize(dec, 256*1024), nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, dec, br, err := open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	defer dec.Close()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, dec, br, err := open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	defer dec.Close()

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

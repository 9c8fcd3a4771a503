// Command inspect prints a recorded battlefield: either one snapshot or every
// stage of a run directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skirmish.dev/internal/persistence/archive"
	"skirmish.dev/internal/persistence/snapshot"
	"skirmish.dev/internal/sim/battle"
)

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to a stage .snap.zst")
		runDir   = flag.String("run", "", "run directory containing meta.json")
		level    = flag.Int("z", 0, "level to draw, 0 is the ground")
		plain    = flag.Bool("plain", false, "draw without colour or border")
		header   = flag.Bool("header", false, "print only the snapshot header")
	)
	flag.Parse()

	if (*snapPath == "") == (*runDir == "") {
		fmt.Fprintln(os.Stderr, "need exactly one of -snapshot or -run")
		os.Exit(2)
	}

	var paths []string
	if *snapPath != "" {
		paths = []string{*snapPath}
	} else {
		meta, err := archive.ReadMeta(*runDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read meta:", err)
			os.Exit(1)
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("run %s", meta.RunID)) + " " +
			labelStyle.Render(fmt.Sprintf("deployment=%s seed=%d stages=%d", meta.Deployment, meta.Seed, len(meta.Stages))))
		if meta.Error != "" {
			fmt.Println(errStyle.Render("error: " + meta.Error))
		}
		for _, st := range meta.Stages {
			if st.Snapshot != "" {
				paths = append(paths, filepath.Join(*runDir, st.Snapshot))
			}
		}
	}

	for _, p := range paths {
		if *header {
			h, err := snapshot.ReadHeader(p)
			if err != nil {
				fmt.Fprintln(os.Stderr, "read header:", err)
				os.Exit(1)
			}
			fmt.Printf("%s v%d deployment=%s stage=%d seed=%d\n", filepath.Base(p), h.Version, h.Deployment, h.Stage, h.Seed)
			continue
		}
		if err := show(p, *level, *plain); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func show(path string, z int, plain bool) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	b, err := snap.Battle()
	if err != nil {
		return fmt.Errorf("rebuild battle: %w", err)
	}
	if z < 0 || z >= b.SizeZ {
		return fmt.Errorf("level %d outside 0..%d", z, b.SizeZ-1)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("stage %d %s", snap.Header.Stage, snap.Header.Deployment)) + " " +
		labelStyle.Render(fmt.Sprintf("terrain=%s script=%s seed=%d size=%dx%dx%d", snap.Terrain, snap.Script, snap.Header.Seed, b.SizeX, b.SizeY, b.SizeZ)))
	fmt.Println(labelStyle.Render(fmt.Sprintf("fragments=%d overlays=%d nodes=%d links=%d units=%s items=%d",
		len(snap.Fragments), len(snap.Overlays), len(b.Nodes), snap.Links, unitCounts(b), len(b.Items))))

	rows := Level(b, z)
	if plain {
		fmt.Println(strings.Join(rows, "\n"))
	} else {
		fmt.Println(Styled(rows))
	}
	for _, w := range snap.Warnings {
		fmt.Println(warnStyle.Render("warning: " + w))
	}
	return nil
}

func unitCounts(b *battle.Battle) string {
	return fmt.Sprintf("%d/%d/%d",
		len(b.UnitsOf(battle.FactionPlayer)), len(b.UnitsOf(battle.FactionHostile)), len(b.UnitsOf(battle.FactionNeutral)))
}

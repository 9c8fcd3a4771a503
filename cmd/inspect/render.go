package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"skirmish.dev/internal/sim/battle"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	gridStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4A5568"))
	playerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	hostileStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	neutralStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	startStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	exitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	solidStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A5568"))
)

// glyph picks one character per tile. Units win over items, items over route
// nodes, and those over terrain.
func glyph(b *battle.Battle, t *battle.Tile, node bool) rune {
	if u := t.Unit; u != nil {
		r := 'P'
		switch u.Faction {
		case battle.FactionHostile:
			r = 'H'
		case battle.FactionNeutral:
			r = 'C'
		}
		if u.Out() {
			r += 'a' - 'A'
		}
		return r
	}
	if len(t.Items) > 0 {
		return '*'
	}
	if node {
		return 'o'
	}
	if b.Blocked(t) {
		return '#'
	}
	west, north := !t.Parts[battle.PartWestWall].Empty(), !t.Parts[battle.PartNorthWall].Empty()
	switch {
	case west && north:
		return 'L'
	case west:
		return '|'
	case north:
		return '_'
	}
	switch b.Special(t) {
	case battle.SpecialStart:
		return 'S'
	case battle.SpecialExit:
		return 'E'
	}
	if !t.Parts[battle.PartFloor].Empty() {
		return '.'
	}
	return ' '
}

// Level renders one z level as glyph rows, north at the top.
func Level(b *battle.Battle, z int) []string {
	nodes := map[battle.Position]bool{}
	for _, n := range b.Nodes {
		nodes[n.Pos] = true
	}
	rows := make([]string, 0, b.SizeY)
	for y := 0; y < b.SizeY; y++ {
		var sb strings.Builder
		for x := 0; x < b.SizeX; x++ {
			p := battle.Position{X: x, Y: y, Z: z}
			sb.WriteRune(glyph(b, b.Tile(p), nodes[p]))
		}
		rows = append(rows, sb.String())
	}
	return rows
}

func styleGlyph(r rune) string {
	s := string(r)
	switch r {
	case 'P', 'p':
		return playerStyle.Render(s)
	case 'H', 'h':
		return hostileStyle.Render(s)
	case 'C', 'c', '*':
		return neutralStyle.Render(s)
	case 'S':
		return startStyle.Render(s)
	case 'E':
		return exitStyle.Render(s)
	case '#', '|', '_', 'L':
		return solidStyle.Render(s)
	case 'o', '.':
		return dimStyle.Render(s)
	}
	return s
}

// Styled frames rows in a border and colours each glyph.
func Styled(rows []string) string {
	out := make([]string, len(rows))
	for i, row := range rows {
		var sb strings.Builder
		for _, r := range row {
			sb.WriteString(styleGlyph(r))
		}
		out[i] = sb.String()
	}
	return gridStyle.Render(strings.Join(out, "\n"))
}

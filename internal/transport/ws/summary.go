package ws

import (
	"skirmish.dev/internal/protocol"
	"skirmish.dev/internal/sim/mission"
)

// Summarize converts a mission result into RESULT stages. err, when set, is
// reported against the last stage reached.
func Summarize(res *mission.Result, err error) protocol.ResultMsg {
	msg := protocol.ResultMsg{Stages: []protocol.StageSummary{}}
	if res != nil {
		for _, st := range res.Stages {
			if st.Field == nil {
				continue
			}
			msg.Stages = append(msg.Stages, stageSummary(st))
		}
	}
	if err != nil {
		stage := 0
		if res != nil && len(res.Stages) > 0 {
			stage = res.Last().Index
		}
		msg.Error = &protocol.ErrorInfo{Code: protocol.CodeFor(err), Stage: stage, Message: err.Error()}
	}
	return msg
}

func stageSummary(st *mission.Stage) protocol.StageSummary {
	bf := st.Field
	b := bf.Battle
	sum := protocol.StageSummary{
		Stage:      st.Index,
		Deployment: bf.Deployment.ID,
		Terrain:    bf.Terrain.ID,
		Script:     bf.Script,
		Seed:       st.Seed,
		Size:       [3]int{b.SizeX, b.SizeY, b.SizeZ},
		Nodes:      len(b.Nodes),
		Links:      bf.Links,
		Warnings:   b.Warnings,
	}
	if g := bf.Grid; g != nil {
		sum.Layout = make([][]string, g.Height())
		for y := range sum.Layout {
			row := make([]string, g.Width())
			for x := range row {
				if c := g.Owner(x, y); c != nil {
					row[x] = c.Fragment.Name
				}
			}
			sum.Layout[y] = row
		}
	}
	for _, o := range bf.Overlays {
		sum.Overlays = append(sum.Overlays, protocol.Overlay{
			Transport: o.Transport.ID,
			Fragment:  o.Fragment.Name,
			Pos:       [3]int{o.Origin.X, o.Origin.Y, o.Origin.Z},
		})
	}
	if r := st.Report; r != nil {
		sum.Players, sum.Hostiles, sum.Civilians, sum.Dropped = r.Players, r.Hostiles, r.Civilians, r.Dropped
	}
	return sum
}

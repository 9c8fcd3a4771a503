package protocol

import "skirmish.dev/internal/sim/battle/deploy"

// GENERATE (client -> server)
type GenerateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`

	Deployment string `json:"deployment"`
	Terrain    string `json:"terrain,omitempty"`
	Craft      string `json:"craft,omitempty"`
	UFO        string `json:"ufo,omitempty"`
	Seed       int64  `json:"seed"`

	Month      int            `json:"month,omitempty"`
	Mitigation int            `json:"mitigation,omitempty"`
	Roster     *deploy.Roster `json:"roster,omitempty"`
	Researched []string       `json:"researched,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	RunID           string `json:"run_id,omitempty"`

	Stages []StageSummary `json:"stages"`
	Error  *ErrorInfo     `json:"error,omitempty"`
}

type StageSummary struct {
	Stage      int    `json:"stage"`
	Deployment string `json:"deployment"`
	Terrain    string `json:"terrain"`
	Script     string `json:"script"`
	Seed       int64  `json:"seed"`
	Size       [3]int `json:"size"`

	// Layout names the fragment covering each slot, row by row.
	Layout   [][]string `json:"layout"`
	Overlays []Overlay  `json:"overlays,omitempty"`

	Nodes     int `json:"nodes"`
	Links     int `json:"links"`
	Players   int `json:"players"`
	Hostiles  int `json:"hostiles"`
	Civilians int `json:"civilians"`
	Dropped   int `json:"dropped"`

	Warnings []string `json:"warnings,omitempty"`
}

type Overlay struct {
	Transport string `json:"transport"`
	Fragment  string `json:"fragment"`
	Pos       [3]int `json:"pos"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Stage   int    `json:"stage"`
	Message string `json:"message"`
}

package pactrecord

import "encoding/json"

// Status mirrors the controller's /status payload.
type Status struct {
	SessionID     string `json:"sessionId"`
	Uptime        string `json:"uptime"`
	Mode          string `json:"mode"`
	RecordingMode string `json:"recordingMode"`
	StrictMocking bool   `json:"strictMocking"`
	CurrentPact   string `json:"currentPact,omitempty"`
	Records       int    `json:"records"`
}

// CurrentPact selects or creates the active pact on the controller.
type CurrentPact struct {
	ID            string   `json:"id,omitempty"`
	Title         []string `json:"title,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	RecordingMode string   `json:"recordingMode,omitempty"`
	StrictMocking *bool    `json:"strictMocking,omitempty"`
	Clear         bool     `json:"clear,omitempty"`
}

// Pact is the client-side view of the active pact.
type Pact struct {
	ID      string          `json:"id"`
	Info    json.RawMessage `json:"info"`
	Records json.RawMessage `json:"records"`
}

package models

import "time"

// Finding is one normalized vulnerability record
type Finding struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Location    string    `json:"location,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
	References  []string  `json:"references"`
	Source      string    `json:"source,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// SeverityCounts is the per-bucket histogram of a finding set
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
	Info   int `json:"info"`
}

// Total returns the number of bucketed findings.
func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low + c.Info
}

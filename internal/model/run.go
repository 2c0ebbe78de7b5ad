package model

import (
	"encoding/json"
	"time"
)

// RunMode is whether a run writes to the store.
type RunMode string

// Run modes.
const (
	ModeDryRun RunMode = "dry_run"
	ModeApply  RunMode = "apply"
)

// RunStatus is the terminal state of a reconciliation run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted reconciliation run and its report.
type Run struct {
	ID        string          `json:"id"`
	Mode      RunMode         `json:"mode"`
	Status    RunStatus       `json:"status"`
	ExitCode  int             `json:"exit_code"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Sources   []string        `json:"sources"`
	Applied   int             `json:"applied"`
	Rejected  int             `json:"rejected"`
	Unchanged int             `json:"unchanged"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
}

// Reference is a seed of members, committees and memberships.
type Reference struct {
	Members     []Member     `json:"members" yaml:"members"`
	Committees  []Committee  `json:"committees" yaml:"committees"`
	Memberships []Membership `json:"memberships" yaml:"memberships"`
}

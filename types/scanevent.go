package types

import "time"

// Scan actions accepted by the resolver.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionScan       = "scan"
)

// ScanEvent is one entry of the append-only scan log. Events are created
// exactly once per successful resolution and never mutated or deleted.
type ScanEvent struct {
	// ID is the sequence number assigned by the log.
	ID int64 `json:"id" db:"id"`

	// QRID references the scanned code. The reference is weak: the event
	// survives deletion of the record as a historical fact.
	QRID string `json:"qrId" db:"qr_id"`

	// Action is the requested transition ("activate", "deactivate" or
	// the generic "scanned" marker).
	Action string `json:"action" db:"action"`

	// Timestamp is the time of the scan, set by the resolver.
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

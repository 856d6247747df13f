package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of event an audit entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionBackup Action = "backup"
	ActionExport Action = "export"
)

// Valid reports whether the action is one of the known audit actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionView, ActionUpdate, ActionDelete, ActionBackup, ActionExport:
		return true
	}
	return false
}

// Entry maps to the audit_entry table. Entries are append-only facts:
// once written they are never updated or deleted, and they survive
// soft-deletion of the record they describe.
type Entry struct {
	ID        int64                  `db:"id" json:"id"`
	RecordID  *uuid.UUID             `db:"record_id" json:"record_id,omitempty"`
	PatientID uuid.UUID              `db:"patient_id" json:"patient_id"`
	ActorID   uuid.UUID              `db:"actor_id" json:"actor_id"`
	ActorRole string                 `db:"actor_role" json:"actor_role"`
	Action    Action                 `db:"action" json:"action"`
	Metadata  map[string]interface{} `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// QueryOptions narrows patient-scope and actor-scope audit listings.
type QueryOptions struct {
	Limit  int
	Offset int
	From   *time.Time
	To     *time.Time
}

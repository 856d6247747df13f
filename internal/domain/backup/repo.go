package backup

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists backups. Create is idempotent per
// (record id, version number): a second request for an already captured
// version returns the stored backup with created=false instead of
// duplicating it.
type Repository interface {
	Create(ctx context.Context, b *Backup) (created bool, err error)
	// ListByPatient returns a patient's backups newest first.
	// includeDeleted controls whether backups of soft-deleted records
	// appear; those stay visible to staff only.
	ListByPatient(ctx context.Context, patientID uuid.UUID, includeDeleted bool, limit, offset int) ([]*Backup, int, error)
	Stats(ctx context.Context, patientID uuid.UUID) (*Stats, error)
}

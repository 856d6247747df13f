package records

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists records and their version chains. Get excludes
// soft-deleted records; GetAny includes them so staff can reach retained
// history. AdvanceVersion is the serialization point for concurrent
// writers: it must guarantee that for a given expected version number at
// most one caller succeeds.
type Repository interface {
	// CreateWithVersion inserts a record and its version 1 together.
	// Callers run it inside a transaction so the two commit as one.
	CreateWithVersion(ctx context.Context, r *Record, v *Version) error

	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	GetAny(ctx context.Context, id uuid.UUID) (*Record, error)

	// AdvanceVersion performs the compare-and-swap: it appends v as
	// version expected+1 and moves the head pointer, but only if the
	// record still sits at the expected version. A lost race returns
	// apperr.ErrConflict; v.VersionNo and v.ID must be pre-filled by
	// the caller.
	AdvanceVersion(ctx context.Context, recordID uuid.UUID, expected int, v *Version, patch MetadataPatch) error

	SoftDelete(ctx context.Context, id uuid.UUID) error

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ListVersions(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Version, int, error)
	GetVersion(ctx context.Context, recordID uuid.UUID, versionNo int) (*Version, error)
	CurrentVersion(ctx context.Context, recordID uuid.UUID) (*Version, error)
}

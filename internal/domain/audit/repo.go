package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists and queries audit entries. Create participates in
// the caller's transaction when one is carried in the context, so a
// mutation and its audit entry commit as a single unit.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	ListByRecord(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, opts QueryOptions) ([]*Entry, int, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, opts QueryOptions) ([]*Entry, int, error)
}

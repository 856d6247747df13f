package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
)

// RecordOwnership resolves the owning patient and authoring doctor of a
// record so record-scoped trail queries can be authorized. The records
// domain provides the implementation; audit never imports it.
type RecordOwnership interface {
	Ownership(ctx context.Context, recordID uuid.UUID) (patientID, doctorID uuid.UUID, err error)
}

// Service answers audit-trail queries and appends entries on behalf of
// the other domains.
type Service struct {
	repo      Repository
	gate      *auth.Gate
	ownership RecordOwnership
}

func NewService(repo Repository, gate *auth.Gate, ownership RecordOwnership) *Service {
	return &Service{repo: repo, gate: gate, ownership: ownership}
}

// Append validates and persists an audit entry. Callers invoke it inside
// their own transaction so the entry commits together with the mutation
// it describes.
func (s *Service) Append(ctx context.Context, e *Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("%w: unknown audit action %q", apperr.ErrValidation, e.Action)
	}
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("%w: audit entry requires a patient id", apperr.ErrValidation)
	}
	if e.ActorID == uuid.Nil {
		return fmt.Errorf("%w: audit entry requires an actor id", apperr.ErrValidation)
	}
	return s.repo.Create(ctx, e)
}

// RecordTrail returns the audit trail of a single record, newest first.
func (s *Service) RecordTrail(ctx context.Context, actor auth.Actor, recordID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	patientID, doctorID, err := s.ownership.Ownership(ctx, recordID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordAudit, auth.Target{
		PatientID:      patientID,
		AuthorDoctorID: doctorID,
	}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByRecord(ctx, recordID, limit, offset)
}

// PatientTrail returns every audit entry touching a patient's records.
func (s *Service) PatientTrail(ctx context.Context, actor auth.Actor, patientID uuid.UUID, opts QueryOptions) ([]*Entry, int, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpPatientAudit, auth.Target{PatientID: patientID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, opts)
}

// DoctorActivity returns the entries a doctor generated across all
// patients, for self-review and administrative oversight.
func (s *Service) DoctorActivity(ctx context.Context, actor auth.Actor, doctorID uuid.UUID, opts QueryOptions) ([]*Entry, int, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpDoctorActivity, auth.Target{AuthorDoctorID: doctorID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByActor(ctx, doctorID, opts)
}

package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
)

// Operation names a record-store action submitted to the gate.
type Operation string

const (
	OpRecordCreate   Operation = "record.create"
	OpRecordRead     Operation = "record.read"
	OpRecordUpdate   Operation = "record.update"
	OpRecordDelete   Operation = "record.delete"
	OpVersionRead    Operation = "version.read"
	OpRecordAudit    Operation = "audit.record"
	OpPatientAudit   Operation = "audit.patient"
	OpDoctorActivity Operation = "audit.doctor"
	OpBackupCreate   Operation = "backup.create"
	OpBackupList     Operation = "backup.list"
	OpExport         Operation = "export"
	OpBackupStats    Operation = "backup.stats"
)

// Target describes the resource an operation acts on: the owning patient
// and, for record-scoped operations, the record's authoring doctor.
type Target struct {
	PatientID      uuid.UUID
	AuthorDoctorID uuid.UUID
}

// RelationshipChecker reports whether a doctor has an active clinical
// relationship with a patient. The actual relationship data (bookings,
// care assignments) lives outside the record store.
type RelationshipChecker interface {
	HasActiveRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}

// RelationshipCheckerFunc adapts a function to the RelationshipChecker interface.
type RelationshipCheckerFunc func(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

func (f RelationshipCheckerFunc) HasActiveRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return f(ctx, doctorID, patientID)
}

// Gate is the single access-control decision point for the record store.
// Every service consults it before touching records, audit trails, or
// backups.
//
// When an actor has no relationship at all to the target patient the gate
// answers ErrNotFound rather than ErrForbidden, so that responses do not
// reveal whether the resource exists.
type Gate struct {
	rel RelationshipChecker
}

func NewGate(rel RelationshipChecker) *Gate {
	return &Gate{rel: rel}
}

// adminOps are the read-only operations granted to administrators. Admins
// never mutate clinical content.
var adminOps = map[Operation]bool{
	OpRecordRead:     true,
	OpVersionRead:    true,
	OpRecordAudit:    true,
	OpPatientAudit:   true,
	OpDoctorActivity: true,
	OpBackupList:     true,
	OpBackupStats:    true,
}

// patientOps are the self-scoped operations granted to patients.
var patientOps = map[Operation]bool{
	OpRecordRead:  true,
	OpVersionRead: true,
	OpRecordAudit: true,
	OpBackupList:  true,
	OpExport:      true,
}

// Authorize decides whether the actor may perform op against the target.
// It returns nil to allow, apperr.ErrForbidden to deny, or
// apperr.ErrNotFound when the denial must hide the target's existence.
func (g *Gate) Authorize(ctx context.Context, actor Actor, op Operation, target Target) error {
	switch actor.Role {
	case RoleAdmin:
		if adminOps[op] {
			return nil
		}
		return fmt.Errorf("%w: admins have read-only access", apperr.ErrForbidden)

	case RolePatient:
		if actor.ID != target.PatientID {
			// A patient has no entitlement to learn about other
			// patients' resources.
			return apperr.ErrNotFound
		}
		if patientOps[op] {
			return nil
		}
		return fmt.Errorf("%w: patients are limited to viewing their own records", apperr.ErrForbidden)

	case RoleDoctor:
		authored := actor.ID == target.AuthorDoctorID
		if op == OpDoctorActivity {
			// A doctor may review their own activity; target carries
			// the doctor id in AuthorDoctorID for this operation.
			if authored {
				return nil
			}
			return fmt.Errorf("%w: activity reports are limited to the doctor themselves", apperr.ErrForbidden)
		}

		related := authored
		if !related {
			var err error
			related, err = g.rel.HasActiveRelationship(ctx, actor.ID, target.PatientID)
			if err != nil {
				return fmt.Errorf("relationship check: %w", err)
			}
		}
		if !related {
			return apperr.ErrNotFound
		}

		switch op {
		case OpRecordDelete:
			// Only the authoring doctor may retire a record.
			if authored {
				return nil
			}
			return fmt.Errorf("%w: deletion is limited to the authoring doctor", apperr.ErrForbidden)
		case OpRecordAudit:
			// Audit trails are visible only to the record's author.
			if authored {
				return nil
			}
			return fmt.Errorf("%w: audit trail is limited to the authoring doctor", apperr.ErrForbidden)
		case OpBackupStats:
			return fmt.Errorf("%w: backup statistics are admin-only", apperr.ErrForbidden)
		default:
			return nil
		}
	}

	return fmt.Errorf("%w: unknown role %q", apperr.ErrForbidden, actor.Role)
}

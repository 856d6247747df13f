package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/domain/audit"
	"github.com/Jeewaka-MediCare/record-service/internal/domain/records"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/db"
)

// exportPageSize is how many records one repository read fetches while
// assembling an export bundle.
const exportPageSize = 500

// RecordStore is the slice of the records repository the engine reads
// through: head pointers and record shells, never the chain internals.
type RecordStore interface {
	GetAny(ctx context.Context, id uuid.UUID) (*records.Record, error)
	CurrentVersion(ctx context.Context, recordID uuid.UUID) (*records.Version, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*records.Record, int, error)
}

// AuditLog is the audit-appending dependency, satisfied by the audit
// service.
type AuditLog interface {
	Append(ctx context.Context, e *audit.Entry) error
}

// Service is the backup and export engine: point-in-time snapshots of
// single records, aggregated patient exports, and admin statistics.
type Service struct {
	repo     Repository
	store    RecordStore
	gate     *auth.Gate
	tx       db.TxManager
	auditLog AuditLog
}

func NewService(repo Repository, store RecordStore, gate *auth.Gate, tx db.TxManager, auditLog AuditLog) *Service {
	return &Service{repo: repo, store: store, gate: gate, tx: tx, auditLog: auditLog}
}

// BackupRecord snapshots a record's current version. Repeating the call
// while the record sits at the same version returns the existing backup.
func (s *Service) BackupRecord(ctx context.Context, actor auth.Actor, recordID uuid.UUID) (*Backup, bool, error) {
	rec, err := s.store.GetAny(ctx, recordID)
	if err != nil {
		return nil, false, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpBackupCreate, auth.Target{
		PatientID:      rec.PatientID,
		AuthorDoctorID: rec.DoctorID,
	}); err != nil {
		return nil, false, err
	}

	v, err := s.store.CurrentVersion(ctx, recordID)
	if err != nil {
		return nil, false, err
	}

	b := &Backup{
		ID:        uuid.New(),
		RecordID:  rec.ID,
		PatientID: rec.PatientID,
		VersionNo: v.VersionNo,
		Content:   v.Content,
		Size:      v.ContentSize,
	}

	var created bool
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, b)
		if err != nil {
			return err
		}
		if !created {
			// Nothing new was captured, so nothing new is logged.
			return nil
		}
		return s.auditLog.Append(ctx, &audit.Entry{
			RecordID:  &rec.ID,
			PatientID: rec.PatientID,
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    audit.ActionBackup,
			Metadata:  map[string]interface{}{"version_no": v.VersionNo, "size": v.ContentSize},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return b, created, nil
}

// ListPatientBackups returns a patient's backups newest first. Backups
// of soft-deleted records stay visible to doctors and admins only.
func (s *Service) ListPatientBackups(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit, offset int) ([]*Backup, int, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpBackupList, auth.Target{PatientID: patientID}); err != nil {
		return nil, 0, err
	}
	includeDeleted := actor.Role != auth.RolePatient
	return s.repo.ListByPatient(ctx, patientID, includeDeleted, limit, offset)
}

// ExportPatientRecords assembles the current version of every active
// record into one bundle and logs a single export audit entry. Each
// record is pinned individually at its latest committed version; the
// bundle as a whole is not a cross-record transaction.
func (s *Service) ExportPatientRecords(ctx context.Context, actor auth.Actor, patientID uuid.UUID) (*ExportBundle, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpExport, auth.Target{PatientID: patientID}); err != nil {
		return nil, err
	}

	recs, total, err := s.store.ListByPatient(ctx, patientID, exportPageSize, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: patient has no records to export", apperr.ErrNotFound)
	}
	// The bundle must carry every active record, so page until the
	// repository's total is reached. A short page before that point means
	// the set could not be fully read and the export must not pretend
	// otherwise.
	for len(recs) < total {
		page, t, err := s.store.ListByPatient(ctx, patientID, exportPageSize, len(recs))
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("export read %d of %d records for patient %s", len(recs), total, patientID)
		}
		recs = append(recs, page...)
		total = t
	}

	bundle := &ExportBundle{
		PatientID:   patientID,
		GeneratedAt: time.Now().UTC(),
		Records:     make([]ExportItem, 0, len(recs)),
	}
	for _, rec := range recs {
		v, err := s.store.CurrentVersion(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("pin record %s: %w", rec.ID, err)
		}
		bundle.Records = append(bundle.Records, ExportItem{Record: rec, Version: v})
	}
	bundle.RecordCount = len(bundle.Records)

	if err := s.auditLog.Append(ctx, &audit.Entry{
		PatientID: patientID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    audit.ActionExport,
		Metadata:  map[string]interface{}{"record_count": bundle.RecordCount},
	}); err != nil {
		return nil, err
	}
	return bundle, nil
}

// AdminBackupStats aggregates a patient's backup footprint.
func (s *Service) AdminBackupStats(ctx context.Context, actor auth.Actor, patientID uuid.UUID) (*Stats, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpBackupStats, auth.Target{PatientID: patientID}); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, patientID)
}

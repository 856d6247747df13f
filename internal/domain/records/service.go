package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/domain/audit"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/db"
)

// AuditLog is the slice of the audit domain the record service needs:
// appending entries inside its own transactions.
type AuditLog interface {
	Append(ctx context.Context, e *audit.Entry) error
}

// Service owns the version-chain invariants: gap-free numbering, a single
// head pointer per record, and one audit entry committed with every
// mutation.
type Service struct {
	repo     Repository
	gate     *auth.Gate
	tx       db.TxManager
	auditLog AuditLog
}

func NewService(repo Repository, gate *auth.Gate, tx db.TxManager, auditLog AuditLog) *Service {
	return &Service{repo: repo, gate: gate, tx: tx, auditLog: auditLog}
}

// SetAuditLog binds the audit sink after construction. The audit service
// itself depends on this service for ownership lookups, so one of the two
// has to be wired late.
func (s *Service) SetAuditLog(l AuditLog) { s.auditLog = l }

// CreateInput is the payload for opening a new record.
type CreateInput struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Content     string   `json:"content"`
	ChangeNote  string   `json:"change_note,omitempty"`
}

// UpdateInput is the payload for appending a version. ExpectedVersion is
// the version number the caller last read; the write succeeds only if
// the record still sits there.
type UpdateInput struct {
	Content         string   `json:"content"`
	ChangeNote      string   `json:"change_note,omitempty"`
	ExpectedVersion int      `json:"expected_version"`
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Create opens a record together with its version 1 in one unit of work.
func (s *Service) Create(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in CreateInput) (*Record, *Version, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordCreate, auth.Target{PatientID: patientID}); err != nil {
		return nil, nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, nil, fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, nil, fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	if in.ChangeNote == "" {
		in.ChangeNote = "initial version"
	}

	rec := &Record{
		ID:          uuid.New(),
		PatientID:   patientID,
		DoctorID:    actor.ID,
		Title:       in.Title,
		Description: in.Description,
		Tags:        normalizeTags(in.Tags),
	}
	v := &Version{
		ID:          uuid.New(),
		Content:     in.Content,
		ContentSize: len(in.Content),
		ChangeNote:  in.ChangeNote,
		AuthorID:    actor.ID,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateWithVersion(ctx, rec, v); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, &audit.Entry{
			RecordID:  &rec.ID,
			PatientID: rec.PatientID,
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    audit.ActionCreate,
			Metadata:  map[string]interface{}{"version_no": 1, "title": rec.Title},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, v, nil
}

// Get returns a record with its current version's content. Soft-deleted
// records stay readable to doctors and admins for audit purposes but are
// hidden from patients.
func (s *Service) Get(ctx context.Context, actor auth.Actor, recordID uuid.UUID) (*Record, *Version, error) {
	rec, err := s.repo.GetAny(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordRead, targetOf(rec)); err != nil {
		return nil, nil, err
	}
	if rec.Deleted() && actor.Role == auth.RolePatient {
		return nil, nil, apperr.ErrNotFound
	}

	v, err := s.repo.CurrentVersion(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.auditLog.Append(ctx, viewEntry(rec, actor, v.VersionNo)); err != nil {
		return nil, nil, err
	}
	return rec, v, nil
}

// Update appends a new version and advances the head pointer, but only
// if the record still sits at in.ExpectedVersion. A lost race returns a
// *ConflictError carrying the actual current version.
func (s *Service) Update(ctx context.Context, actor auth.Actor, recordID uuid.UUID, in UpdateInput) (*Record, *Version, error) {
	rec, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordUpdate, targetOf(rec)); err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(in.Content) == "" {
		return nil, nil, fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	if in.ExpectedVersion < 1 {
		return nil, nil, fmt.Errorf("%w: expected_version must be at least 1", apperr.ErrValidation)
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, nil, fmt.Errorf("%w: title may not be blank", apperr.ErrValidation)
	}

	v := &Version{
		ID:          uuid.New(),
		Content:     in.Content,
		ContentSize: len(in.Content),
		ChangeNote:  in.ChangeNote,
		AuthorID:    actor.ID,
	}
	patch := MetadataPatch{Title: in.Title, Description: in.Description, Tags: normalizeTags(in.Tags)}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.AdvanceVersion(ctx, recordID, in.ExpectedVersion, v, patch); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, &audit.Entry{
			RecordID:  &rec.ID,
			PatientID: rec.PatientID,
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    audit.ActionUpdate,
			Metadata:  map[string]interface{}{"version_no": in.ExpectedVersion + 1},
		})
	})
	if errors.Is(err, apperr.ErrConflict) {
		cur, curErr := s.repo.CurrentVersion(ctx, recordID)
		if curErr != nil {
			return nil, nil, curErr
		}
		return nil, nil, &ConflictError{Current: cur}
	}
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.repo.GetAny(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	return updated, v, nil
}

// Delete soft-deletes a record. The version chain and audit trail are
// retained.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, recordID uuid.UUID) error {
	rec, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordDelete, targetOf(rec)); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SoftDelete(ctx, recordID); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, &audit.Entry{
			RecordID:  &rec.ID,
			PatientID: rec.PatientID,
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    audit.ActionDelete,
			Metadata:  map[string]interface{}{"version_no": rec.CurrentVersionNo},
		})
	})
}

// ListPatientRecords returns a patient's active records, most recently
// updated first.
func (s *Service) ListPatientRecords(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	if err := s.gate.Authorize(ctx, actor, auth.OpRecordRead, auth.Target{PatientID: patientID}); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListVersions returns a record's version history, newest first.
func (s *Service) ListVersions(ctx context.Context, actor auth.Actor, recordID uuid.UUID, limit, offset int) ([]*Version, int, error) {
	rec, err := s.repo.GetAny(ctx, recordID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpVersionRead, targetOf(rec)); err != nil {
		return nil, 0, err
	}
	if rec.Deleted() && actor.Role == auth.RolePatient {
		return nil, 0, apperr.ErrNotFound
	}
	return s.repo.ListVersions(ctx, recordID, limit, offset)
}

// GetVersion returns one exact historical snapshot.
func (s *Service) GetVersion(ctx context.Context, actor auth.Actor, recordID uuid.UUID, versionNo int) (*Version, error) {
	rec, err := s.repo.GetAny(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, auth.OpVersionRead, targetOf(rec)); err != nil {
		return nil, err
	}
	if rec.Deleted() && actor.Role == auth.RolePatient {
		return nil, apperr.ErrNotFound
	}

	v, err := s.repo.GetVersion(ctx, recordID, versionNo)
	if err != nil {
		return nil, err
	}
	if err := s.auditLog.Append(ctx, viewEntry(rec, actor, versionNo)); err != nil {
		return nil, err
	}
	return v, nil
}

// Ownership resolves who a record belongs to. It satisfies the audit
// domain's RecordOwnership dependency.
func (s *Service) Ownership(ctx context.Context, recordID uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	rec, err := s.repo.GetAny(ctx, recordID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return rec.PatientID, rec.DoctorID, nil
}

func targetOf(rec *Record) auth.Target {
	return auth.Target{PatientID: rec.PatientID, AuthorDoctorID: rec.DoctorID}
}

func viewEntry(rec *Record, actor auth.Actor, versionNo int) *audit.Entry {
	return &audit.Entry{
		RecordID:  &rec.ID,
		PatientID: rec.PatientID,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    audit.ActionView,
		Metadata:  map[string]interface{}{"version_no": versionNo},
	}
}

// normalizeTags lowercases, trims, dedupes, and sorts. A nil result
// means "no change" to MetadataPatch consumers, so empty input stays nil.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

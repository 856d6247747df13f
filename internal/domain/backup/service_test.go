package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/domain/audit"
	"github.com/Jeewaka-MediCare/record-service/internal/domain/records"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/auth"
)

type mockRepo struct {
	backups []*Backup
}

func (m *mockRepo) Create(ctx context.Context, b *Backup) (bool, error) {
	for _, existing := range m.backups {
		if existing.RecordID == b.RecordID && existing.VersionNo == b.VersionNo {
			*b = *existing
			return false, nil
		}
	}
	b.CreatedAt = time.Now().UTC()
	stored := *b
	m.backups = append(m.backups, &stored)
	return true, nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, includeDeleted bool, limit, offset int) ([]*Backup, int, error) {
	var out []*Backup
	for _, b := range m.backups {
		if b.PatientID == patientID {
			out = append(out, b)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) Stats(ctx context.Context, patientID uuid.UUID) (*Stats, error) {
	s := &Stats{PatientID: patientID}
	for _, b := range m.backups {
		if b.PatientID != patientID {
			continue
		}
		s.TotalBackups++
		s.TotalBytes += int64(b.Size)
		created := b.CreatedAt
		if s.OldestBackup == nil || created.Before(*s.OldestBackup) {
			s.OldestBackup = &created
		}
		if s.NewestBackup == nil || created.After(*s.NewestBackup) {
			s.NewestBackup = &created
		}
	}
	return s, nil
}

type mockStore struct {
	records  map[uuid.UUID]*records.Record
	versions map[uuid.UUID]*records.Version
}

func newMockStore() *mockStore {
	return &mockStore{
		records:  make(map[uuid.UUID]*records.Record),
		versions: make(map[uuid.UUID]*records.Version),
	}
}

func (m *mockStore) add(patientID, doctorID uuid.UUID, title, content string, deleted bool) *records.Record {
	rec := &records.Record{
		ID:               uuid.New(),
		PatientID:        patientID,
		DoctorID:         doctorID,
		Title:            title,
		CurrentVersionNo: 1,
	}
	v := &records.Version{
		ID:          uuid.New(),
		RecordID:    rec.ID,
		VersionNo:   1,
		Content:     content,
		ContentSize: len(content),
		AuthorID:    doctorID,
	}
	rec.CurrentVersionID = v.ID
	if deleted {
		now := time.Now().UTC()
		rec.DeletedAt = &now
	}
	m.records[rec.ID] = rec
	m.versions[rec.ID] = v
	return rec
}

func (m *mockStore) advance(recordID uuid.UUID, content string) {
	rec := m.records[recordID]
	rec.CurrentVersionNo++
	v := &records.Version{
		ID:          uuid.New(),
		RecordID:    recordID,
		VersionNo:   rec.CurrentVersionNo,
		Content:     content,
		ContentSize: len(content),
	}
	rec.CurrentVersionID = v.ID
	m.versions[recordID] = v
}

func (m *mockStore) GetAny(ctx context.Context, id uuid.UUID) (*records.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return rec, nil
}

func (m *mockStore) CurrentVersion(ctx context.Context, recordID uuid.UUID) (*records.Version, error) {
	v, ok := m.versions[recordID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*records.Record, int, error) {
	var all []*records.Record
	for _, rec := range m.records {
		if rec.PatientID == patientID && rec.DeletedAt == nil {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

type passTxManager struct{}

func (passTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockAuditLog struct {
	entries []*audit.Entry
}

func (m *mockAuditLog) Append(ctx context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditLog) byAction(a audit.Action) []*audit.Entry {
	var out []*audit.Entry
	for _, e := range m.entries {
		if e.Action == a {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	repo     *mockRepo
	store    *mockStore
	auditLog *mockAuditLog
	svc      *Service
}

func newFixture(related map[uuid.UUID]bool) *fixture {
	repo := &mockRepo{}
	store := newMockStore()
	auditLog := &mockAuditLog{}
	gate := auth.NewGate(auth.RelationshipCheckerFunc(
		func(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
			return related[doctorID], nil
		}))
	svc := NewService(repo, store, gate, passTxManager{}, auditLog)
	return &fixture{repo: repo, store: store, auditLog: auditLog, svc: svc}
}

func TestBackupRecordIsIdempotent(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	f := newFixture(nil)

	rec := f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)
	f.store.advance(rec.ID, "BP 118/76")
	f.store.advance(rec.ID, "BP 119/78") // record now at version 3

	first, created, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID)
	if err != nil {
		t.Fatalf("first backup: %v", err)
	}
	if !created {
		t.Fatal("first backup should be freshly created")
	}
	if first.VersionNo != 3 {
		t.Fatalf("expected backup of version 3, got %d", first.VersionNo)
	}

	second, created, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID)
	if err != nil {
		t.Fatalf("second backup: %v", err)
	}
	if created {
		t.Fatal("second backup at the same version must reuse the first")
	}
	if second.ID != first.ID {
		t.Fatalf("expected identical backup id, got %s and %s", first.ID, second.ID)
	}

	if entries := f.auditLog.byAction(audit.ActionBackup); len(entries) != 1 {
		t.Fatalf("idempotent repeat must not log again: %d entries", len(entries))
	}
}

func TestBackupAfterUpdateCreatesNewSnapshot(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	f := newFixture(nil)

	rec := f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)

	first, _, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID)
	if err != nil {
		t.Fatalf("backup v1: %v", err)
	}

	f.store.advance(rec.ID, "BP 118/76")
	second, created, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID)
	if err != nil {
		t.Fatalf("backup v2: %v", err)
	}
	if !created || second.ID == first.ID {
		t.Fatal("a new version must produce a new backup")
	}
	if first.Content != "BP 120/80" || second.Content != "BP 118/76" {
		t.Fatalf("snapshots must pin their own content: %q, %q", first.Content, second.Content)
	}
}

func TestBackupAuthorization(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	f := newFixture(nil)
	rec := f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)

	t.Run("patient denied", func(t *testing.T) {
		_, _, err := f.svc.BackupRecord(context.Background(),
			auth.Actor{ID: patientID, Role: auth.RolePatient}, rec.ID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("admin denied", func(t *testing.T) {
		_, _, err := f.svc.BackupRecord(context.Background(),
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, rec.ID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("unrelated doctor hidden", func(t *testing.T) {
		_, _, err := f.svc.BackupRecord(context.Background(),
			auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}, rec.ID)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestExportSkipsSoftDeletedRecords(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	patient := auth.Actor{ID: patientID, Role: auth.RolePatient}
	f := newFixture(nil)

	active1 := f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)
	active2 := f.store.add(patientID, doctorID, "Lab Results", "HbA1c 5.4", false)
	f.store.add(patientID, doctorID, "Old Notes", "superseded", true)

	bundle, err := f.svc.ExportPatientRecords(context.Background(), patient, patientID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if bundle.RecordCount != 2 || len(bundle.Records) != 2 {
		t.Fatalf("expected 2 active records in bundle, got %d", len(bundle.Records))
	}
	for _, item := range bundle.Records {
		if item.Record.ID != active1.ID && item.Record.ID != active2.ID {
			t.Fatalf("unexpected record in bundle: %s", item.Record.ID)
		}
		if item.Version == nil || item.Version.Content == "" {
			t.Fatal("bundle items must carry pinned content")
		}
	}

	exports := f.auditLog.byAction(audit.ActionExport)
	if len(exports) != 1 {
		t.Fatalf("expected exactly one export audit entry, got %d", len(exports))
	}
	if exports[0].Metadata["record_count"] != 2 {
		t.Fatalf("export entry must carry record count, got %v", exports[0].Metadata)
	}
}

func TestExportCarriesEveryActiveRecord(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	patient := auth.Actor{ID: patientID, Role: auth.RolePatient}
	f := newFixture(nil)

	want := exportPageSize + 1
	for i := 0; i < want; i++ {
		f.store.add(patientID, doctorID, fmt.Sprintf("Visit %d", i), "note", false)
	}

	bundle, err := f.svc.ExportPatientRecords(context.Background(), patient, patientID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if bundle.RecordCount != want || len(bundle.Records) != want {
		t.Fatalf("expected %d records in bundle, got %d", want, len(bundle.Records))
	}
	seen := make(map[uuid.UUID]bool, want)
	for _, item := range bundle.Records {
		if seen[item.Record.ID] {
			t.Fatalf("record %s appears twice in bundle", item.Record.ID)
		}
		seen[item.Record.ID] = true
	}
}

func TestExportWithNoRecords(t *testing.T) {
	patientID := uuid.New()
	f := newFixture(nil)

	_, err := f.svc.ExportPatientRecords(context.Background(),
		auth.Actor{ID: patientID, Role: auth.RolePatient}, patientID)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExportAuthorization(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	f := newFixture(map[uuid.UUID]bool{doctorID: true})
	f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)

	t.Run("other patient hidden", func(t *testing.T) {
		_, err := f.svc.ExportPatientRecords(context.Background(),
			auth.Actor{ID: uuid.New(), Role: auth.RolePatient}, patientID)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("related doctor allowed", func(t *testing.T) {
		if _, err := f.svc.ExportPatientRecords(context.Background(),
			auth.Actor{ID: doctorID, Role: auth.RoleDoctor}, patientID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("admin denied", func(t *testing.T) {
		_, err := f.svc.ExportPatientRecords(context.Background(),
			auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}, patientID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestAdminBackupStats(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	doctor := auth.Actor{ID: doctorID, Role: auth.RoleDoctor}
	admin := auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	f := newFixture(nil)

	rec := f.store.add(patientID, doctorID, "Annual Physical", "BP 120/80", false)
	if _, _, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID); err != nil {
		t.Fatalf("backup: %v", err)
	}
	f.store.advance(rec.ID, "BP 118/76")
	if _, _, err := f.svc.BackupRecord(context.Background(), doctor, rec.ID); err != nil {
		t.Fatalf("backup v2: %v", err)
	}

	stats, err := f.svc.AdminBackupStats(context.Background(), admin, patientID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBackups != 2 {
		t.Fatalf("expected 2 backups, got %d", stats.TotalBackups)
	}
	wantBytes := int64(len("BP 120/80") + len("BP 118/76"))
	if stats.TotalBytes != wantBytes {
		t.Fatalf("expected %d bytes, got %d", wantBytes, stats.TotalBytes)
	}
	if stats.OldestBackup == nil || stats.NewestBackup == nil {
		t.Fatal("expected backup timestamps")
	}

	t.Run("doctor denied", func(t *testing.T) {
		_, err := f.svc.AdminBackupStats(context.Background(), doctor, patientID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("patient denied", func(t *testing.T) {
		_, err := f.svc.AdminBackupStats(context.Background(),
			auth.Actor{ID: patientID, Role: auth.RolePatient}, patientID)
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

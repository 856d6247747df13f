package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
	"github.com/Jeewaka-MediCare/record-service/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, doctor_id, title, description, tags,
	current_version_id, current_version_no, created_at, updated_at, deleted_at`

const versionCols = `id, record_id, version_no, content, content_size,
	change_note, author_id, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.Title, &rec.Description,
		&rec.Tags, &rec.CurrentVersionID, &rec.CurrentVersionNo,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return &rec, err
}

func scanVersion(row pgx.Row) (*Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.RecordID, &v.VersionNo, &v.Content, &v.ContentSize,
		&v.ChangeNote, &v.AuthorID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return &v, err
}

func (r *repoPG) CreateWithVersion(ctx context.Context, rec *Record, v *Version) error {
	q := r.conn(ctx)

	err := q.QueryRow(ctx, `
		INSERT INTO medical_record
			(id, patient_id, doctor_id, title, description, tags,
			 current_version_id, current_version_no)
		VALUES ($1,$2,$3,$4,$5,$6,$7,1)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.Title, rec.Description, rec.Tags, v.ID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	rec.CurrentVersionID = v.ID
	rec.CurrentVersionNo = 1

	err = q.QueryRow(ctx, `
		INSERT INTO record_version
			(id, record_id, version_no, content, content_size, change_note, author_id)
		VALUES ($1,$2,1,$3,$4,$5,$6)
		RETURNING created_at`,
		v.ID, rec.ID, v.Content, v.ContentSize, v.ChangeNote, v.AuthorID,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert initial version: %w", err)
	}
	v.RecordID = rec.ID
	v.VersionNo = 1
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM medical_record
		WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetAny(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM medical_record
		WHERE id = $1`, id))
}

// AdvanceVersion swaps the head pointer only when the record still sits
// at the expected version. The UPDATE is the single serialization point:
// two racing writers presenting the same expected number contend on the
// row, and the loser matches zero rows.
func (r *repoPG) AdvanceVersion(ctx context.Context, recordID uuid.UUID, expected int, v *Version, patch MetadataPatch) error {
	q := r.conn(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE medical_record SET
			current_version_no = current_version_no + 1,
			current_version_id = $1,
			title       = COALESCE($2, title),
			description = COALESCE($3, description),
			tags        = COALESCE($4, tags),
			updated_at  = now()
		WHERE id = $5 AND current_version_no = $6 AND deleted_at IS NULL`,
		v.ID, patch.Title, patch.Description, patch.Tags, recordID, expected)
	if err != nil {
		return fmt.Errorf("advance head pointer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrConflict
	}

	err = q.QueryRow(ctx, `
		INSERT INTO record_version
			(id, record_id, version_no, content, content_size, change_note, author_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		v.ID, recordID, expected+1, v.Content, v.ContentSize, v.ChangeNote, v.AuthorID,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert version %d: %w", expected+1, err)
	}
	v.RecordID = recordID
	v.VersionNo = expected + 1
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM medical_record
		WHERE patient_id = $1 AND deleted_at IS NULL`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM medical_record
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, nil
}

func (r *repoPG) ListVersions(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Version, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM record_version WHERE record_id = $1`, recordID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+versionCols+` FROM record_version
		WHERE record_id = $1
		ORDER BY version_no DESC
		LIMIT $2 OFFSET $3`, recordID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, nil
}

func (r *repoPG) GetVersion(ctx context.Context, recordID uuid.UUID, versionNo int) (*Version, error) {
	return scanVersion(r.conn(ctx).QueryRow(ctx, `
		SELECT `+versionCols+` FROM record_version
		WHERE record_id = $1 AND version_no = $2`, recordID, versionNo))
}

func (r *repoPG) CurrentVersion(ctx context.Context, recordID uuid.UUID) (*Version, error) {
	return scanVersion(r.conn(ctx).QueryRow(ctx, `
		SELECT `+versionCols+` FROM record_version v
		WHERE v.record_id = $1
		  AND v.version_no = (SELECT current_version_no FROM medical_record WHERE id = $1)`,
		recordID))
}

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const backupCols = `id, record_id, patient_id, version_no, content, size, created_at`

func scanBackup(row pgx.Row) (*Backup, error) {
	var b Backup
	err := row.Scan(&b.ID, &b.RecordID, &b.PatientID, &b.VersionNo, &b.Content, &b.Size, &b.CreatedAt)
	return &b, err
}

// Create relies on the UNIQUE(record_id, version_no) constraint for
// idempotency: the insert is skipped when the pair already exists, and
// the stored row is loaded instead.
func (r *repoPG) Create(ctx context.Context, b *Backup) (bool, error) {
	q := r.conn(ctx)

	err := q.QueryRow(ctx, `
		INSERT INTO backup (id, record_id, patient_id, version_no, content, size)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (record_id, version_no) DO NOTHING
		RETURNING created_at`,
		b.ID, b.RecordID, b.PatientID, b.VersionNo, b.Content, b.Size,
	).Scan(&b.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert backup: %w", err)
	}

	existing, err := scanBackup(q.QueryRow(ctx, `
		SELECT `+backupCols+` FROM backup
		WHERE record_id = $1 AND version_no = $2`, b.RecordID, b.VersionNo))
	if err != nil {
		return false, fmt.Errorf("load existing backup: %w", err)
	}
	*b = *existing
	return false, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, includeDeleted bool, limit, offset int) ([]*Backup, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM backup b
		JOIN medical_record mr ON mr.id = b.record_id
		WHERE b.patient_id = $1 AND ($2 OR mr.deleted_at IS NULL)`,
		patientID, includeDeleted).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.id, b.record_id, b.patient_id, b.version_no, b.content, b.size, b.created_at
		FROM backup b
		JOIN medical_record mr ON mr.id = b.record_id
		WHERE b.patient_id = $1 AND ($2 OR mr.deleted_at IS NULL)
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $3 OFFSET $4`, patientID, includeDeleted, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, nil
}

func (r *repoPG) Stats(ctx context.Context, patientID uuid.UUID) (*Stats, error) {
	s := Stats{PatientID: patientID}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), MIN(created_at), MAX(created_at)
		FROM backup WHERE patient_id = $1`, patientID,
	).Scan(&s.TotalBackups, &s.TotalBytes, &s.OldestBackup, &s.NewestBackup)
	if err != nil {
		return nil, fmt.Errorf("backup stats: %w", err)
	}
	return &s, nil
}

package audit

import (
	"context"
	"strconv"

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

const entryCols = `id, record_id, patient_id, actor_id, actor_role, action, metadata, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.RecordID, &e.PatientID, &e.ActorID, &e.ActorRole,
		&e.Action, &e.Metadata, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_entry (record_id, patient_id, actor_id, actor_role, action, metadata)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		e.RecordID, e.PatientID, e.ActorID, e.ActorRole, e.Action, e.Metadata,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *repoPG) ListByRecord(ctx context.Context, recordID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entry WHERE record_id = $1`, recordID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM audit_entry
		WHERE record_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, recordID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEntries(rows, total)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, opts QueryOptions) ([]*Entry, int, error) {
	where, args := rangeClause(`patient_id = $1`, []interface{}{patientID}, opts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entry WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryCols + ` FROM audit_entry WHERE ` + where +
		` ORDER BY created_at DESC, id DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEntries(rows, total)
}

func (r *repoPG) ListByActor(ctx context.Context, actorID uuid.UUID, opts QueryOptions) ([]*Entry, int, error) {
	where, args := rangeClause(`actor_id = $1`, []interface{}{actorID}, opts)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_entry WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryCols + ` FROM audit_entry WHERE ` + where +
		` ORDER BY created_at DESC, id DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectEntries(rows, total)
}

// rangeClause appends optional created_at bounds to a base WHERE clause.
func rangeClause(base string, args []interface{}, opts QueryOptions) (string, []interface{}) {
	where := base
	if opts.From != nil {
		args = append(args, *opts.From)
		where += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if opts.To != nil {
		args = append(args, *opts.To)
		where += ` AND created_at <= $` + strconv.Itoa(len(args))
	}
	return where, args
}

func collectEntries(rows pgx.Rows, total int) ([]*Entry, int, error) {
	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}

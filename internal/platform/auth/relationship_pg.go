package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRelationshipChecker answers relationship checks from the
// care_relationship table. The booking system owns that table and keeps
// it current; this service only reads it.
type PGRelationshipChecker struct {
	pool *pgxpool.Pool
}

func NewPGRelationshipChecker(pool *pgxpool.Pool) *PGRelationshipChecker {
	return &PGRelationshipChecker{pool: pool}
}

func (c *PGRelationshipChecker) HasActiveRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM care_relationship
			WHERE doctor_id = $1 AND patient_id = $2 AND status = 'active'
		)`, doctorID, patientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relationship lookup: %w", err)
	}
	return exists, nil
}

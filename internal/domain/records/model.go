package records

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/platform/apperr"
)

// Record maps to the medical_record table. It is the document shell: the
// content itself lives in the version chain, and the record holds only
// the pointer to the chain's head.
type Record struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Title            string     `db:"title" json:"title"`
	Description      *string    `db:"description" json:"description,omitempty"`
	Tags             []string   `db:"tags" json:"tags"`
	CurrentVersionID uuid.UUID  `db:"current_version_id" json:"current_version_id"`
	CurrentVersionNo int        `db:"current_version_no" json:"current_version_no"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Deleted reports whether the record has been soft-deleted.
func (r *Record) Deleted() bool { return r.DeletedAt != nil }

// Version maps to the record_version table. Versions are immutable: once
// written, content, number, and authorship never change, even after the
// parent record is soft-deleted.
type Version struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecordID    uuid.UUID `db:"record_id" json:"record_id"`
	VersionNo   int       `db:"version_no" json:"version_no"`
	Content     string    `db:"content" json:"content"`
	ContentSize int       `db:"content_size" json:"content_size"`
	ChangeNote  string    `db:"change_note" json:"change_note"`
	AuthorID    uuid.UUID `db:"author_id" json:"author_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MetadataPatch carries the optional shell-level changes an update may
// apply alongside its new version. Nil fields leave the stored value
// untouched.
type MetadataPatch struct {
	Title       *string
	Description *string
	Tags        []string
}

// ConflictError reports a lost optimistic-concurrency race. It carries
// the version that actually holds the chain head so the caller can
// re-merge and retry.
type ConflictError struct {
	Current *Version
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: record is at version %d", e.Current.VersionNo)
}

func (e *ConflictError) Unwrap() error { return apperr.ErrConflict }

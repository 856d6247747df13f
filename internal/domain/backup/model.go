package backup

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jeewaka-MediCare/record-service/internal/domain/records"
)

// Backup maps to the backup table. It preserves its own copy of the
// version content, so the snapshot stays intact regardless of what later
// happens to the record.
type Backup struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RecordID  uuid.UUID `db:"record_id" json:"record_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	VersionNo int       `db:"version_no" json:"version_no"`
	Content   string    `db:"content" json:"-"`
	Size      int       `db:"size" json:"size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExportItem pairs one record's metadata with its current content.
type ExportItem struct {
	Record  *records.Record  `json:"record"`
	Version *records.Version `json:"version"`
}

// ExportBundle aggregates a patient's active records at export time. It
// is assembled on demand and never persisted; only its audit entry is.
type ExportBundle struct {
	PatientID   uuid.UUID    `json:"patient_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	RecordCount int          `json:"record_count"`
	Records     []ExportItem `json:"records"`
}

// Stats aggregates a patient's backups for administrative dashboards.
type Stats struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	TotalBackups int        `json:"total_backups"`
	TotalBytes   int64      `json:"total_bytes"`
	OldestBackup *time.Time `json:"oldest_backup,omitempty"`
	NewestBackup *time.Time `json:"newest_backup,omitempty"`
}

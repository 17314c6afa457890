package models

import (
	"time"
)

// BackupStatus is the lifecycle state of a backup record.
// Transitions are monotonic: creating -> completed | failed, completed -> deleted.
type BackupStatus string

const (
	BackupCreating  BackupStatus = "creating"
	BackupCompleted BackupStatus = "completed"
	BackupFailed    BackupStatus = "failed"
	BackupDeleted   BackupStatus = "deleted"
)

// Backup is one snapshot attempt. Integrity fields (FileSize, Checksum,
// RecordsCount, CompletedAt) are written in a single update when the archive
// is finalized, so a completed record never carries zero-valued integrity data.
type Backup struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"size:255;not null" json:"name"`
	FileName      string       `gorm:"size:255;not null" json:"file_name"`
	FilePath      string       `gorm:"size:500;not null" json:"-"`
	FileSize      int64        `json:"file_size"`
	Checksum      string       `gorm:"size:64" json:"checksum"` // SHA256 of the archive
	Status        BackupStatus `gorm:"size:20;not null;default:creating" json:"status"`
	SchemaVersion string       `gorm:"size:20" json:"schema_version"`
	TableCount    int          `json:"table_count"`
	RecordsCount  int64        `json:"records_count"`
	CreatedBy     uint         `gorm:"index" json:"created_by"`
	Metadata      string       `gorm:"type:text" json:"-"` // manifest copy for audit
	CreatedAt     time.Time    `json:"created_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

func (b *Backup) FileSizeMB() float64 {
	return float64(b.FileSize) / (1024 * 1024)
}

package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/autocat/backup-server/internal/models"
)

// Create takes a full snapshot: it inserts a creating record, exports every
// registered table from one repeatable-read transaction, packages the
// archive and finalizes the record. On any failure after the record is
// inserted it is marked failed and partial files are removed before the
// error is returned.
func (s *Service) Create(ctx context.Context, name string, creatorID uint) (*models.Backup, error) {
	fileName := fmt.Sprintf("backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	filePath := filepath.Join(s.rootDir, fileName)

	rec := models.Backup{
		Name:          name,
		FileName:      fileName,
		FilePath:      filePath,
		Status:        models.BackupCreating,
		SchemaVersion: SchemaVersion,
		TableCount:    s.registry.Len(),
		CreatedBy:     creatorID,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("insert backup record: %w", err)
	}

	log := s.log.WithFields(map[string]interface{}{"backup_id": rec.ID, "file": fileName})

	workDir, err := s.newWorkDir("snapshot")
	if err != nil {
		s.markFailed(&rec)
		return nil, err
	}
	defer s.removeWorkDir(workDir)

	manifest, err := s.exportAll(ctx, workDir, creatorID)
	if err != nil {
		log.WithError(err).Error("snapshot export failed")
		s.markFailed(&rec)
		return nil, err
	}

	if err := writeManifest(manifest, workDir); err != nil {
		s.markFailed(&rec)
		return nil, err
	}

	size, checksum, err := packArchive(workDir, filePath)
	if err != nil {
		log.WithError(err).Error("archive packaging failed")
		s.markFailed(&rec)
		s.removePartial(filePath)
		return nil, err
	}

	metadata, err := json.Marshal(manifest)
	if err != nil {
		s.markFailed(&rec)
		s.removePartial(filePath)
		return nil, fmt.Errorf("marshal manifest metadata: %w", err)
	}

	// Integrity fields and the status flip land in one update so a reader
	// never sees a completed record with zero-valued integrity data.
	now := time.Now()
	err = s.db.Model(&rec).Updates(map[string]interface{}{
		"status":        models.BackupCompleted,
		"file_size":     size,
		"checksum":      checksum,
		"records_count": manifest.TotalRecords(),
		"metadata":      string(metadata),
		"completed_at":  &now,
	}).Error
	if err != nil {
		s.markFailed(&rec)
		s.removePartial(filePath)
		return nil, fmt.Errorf("finalize backup record: %w", err)
	}

	rec.Status = models.BackupCompleted
	rec.FileSize = size
	rec.Checksum = checksum
	rec.RecordsCount = manifest.TotalRecords()
	rec.Metadata = string(metadata)
	rec.CompletedAt = &now

	log.WithFields(map[string]interface{}{
		"records": rec.RecordsCount,
		"bytes":   size,
	}).Info("snapshot completed")
	return &rec, nil
}

// exportAll runs every table export inside a single repeatable-read
// transaction, so all record files describe one consistent cross-table view
// of the database.
func (s *Service) exportAll(ctx context.Context, workDir string, creatorID uint) (*Manifest, error) {
	tx := s.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if tx.Error != nil {
		return nil, fmt.Errorf("begin snapshot transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	var dbVersion string
	if err := tx.Raw("SELECT sqlite_version()").Scan(&dbVersion).Error; err != nil {
		return nil, fmt.Errorf("read database version: %w", err)
	}

	order := make([]string, 0, s.registry.Len())
	counts := make(map[string]int64, s.registry.Len())
	checksums := make(map[string]string, s.registry.Len())

	for _, d := range s.registry.Tables() {
		f, err := os.Create(filepath.Join(workDir, recordFileName(d.Name)))
		if err != nil {
			return nil, fmt.Errorf("create record file for %s: %w", d.Name, err)
		}
		res, err := exportTable(tx, d, f, s.pageSize)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close record file for %s: %w", d.Name, cerr)
		}
		if err != nil {
			return nil, err
		}

		order = append(order, d.Name)
		counts[d.Name] = res.RowCount
		checksums[d.Name] = res.Checksum
	}

	return buildManifest(order, counts, checksums, creatorID, dbVersion), nil
}

func (s *Service) markFailed(rec *models.Backup) {
	err := s.db.Model(rec).
		Where("status = ?", models.BackupCreating).
		Update("status", models.BackupFailed).Error
	if err != nil {
		s.log.WithError(err).WithField("backup_id", rec.ID).Error("failed to mark backup as failed")
	}
}

func (s *Service) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("path", path).Warn("failed to remove partial archive")
	}
}

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/autocat/backup-server/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options configures a Service.
type Options struct {
	RootDir  string // archives and per-operation working dirs live here
	PageSize int    // export page size, defaultPageSize when zero
	Logger   *logrus.Logger
}

// Service is the engine's control surface: create, list, validate, restore
// and delete snapshots. Concurrent operations are safe against the same
// database because each opens its own transaction and owns its own working
// directory; the Service itself holds no mutable state.
type Service struct {
	db       *gorm.DB
	registry *Registry
	rootDir  string
	pageSize int
	log      *logrus.Logger
}

func NewService(db *gorm.DB, registry *Registry, opts Options) (*Service, error) {
	if opts.RootDir == "" {
		return nil, fmt.Errorf("backup root directory is required")
	}
	if err := os.MkdirAll(opts.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("create backup root: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	s := &Service{
		db:       db,
		registry: registry,
		rootDir:  opts.RootDir,
		pageSize: opts.PageSize,
		log:      log,
	}

	if err := s.sweepStale(); err != nil {
		return nil, err
	}
	return s, nil
}

// sweepStale marks records left in creating by a crashed process as failed.
// A record can only be creating while its operation is in flight, and no
// operation survives a restart.
func (s *Service) sweepStale() error {
	res := s.db.Model(&models.Backup{}).
		Where("status = ?", models.BackupCreating).
		Update("status", models.BackupFailed)
	if res.Error != nil {
		return fmt.Errorf("sweep stale backups: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.WithField("count", res.RowsAffected).Warn("marked stale creating backups as failed")
	}
	return nil
}

// List returns backup records, newest first.
func (s *Service) List(limit, offset int) ([]models.Backup, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var backups []models.Backup
	err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&backups).Error
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

func (s *Service) Get(id uint) (*models.Backup, error) {
	var b models.Backup
	if err := s.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetFilePath returns the archive path for a backup, or an error unless the
// record is completed. Callers must not hand out archives that were never
// finalized.
func (s *Service) GetFilePath(id uint) (string, error) {
	b, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if b.Status != models.BackupCompleted {
		return "", fmt.Errorf("backup %d is %s, not completed", id, b.Status)
	}
	return b.FilePath, nil
}

// Delete removes the archive file and marks the record deleted. Only
// completed backups can be deleted; failed and deleted records stay as they
// are.
func (s *Service) Delete(id uint) error {
	b, err := s.Get(id)
	if err != nil {
		return err
	}
	if b.Status != models.BackupCompleted {
		return fmt.Errorf("backup %d is %s, not completed", id, b.Status)
	}

	if err := os.Remove(b.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove archive: %w", err)
	}
	if err := s.db.Model(b).Update("status", models.BackupDeleted).Error; err != nil {
		return fmt.Errorf("mark backup deleted: %w", err)
	}
	return nil
}

// Import registers an externally produced archive as a completed backup
// record. The archive must validate against the current schema before it is
// accepted.
func (s *Service) Import(path, name string, creatorID uint) (*models.Backup, error) {
	vr := s.Validate(path)
	if !vr.Valid {
		return nil, fmt.Errorf("archive rejected: %v", vr.Errors)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, fmt.Errorf("checksum archive: %w", err)
	}

	now := time.Now()
	rec := models.Backup{
		Name:          name,
		FileName:      filepath.Base(path),
		FilePath:      path,
		FileSize:      info.Size(),
		Checksum:      checksum,
		Status:        models.BackupCompleted,
		SchemaVersion: vr.Manifest.SchemaVersion,
		TableCount:    len(vr.Manifest.TableOrder),
		RecordsCount:  vr.Manifest.TotalRecords(),
		CreatedBy:     creatorID,
		CompletedAt:   &now,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("save backup record: %w", err)
	}
	return &rec, nil
}

// newWorkDir creates a uniquely named directory under the backup root. Each
// operation owns its directory exclusively and removes it on every exit path.
func (s *Service) newWorkDir(prefix string) (string, error) {
	dir := filepath.Join(s.rootDir, fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create working dir: %w", err)
	}
	return dir, nil
}

// removeWorkDir cleans up an operation's directory. Failures are logged and
// never mask the operation's own result.
func (s *Service) removeWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.log.WithError(err).WithField("dir", dir).Warn("failed to remove working directory")
	}
}

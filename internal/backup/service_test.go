package backup

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/autocat/backup-server/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSnapshotLifecycle(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	rec, err := svc.Create(context.Background(), "nightly", 1)
	require.NoError(t, err)

	assert.Equal(t, models.BackupCompleted, rec.Status)
	assert.Equal(t, "nightly", rec.Name)
	assert.Equal(t, uint(1), rec.CreatedBy)
	assert.Equal(t, 10, rec.TableCount)
	assert.Equal(t, int64(19), rec.RecordsCount)

	// Completed records never carry zero-valued integrity fields.
	assert.Greater(t, rec.FileSize, int64(0))
	assert.Len(t, rec.Checksum, 64)
	assert.NotNil(t, rec.CompletedAt)

	// Archive checksum matches the file on disk.
	onDisk, err := fileChecksum(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, rec.Checksum)

	// The stored metadata is the manifest.
	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(rec.Metadata), &m))
	assert.Equal(t, SchemaVersion, m.SchemaVersion)
	assert.Equal(t, int64(19), m.TotalRecords())

	// No working directories left behind.
	entries, err := os.ReadDir(svc.rootDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rec.FileName, entries[0].Name())
}

func TestCreateSnapshotArchiveValidates(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	rec, err := svc.Create(context.Background(), "nightly", 1)
	require.NoError(t, err)

	res := svc.Validate(rec.FilePath)
	assert.True(t, res.Valid, res.Errors)
}

func TestCreateSnapshotFailureMarksRecordFailed(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)

	// A registry naming a table that does not exist makes the export fail
	// after the backup record has been inserted.
	reg, err := NewRegistry([]TableDescriptor{
		{Name: "brands", PrimaryKey: "id", TimeColumns: []string{"created_at", "updated_at"}},
		{Name: "ghosts", PrimaryKey: "id"},
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	rootDir := t.TempDir()
	svc, err := NewService(db, reg, Options{RootDir: rootDir, PageSize: 2, Logger: log})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "doomed", 1)
	require.Error(t, err)

	var rec models.Backup
	require.NoError(t, db.Where("name = ?", "doomed").First(&rec).Error)
	assert.Equal(t, models.BackupFailed, rec.Status)

	// No partial archive at the target path and no working dir left behind.
	_, err = os.Stat(rec.FilePath)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(rootDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	_, err := svc.Create(context.Background(), "first", 1)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "second", 1)
	require.NoError(t, err)

	backups, err := svc.List(20, 0)
	require.NoError(t, err)
	require.Len(t, backups, 2)

	one, err := svc.List(1, 0)
	require.NoError(t, err)
	require.Len(t, one, 1)
}

func TestGetFilePathOnlyWhenCompleted(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	rec, err := svc.Create(context.Background(), "nightly", 1)
	require.NoError(t, err)

	path, err := svc.GetFilePath(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FilePath, path)

	require.NoError(t, db.Model(&models.Backup{}).Where("id = ?", rec.ID).
		Update("status", models.BackupFailed).Error)
	_, err = svc.GetFilePath(rec.ID)
	assert.ErrorContains(t, err, "not completed")
}

func TestDeleteBackup(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	rec, err := svc.Create(context.Background(), "nightly", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(rec.ID))

	_, err = os.Stat(rec.FilePath)
	assert.True(t, os.IsNotExist(err))

	updated, err := svc.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BackupDeleted, updated.Status)

	// Deleted is terminal, a second delete is refused.
	assert.Error(t, svc.Delete(rec.ID))
}

func TestSweepStaleCreatingRecords(t *testing.T) {
	db := newTestDB(t)

	stale := models.Backup{Name: "crashed", FileName: "x.tar.gz", FilePath: "/tmp/x.tar.gz", Status: models.BackupCreating}
	require.NoError(t, db.Create(&stale).Error)

	// Service construction sweeps records stranded by a crashed process.
	_ = newTestService(t, db)

	var swept models.Backup
	require.NoError(t, db.First(&swept, stale.ID).Error)
	assert.Equal(t, models.BackupFailed, swept.Status)
}

func TestImportArchive(t *testing.T) {
	archivePath, _ := createArchive(t)

	db := newTestDB(t)
	svc := newTestService(t, db)

	rec, err := svc.Import(archivePath, "imported", 2)
	require.NoError(t, err)
	assert.Equal(t, models.BackupCompleted, rec.Status)
	assert.Equal(t, int64(19), rec.RecordsCount)
	assert.Equal(t, uint(2), rec.CreatedBy)
	assert.NotNil(t, rec.CompletedAt)
}

func TestImportRejectsInvalidArchive(t *testing.T) {
	archivePath, _ := createArchive(t)

	db := newTestDB(t)
	svc := newTestService(t, db)

	tampered := repackWith(t, archivePath, func(dir string) {
		require.NoError(t, os.WriteFile(dir+"/brands.jsonl", []byte("junk\n"), 0644))
	})

	_, err := svc.Import(tampered, "bad", 1)
	assert.ErrorContains(t, err, "archive rejected")
}

func TestNewServiceRequiresRootDir(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	_, err := NewService(newTestDB(t), CatalogRegistry(), Options{Logger: log})
	assert.Error(t, err)
}

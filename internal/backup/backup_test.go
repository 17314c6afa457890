package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/autocat/backup-server/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Brand{},
		&models.CarModel{},
		&models.Version{},
		&models.Color{},
		&models.Optional{},
		&models.Vehicle{},
		&models.VehicleOptional{},
		&models.DirectSale{},
		&models.Backup{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	svc, err := NewService(db, CatalogRegistry(), Options{
		RootDir:  t.TempDir(),
		PageSize: 2,
		Logger:   log,
	})
	require.NoError(t, err)
	return svc
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	roles := []models.Role{
		{ID: 1, Name: "admin"},
		{ID: 2, Name: "user"},
	}
	require.NoError(t, db.Create(&roles).Error)

	users := []models.User{
		{ID: 1, Name: "Admin", Email: "admin@example.com", PasswordHash: "x", RoleID: 1, IsActive: true},
		{ID: 2, Name: "Seller", Email: "seller@example.com", PasswordHash: "x", RoleID: 2, IsActive: true},
	}
	require.NoError(t, db.Create(&users).Error)

	brands := []models.Brand{
		{ID: 1, Name: "Aquila"},
		{ID: 2, Name: "Borealis"},
		{ID: 3, Name: "Corvus"},
	}
	require.NoError(t, db.Create(&brands).Error)

	carModels := []models.CarModel{
		{ID: 1, BrandID: 1, Name: "A100"},
		{ID: 2, BrandID: 2, Name: "B200"},
	}
	require.NoError(t, db.Create(&carModels).Error)

	versions := []models.Version{
		{ID: 1, CarModelID: 1, Name: "Base", Price: 19990},
		{ID: 2, CarModelID: 1, Name: "Sport", Price: 24990},
		{ID: 3, CarModelID: 2, Name: "Base", Price: 27990},
	}
	require.NoError(t, db.Create(&versions).Error)

	colors := []models.Color{
		{ID: 1, Name: "Red", Price: 0},
		{ID: 2, Name: "Pearl White", Price: 450},
	}
	require.NoError(t, db.Create(&colors).Error)

	optionals := []models.Optional{
		{ID: 1, Name: "Sunroof", Price: 900},
	}
	require.NoError(t, db.Create(&optionals).Error)

	vehicles := []models.Vehicle{
		{ID: 1, VersionID: 1, ColorID: 1, Chassis: "CH-0001", Status: "available"},
		{ID: 2, VersionID: 3, ColorID: 2, Chassis: "CH-0002", Status: "sold"},
	}
	require.NoError(t, db.Create(&vehicles).Error)

	vehicleOptionals := []models.VehicleOptional{
		{ID: 1, VehicleID: 1, OptionalID: 1},
	}
	require.NoError(t, db.Create(&vehicleOptionals).Error)

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sales := []models.DirectSale{
		{ID: 1, VehicleID: 2, UserID: 2, DiscountPercent: 7.5, StartDate: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), EndDate: &end},
	}
	require.NoError(t, db.Create(&sales).Error)
}

// writeRecordFile replaces a table's record file in an extracted archive and
// rewrites the manifest entry to match, so the archive still validates.
func writeRecordFile(t *testing.T, dir, table string, content []byte) {
	t.Helper()

	path := filepath.Join(dir, recordFileName(table))
	require.NoError(t, os.WriteFile(path, content, 0644))

	m, err := readManifest(dir)
	require.NoError(t, err)

	sum, err := fileChecksum(path)
	require.NoError(t, err)
	m.Checksums[table] = sum

	var lines int64
	for _, b := range content {
		if b == '\n' {
			lines++
		}
	}
	m.TableCounts[table] = lines
	require.NoError(t, writeManifest(m, dir))
}

// tableCount reads a raw row count without going through any model.
func tableCount(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

// createArchive seeds a database, takes a snapshot and returns the archive
// path alongside the backup record.
func createArchive(t *testing.T) (string, *models.Backup) {
	t.Helper()

	db := newTestDB(t)
	seedCatalog(t, db)
	svc := newTestService(t, db)

	rec, err := svc.Create(context.Background(), "test snapshot", 1)
	require.NoError(t, err)
	return rec.FilePath, rec
}

package backup

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RestoreMode selects how archive rows are applied.
type RestoreMode string

const (
	// ModeMerge upserts by primary key, preserving unrelated existing rows
	// and the surrogate keys that foreign keys point at.
	ModeMerge RestoreMode = "merge"
	// ModeReplace clears every non-protected table in reverse dependency
	// order, then bulk-inserts the archive contents.
	ModeReplace RestoreMode = "replace"
)

const insertBatchSize = 100

// maxRecordLine bounds a single serialized row during restore scanning.
const maxRecordLine = 4 * 1024 * 1024

// RestoreResult is the structured outcome of a restore. Failures are carried
// in Message rather than surfaced as raw errors, so the CLI/HTTP layer can
// render them directly.
type RestoreResult struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	RestoredCounts map[string]int64 `json:"restored_counts,omitempty"`
}

func restoreFailure(format string, args ...interface{}) *RestoreResult {
	return &RestoreResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Restore validates an archive and applies it inside one transaction. With
// dryRun it only parses and counts the record files. A restore is
// all-or-nothing: any error rolls the whole transaction back.
func (s *Service) Restore(ctx context.Context, archivePath string, mode RestoreMode, dryRun bool) *RestoreResult {
	if mode != ModeMerge && mode != ModeReplace {
		return restoreFailure("unknown restore mode %q", mode)
	}

	vr := s.Validate(archivePath)
	if !vr.Valid {
		return restoreFailure("archive failed validation: %s", strings.Join(vr.Errors, "; "))
	}
	manifest := vr.Manifest

	// Extraction is separate from validation's so the two operations stay
	// independent.
	workDir, err := s.newWorkDir("restore")
	if err != nil {
		return restoreFailure("%v", err)
	}
	defer s.removeWorkDir(workDir)

	if err := unpackArchive(archivePath, workDir); err != nil {
		return restoreFailure("extract archive: %v", err)
	}

	if dryRun {
		return s.dryRunCounts(workDir, manifest)
	}

	counts := make(map[string]int64, len(manifest.TableOrder))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mode == ModeReplace {
			if err := s.clearTables(tx); err != nil {
				return err
			}
		}

		for _, table := range manifest.TableOrder {
			d, ok := s.registry.Lookup(table)
			if !ok {
				return fmt.Errorf("archive table %s is not registered", table)
			}
			n, err := s.applyTable(tx, d, filepath.Join(workDir, recordFileName(table)), mode)
			if err != nil {
				return err
			}
			counts[table] = n
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("archive", archivePath).Error("restore rolled back")
		return restoreFailure("restore failed, no changes applied: %v", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	s.log.WithFields(map[string]interface{}{
		"archive": filepath.Base(archivePath),
		"mode":    mode,
		"records": total,
	}).Info("restore completed")

	return &RestoreResult{
		Success:        true,
		Message:        fmt.Sprintf("restored %d records across %d tables", total, len(counts)),
		RestoredCounts: counts,
	}
}

// clearTables empties every registered table in reverse dependency order,
// skipping the protected identity tables.
func (s *Service) clearTables(tx *gorm.DB) error {
	for _, d := range s.registry.Reversed() {
		if IsProtected(d.Name) {
			continue
		}
		if err := tx.Exec("DELETE FROM " + d.Name).Error; err != nil {
			return fmt.Errorf("clear table %s: %w", d.Name, err)
		}
	}
	return nil
}

// applyTable replays one record file into its table. In merge mode each row
// is upserted by primary key; in replace mode rows are bulk-inserted in
// batches, which is safe because the table was cleared in this transaction.
// Protected tables are never cleared, so replace mode falls back to upserts
// for them.
func (s *Service) applyTable(tx *gorm.DB, d TableDescriptor, recordPath string, mode RestoreMode) (int64, error) {
	f, err := os.Open(recordPath)
	if err != nil {
		return 0, fmt.Errorf("open records for %s: %w", d.Name, err)
	}
	defer f.Close()

	upsert := mode == ModeMerge || IsProtected(d.Name)

	var count int64
	var batch []map[string]interface{}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := tx.Table(d.Name).Create(&batch).Error; err != nil {
			return fmt.Errorf("insert into %s: %w", d.Name, err)
		}
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		row, err := decodeRow(line)
		if err != nil {
			return 0, fmt.Errorf("malformed record in %s: %w", d.Name, err)
		}
		if err := reviveTimes(d, row); err != nil {
			return 0, err
		}

		if upsert {
			err := tx.Table(d.Name).
				Clauses(upsertClause(d, row)).
				Create(map[string]interface{}(row)).Error
			if err != nil {
				return 0, fmt.Errorf("upsert into %s: %w", d.Name, err)
			}
		} else {
			batch = append(batch, row)
			if len(batch) >= insertBatchSize {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read records for %s: %w", d.Name, err)
	}
	if err := flush(); err != nil {
		return 0, err
	}

	return count, nil
}

// upsertClause builds the on-conflict clause for one row. Map-based creates
// carry no model schema, so the update assignments are listed explicitly from
// the row's non-key columns rather than derived from a model.
func upsertClause(d TableDescriptor, row Row) clause.OnConflict {
	cols := make([]string, 0, len(row))
	for col := range row {
		if col != d.PrimaryKey {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)

	oc := clause.OnConflict{Columns: []clause.Column{{Name: d.PrimaryKey}}}
	if len(cols) == 0 {
		oc.DoNothing = true
	} else {
		oc.DoUpdates = clause.AssignmentColumns(cols)
	}
	return oc
}

// dryRunCounts counts records per table file without opening a transaction.
func (s *Service) dryRunCounts(workDir string, manifest *Manifest) *RestoreResult {
	counts := make(map[string]int64, len(manifest.TableOrder))
	var total int64

	for _, table := range manifest.TableOrder {
		f, err := os.Open(filepath.Join(workDir, recordFileName(table)))
		if err != nil {
			return restoreFailure("open records for %s: %v", table, err)
		}

		var n int64
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxRecordLine)
		for scanner.Scan() {
			if len(scanner.Bytes()) > 0 {
				n++
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return restoreFailure("read records for %s: %v", table, err)
		}

		counts[table] = n
		total += n
	}

	return &RestoreResult{
		Success:        true,
		Message:        fmt.Sprintf("dry run: %d records across %d tables, nothing applied", total, len(counts)),
		RestoredCounts: counts,
	}
}

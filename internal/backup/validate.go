package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationResult reports every problem found in an archive. Manifest is
// populated only when Valid, so callers cannot act on unverified metadata.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}

// Validate checks an archive without touching the live database. Checks
// accumulate rather than short-circuit, so one pass yields the complete
// error list. The extraction directory is removed on every exit path.
func (s *Service) Validate(archivePath string) *ValidationResult {
	result := &ValidationResult{}
	fail := func(format string, args ...interface{}) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if _, err := os.Stat(archivePath); err != nil {
		fail("archive not readable: %v", err)
		return result
	}

	workDir, err := s.newWorkDir("validate")
	if err != nil {
		fail("%v", err)
		return result
	}
	defer s.removeWorkDir(workDir)

	if err := unpackArchive(archivePath, workDir); err != nil {
		fail("archive not extractable: %v", err)
		return result
	}

	manifest, err := readManifest(workDir)
	if err != nil {
		fail("%v", err)
		return result
	}

	if manifest.SchemaVersion != SchemaVersion {
		fail("schema version mismatch: archive has %q, engine expects %q", manifest.SchemaVersion, SchemaVersion)
	}
	if len(manifest.TableOrder) != len(manifest.Checksums) || len(manifest.TableOrder) != len(manifest.TableCounts) {
		fail("manifest inconsistent: %d tables ordered, %d counted, %d checksummed",
			len(manifest.TableOrder), len(manifest.TableCounts), len(manifest.Checksums))
	}

	inOrder := make(map[string]bool, len(manifest.TableOrder))
	for _, table := range manifest.TableOrder {
		inOrder[table] = true

		recordPath := filepath.Join(workDir, recordFileName(table))
		if _, err := os.Stat(recordPath); err != nil {
			fail("table %s: record file missing from archive", table)
			continue
		}

		sum, err := fileChecksum(recordPath)
		if err != nil {
			fail("table %s: %v", table, err)
			continue
		}
		if want := manifest.Checksums[table]; sum != want {
			fail("table %s: checksum mismatch (manifest %s, actual %s)", table, want, sum)
		}
	}

	// Record files the manifest never mentions are just as suspect as
	// missing ones.
	entries, err := os.ReadDir(workDir)
	if err != nil {
		fail("inspect extracted archive: %v", err)
	} else {
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasSuffix(name, recordFileExt) {
				continue
			}
			if table := strings.TrimSuffix(name, recordFileExt); !inOrder[table] {
				fail("table %s: record file present but absent from manifest table order", table)
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Manifest = manifest
	}
	return result
}

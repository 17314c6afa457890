package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppName tags every manifest with the producing system.
	AppName = "autocat-configurator"

	// SchemaVersion is compiled into the engine and compared verbatim
	// against every archive before a restore may proceed.
	SchemaVersion = "1.0"

	manifestFileName = "manifest.json"
	recordFileExt    = ".jsonl"
)

// Manifest is the archive's self-describing metadata: the exact table order
// exported plus per-table row counts and checksums.
type Manifest struct {
	AppName       string            `json:"appName"`
	SchemaVersion string            `json:"schemaVersion"`
	CreatedAt     time.Time         `json:"createdAt"`
	CreatedBy     uint              `json:"createdBy"`
	TableOrder    []string          `json:"tableOrder"`
	TableCounts   map[string]int64  `json:"tableCounts"`
	Checksums     map[string]string `json:"checksums"`
	DBVersion     string            `json:"dbVersion"`
}

// buildManifest assembles a manifest from export results. Apart from the
// CreatedAt capture it is deterministic in its inputs.
func buildManifest(order []string, counts map[string]int64, checksums map[string]string, createdBy uint, dbVersion string) *Manifest {
	return &Manifest{
		AppName:       AppName,
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     createdBy,
		TableOrder:    order,
		TableCounts:   counts,
		Checksums:     checksums,
		DBVersion:     dbVersion,
	}
}

func (m *Manifest) TotalRecords() int64 {
	var total int64
	for _, n := range m.TableCounts {
		total += n
	}
	return total
}

func writeManifest(m *Manifest, dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, manifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func recordFileName(table string) string {
	return table + recordFileExt
}

package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"gorm.io/gorm"
)

const defaultPageSize = 500

type exportResult struct {
	RowCount int64
	Checksum string
}

// exportTable streams one table to w as newline-delimited JSON using keyset
// pagination, so the full table is never buffered in memory. The checksum
// covers exactly the bytes written: each serialized row plus its trailing
// newline, in primary-key order.
func exportTable(tx *gorm.DB, d TableDescriptor, w io.Writer, pageSize int) (exportResult, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	hash := sha256.New()
	out := io.MultiWriter(w, hash)

	var count int64
	var lastSeen int64

	for {
		var rows []map[string]interface{}
		err := tx.Table(d.Name).
			Where(fmt.Sprintf("%s > ?", d.PrimaryKey), lastSeen).
			Order(d.PrimaryKey + " ASC").
			Limit(pageSize).
			Find(&rows).Error
		if err != nil {
			return exportResult{}, fmt.Errorf("query %s after pk %d: %w", d.Name, lastSeen, err)
		}

		for _, raw := range rows {
			line, err := encodeRow(Row(raw))
			if err != nil {
				return exportResult{}, fmt.Errorf("serialize %s row: %w", d.Name, err)
			}
			if _, err := out.Write(append(line, '\n')); err != nil {
				return exportResult{}, fmt.Errorf("write %s record: %w", d.Name, err)
			}
			count++

			pk, err := primaryKeyValue(raw[d.PrimaryKey])
			if err != nil {
				return exportResult{}, fmt.Errorf("table %s: %w", d.Name, err)
			}
			lastSeen = pk
		}

		// A short page means the table is exhausted.
		if len(rows) < pageSize {
			break
		}
	}

	return exportResult{
		RowCount: count,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

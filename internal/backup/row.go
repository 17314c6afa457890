package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Row is one table row keyed by column name. On export values are normalized
// to JSON-friendly types (time columns become RFC 3339 strings); on restore
// declared time columns are parsed back into time.Time before hitting the
// database.
type Row map[string]interface{}

// timeFormats accepted when rehydrating serialized timestamps, most
// specific first.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	default:
		return v
	}
}

// encodeRow serializes a row as one JSON line. json.Marshal sorts map keys,
// so identical rows always produce identical bytes and checksums.
func encodeRow(row Row) ([]byte, error) {
	normalized := make(Row, len(row))
	for col, v := range row {
		normalized[col] = normalizeValue(v)
	}
	return json.Marshal(normalized)
}

// decodeRow parses one JSON line. Numbers are decoded via json.Number and
// kept as int64 when integral, so surrogate keys survive the round trip
// without drifting into floats.
func decodeRow(line []byte) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}

	for col, v := range row {
		if num, ok := v.(json.Number); ok {
			if i, err := num.Int64(); err == nil {
				row[col] = i
				continue
			}
			f, err := num.Float64()
			if err != nil {
				return nil, fmt.Errorf("column %s: invalid number %q", col, num)
			}
			row[col] = f
		}
	}
	return row, nil
}

// reviveTimes converts the descriptor's declared time columns from their
// serialized string form back to time.Time. Null values stay null; a
// non-string, non-null value is a malformed row.
func reviveTimes(d TableDescriptor, row Row) error {
	for _, col := range d.TimeColumns {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("table %s: column %s holds %T, expected timestamp string", d.Name, col, v)
		}
		t, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("table %s: column %s: %w", d.Name, col, err)
		}
		row[col] = t
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// primaryKeyValue coerces a scanned primary key to int64 for keyset
// pagination.
func primaryKeyValue(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case json.Number:
		return val.Int64()
	default:
		return 0, fmt.Errorf("primary key holds %T, expected integer", v)
	}
}

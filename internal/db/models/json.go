// Package models - json.go provides the sql.Scanner/driver.Valuer plumbing shared by
// every JSONB-backed column type, plus the generic JSONMap and StringList helpers.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonbValue marshals v for storage in a Postgres JSONB column.
func jsonbValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	return b, nil
}

// jsonbScan unmarshals a JSONB column into dst. NULL columns leave dst at its zero value.
func jsonbScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}
	return nil
}

// JSONMap is an arbitrary JSON object column (data snapshots, action parameters, metadata).
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return jsonbValue(JSONMap{})
	}
	return jsonbValue(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	return jsonbScan(src, m)
}

// StringList is a JSON array-of-strings column (tags, related IDs, user groups).
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return jsonbValue([]string{})
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB scans and writes a jsonb column as T
type JSONB[T any] struct {
	Data T
}

func NewJSONB[T any](v T) JSONB[T] {
	return JSONB[T]{Data: v}
}

func (p *JSONB[T]) Scan(src any) error {
	var b []byte
	var zero T
	p.Data = zero
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
	return json.Unmarshal(b, &p.Data)
}

// Value renders the JSON as text; pq would send []byte as bytea
func (p JSONB[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

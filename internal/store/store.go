// Package store implements the record-store capability the order pipeline
// reads and writes through: find by table and filter, insert a record.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by Insert when a unique constraint rejects the record.
var ErrDuplicate = errors.New("store: duplicate record")

// ErrUnknownTable is returned for tables outside the schema.
var ErrUnknownTable = errors.New("store: unknown table")

// ErrUnknownColumn is returned for filters or records naming a column outside the schema.
var ErrUnknownColumn = errors.New("store: unknown column")

// Record is a single row keyed by column name.
type Record map[string]any

// ID returns the record primary key.
func (r Record) ID() int64 {
	v, _ := r.Int64("id")
	return v
}

// Int64 returns an integer column value.
func (r Record) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns a text column value or "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns a boolean column value.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	default:
		return false
	}
}

// Decimal returns a numeric column value.
func (r Record) Decimal(key string) (decimal.Decimal, bool) {
	switch v := r[key].(type) {
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// Time returns a timestamp column value.
func (r Record) Time(key string) (time.Time, bool) {
	v, ok := r[key].(time.Time)
	return v, ok
}

// Op is a filter comparison.
type Op string

const (
	// OpEq is exact equality.
	OpEq Op = "eq"
	// OpIEq is case-insensitive equality on text columns. Columns with a
	// folded shadow (nombre) also ignore accents.
	OpIEq Op = "ieq"
	// OpContains is case-insensitive substring match on text columns, folded
	// like OpIEq.
	OpContains Op = "contains"
)

// Filter restricts a Find to rows whose Field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// IEq builds a case-insensitive equality filter.
func IEq(field, value string) Filter { return Filter{Field: field, Op: OpIEq, Value: value} }

// Contains builds a case-insensitive substring filter.
func Contains(field, value string) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// RecordStore is the capability the pipeline depends on.
type RecordStore interface {
	// Find returns up to limit rows of table matching every filter, in
	// ascending id order. limit <= 0 means the store default (100).
	Find(ctx context.Context, table string, filters []Filter, limit int) ([]Record, error)
	// Insert creates a row and returns it including generated id and timestamps.
	Insert(ctx context.Context, table string, rec Record) (Record, error)
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx RecordStore) error) error
}

// Store is a full backend: record access, transactions and lifecycle.
type Store interface {
	RecordStore
	Transactor
	Migrate(ctx context.Context) error
	Close() error
}

const defaultLimit = 100

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/brifyai/pautapro/internal/fuzzy"
)

// Table names.
const (
	TableClientes     = "clientes"
	TableMedios       = "medios"
	TableCampanas     = "campanas"
	TableContratos    = "contratos"
	TableSoportes     = "soportes"
	TableOrdenes      = "ordenes"
	TableAlternativas = "alternativas"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindInt Kind = iota
	KindText
	KindBool
	KindDecimal
	KindDate
	KindTime
	KindJSON
)

// Column describes one table column.
type Column struct {
	Name string
	Kind Kind
}

// Table describes a table the store may touch. Every table has an
// integer "id" primary key and created_at/updated_at timestamps.
type Table struct {
	Name    string
	Columns []Column
}

func (t Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// names returns every column name in schema order.
func (t Table) names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

func table(name string, cols ...Column) Table {
	all := []Column{{"id", KindInt}}
	all = append(all, cols...)
	all = append(all, Column{"created_at", KindTime}, Column{"updated_at", KindTime})
	return Table{Name: name, Columns: all}
}

// foldedSuffix names the shadow column holding the case and accent folded
// copy of a text column. The store writes it on insert and matches
// IEq/Contains filters against it, so "ÑANDÚ" and "ñandu" compare equal on
// every backend.
const foldedSuffix = "_normalizado"

// named is a table with a "nombre" column and its folded shadow.
func named(name string, cols ...Column) Table {
	cols = append(cols, Column{"nombre" + foldedSuffix, KindText})
	return table(name, cols...)
}

// folded returns the shadow column of name, if t has one.
func (t Table) folded(name string) (string, bool) {
	if strings.HasSuffix(name, foldedSuffix) {
		return "", false
	}
	shadow := name + foldedSuffix
	if _, ok := t.column(shadow); !ok {
		return "", false
	}
	return shadow, true
}

// withFolded returns rec with every shadow column derived from its source.
// rec itself is not modified.
func withFolded(t Table, rec Record) Record {
	var out Record
	for _, c := range t.Columns {
		shadow, ok := t.folded(c.Name)
		if !ok {
			continue
		}
		v, ok := rec[c.Name]
		if !ok || v == nil {
			continue
		}
		if out == nil {
			out = maps.Clone(rec)
		}
		out[shadow] = foldText(fmt.Sprint(v))
	}
	if out == nil {
		return rec
	}
	return out
}

func foldText(s string) string {
	return fuzzy.Fold(strings.TrimSpace(s))
}

// textMatch resolves the column and argument an IEq/Contains filter on c
// compares. ok reports whether a folded shadow column is used.
func textMatch(t Table, c Column, v any) (col string, arg any, ok bool) {
	shadow, ok := t.folded(c.Name)
	if !ok || v == nil {
		return c.Name, v, false
	}
	return shadow, foldText(fmt.Sprint(v)), true
}

// Schema lists every table known to the store.
var Schema = map[string]Table{
	TableClientes: named(TableClientes,
		Column{"nombre", KindText},
		Column{"razon_social", KindText},
		Column{"rut", KindText},
	),
	TableMedios: named(TableMedios,
		Column{"nombre", KindText},
		Column{"codigo", KindText},
	),
	TableCampanas: named(TableCampanas,
		Column{"nombre", KindText},
		Column{"id_cliente", KindInt},
		Column{"presupuesto", KindDecimal},
		Column{"fecha_inicio", KindDate},
		Column{"fecha_fin", KindDate},
		Column{"estado", KindText},
	),
	TableContratos: named(TableContratos,
		Column{"nombre", KindText},
		Column{"id_cliente", KindInt},
		Column{"id_medio", KindInt},
		Column{"estado", KindBool},
		Column{"fecha_inicio", KindDate},
		Column{"fecha_fin", KindDate},
	),
	TableSoportes: named(TableSoportes,
		Column{"nombre", KindText},
		Column{"id_medio", KindInt},
	),
	TableOrdenes: table(TableOrdenes,
		Column{"id_cliente", KindInt},
		Column{"id_campana", KindInt},
		Column{"id_contrato", KindInt},
		Column{"id_soporte", KindInt},
		Column{"id_medio", KindInt},
		Column{"producto", KindText},
		Column{"presupuesto", KindDecimal},
		Column{"mes", KindInt},
		Column{"anio", KindInt},
		Column{"fecha_inicio", KindDate},
		Column{"fecha_fin", KindDate},
		Column{"estado", KindText},
		Column{"descripcion", KindText},
	),
	TableAlternativas: table(TableAlternativas,
		Column{"id_orden", KindInt},
		Column{"id_soporte", KindInt},
		Column{"id_medio", KindInt},
		Column{"id_contrato", KindInt},
		Column{"id_campana", KindInt},
		Column{"descripcion", KindText},
		Column{"cantidad", KindInt},
		Column{"valor_total", KindDecimal},
		Column{"calendario", KindJSON},
	),
}

func lookupTable(name string) (Table, error) {
	t, ok := Schema[name]
	if !ok {
		return Table{}, eris.Wrapf(ErrUnknownTable, "table %q", name)
	}
	return t, nil
}

// insertColumns validates rec against t and returns the sorted column
// list with encoded values. created_at/updated_at default to now.
func insertColumns(t Table, rec Record, now time.Time, enc encoder) ([]string, []any, error) {
	rec = withFolded(t, rec)
	for k := range rec {
		if _, ok := t.column(k); !ok || k == "id" {
			return nil, nil, eris.Wrapf(ErrUnknownColumn, "%s.%s", t.Name, k)
		}
	}
	var cols []string
	var vals []any
	for _, c := range t.Columns {
		if c.Name == "id" {
			continue
		}
		v, ok := rec[c.Name]
		if !ok && (c.Name == "created_at" || c.Name == "updated_at") {
			v, ok = now, true
		}
		if !ok {
			continue
		}
		ev, err := encodeValue(c, v, enc)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "%s.%s", t.Name, c.Name)
		}
		cols = append(cols, c.Name)
		vals = append(vals, ev)
	}
	return cols, vals, nil
}

// encoder distinguishes the small differences in how each driver wants values.
type encoder struct {
	jsonAsBytes bool
}

func encodeValue(c Column, v any, enc encoder) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Kind {
	case KindInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case *int64:
			if x == nil {
				return nil, nil
			}
			return *x, nil
		case *int:
			if x == nil {
				return nil, nil
			}
			return int64(*x), nil
		}
	case KindText:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case KindBool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x.String(), nil
		case *decimal.Decimal:
			if x == nil {
				return nil, nil
			}
			return x.String(), nil
		case string:
			if _, err := decimal.NewFromString(x); err != nil {
				return nil, eris.Wrap(err, "decimal")
			}
			return x, nil
		case int:
			return strconv.Itoa(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return decimal.NewFromFloat(x).String(), nil
		}
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			if x.IsZero() {
				return nil, nil
			}
			return x.Format(time.DateOnly), nil
		case string:
			return x, nil
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return x, nil
		}
	case KindJSON:
		var raw []byte
		switch x := v.(type) {
		case []byte:
			raw = x
		case json.RawMessage:
			raw = x
		case string:
			raw = []byte(x)
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, eris.Wrap(err, "marshal json")
			}
			raw = b
		}
		if enc.jsonAsBytes {
			return raw, nil
		}
		return string(raw), nil
	}
	return nil, eris.Errorf("unsupported value %T", v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// decodeValue normalizes a driver value to the Record representation:
// int64, string, bool, decimal.Decimal, date string, time.Time, json string.
func decodeValue(c Column, v any) any {
	if v == nil {
		return nil
	}
	switch c.Kind {
	case KindInt:
		switch x := v.(type) {
		case int64:
			return x
		case int32:
			return int64(x)
		case int:
			return int64(x)
		case float64:
			return int64(x)
		}
	case KindBool:
		switch x := v.(type) {
		case bool:
			return x
		case int64:
			return x != 0
		}
	case KindDecimal:
		switch x := v.(type) {
		case string:
			if d, err := decimal.NewFromString(x); err == nil {
				return d
			}
		case []byte:
			if d, err := decimal.NewFromString(string(x)); err == nil {
				return d
			}
		case int64:
			return decimal.NewFromInt(x)
		case float64:
			return decimal.NewFromFloat(x)
		}
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			return x.Format(time.DateOnly)
		case string:
			if len(x) >= len(time.DateOnly) {
				return x[:len(time.DateOnly)]
			}
			return x
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC()
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t.UTC()
				}
			}
			return x
		}
	case KindJSON, KindText:
		switch x := v.(type) {
		case []byte:
			return string(x)
		}
	}
	return v
}

func decodeRow(t Table, cols []string, vals []any) Record {
	rec := make(Record, len(cols))
	for i, name := range cols {
		c, ok := t.column(name)
		if !ok {
			rec[name] = vals[i]
			continue
		}
		rec[name] = decodeValue(c, vals[i])
	}
	return rec
}

func isUniqueViolationMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

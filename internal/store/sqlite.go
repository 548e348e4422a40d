package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqlQuerier is implemented by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	sqliteRecords
}

// sqliteRecords holds the record operations shared by the store and its
// transactions.
type sqliteRecords struct {
	q   sqlQuerier
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return NewSQLiteFromDB(db), nil
}

// NewSQLiteFromDB wraps an already opened database handle.
func NewSQLiteFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, sqliteRecords: sqliteRecords{q: db, now: time.Now}}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clientes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre       TEXT NOT NULL,
	razon_social TEXT,
	rut          TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS medios (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre     TEXT NOT NULL,
	codigo     TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campanas (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre       TEXT NOT NULL,
	id_cliente   INTEGER NOT NULL REFERENCES clientes(id),
	presupuesto  TEXT,
	fecha_inicio TEXT,
	fecha_fin    TEXT,
	estado       TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contratos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre       TEXT,
	id_cliente   INTEGER NOT NULL REFERENCES clientes(id),
	id_medio     INTEGER NOT NULL REFERENCES medios(id),
	estado       INTEGER NOT NULL DEFAULT 1,
	fecha_inicio TEXT,
	fecha_fin    TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS soportes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	nombre     TEXT NOT NULL,
	id_medio   INTEGER NOT NULL REFERENCES medios(id),
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ordenes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	id_cliente   INTEGER REFERENCES clientes(id),
	id_campana   INTEGER REFERENCES campanas(id),
	id_contrato  INTEGER REFERENCES contratos(id),
	id_soporte   INTEGER REFERENCES soportes(id),
	id_medio     INTEGER REFERENCES medios(id),
	producto     TEXT,
	presupuesto  TEXT,
	mes          INTEGER,
	anio         INTEGER,
	fecha_inicio TEXT,
	fecha_fin    TEXT,
	estado       TEXT,
	descripcion  TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alternativas (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	id_orden    INTEGER NOT NULL REFERENCES ordenes(id),
	id_soporte  INTEGER REFERENCES soportes(id),
	id_medio    INTEGER REFERENCES medios(id),
	id_contrato INTEGER REFERENCES contratos(id),
	id_campana  INTEGER REFERENCES campanas(id),
	descripcion TEXT,
	cantidad    INTEGER,
	valor_total TEXT,
	calendario  TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_campanas_cliente_nombre ON campanas(id_cliente, nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_clientes_nombre ON clientes(nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_medios_nombre ON medios(nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_contratos_cliente_medio ON contratos(id_cliente, id_medio);
CREATE INDEX IF NOT EXISTS idx_soportes_medio ON soportes(id_medio);
CREATE INDEX IF NOT EXISTS idx_alternativas_orden ON alternativas(id_orden);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx RecordStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &sqliteRecords{q: tx, now: s.now}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *sqliteRecords) Find(ctx context.Context, tableName string, filters []Filter, limit int) ([]Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	where, args, err := sqliteWhere(t, filters)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id ASC LIMIT ?`,
		strings.Join(t.names(), ", "), t.Name, where)
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", t.Name)
	}
	defer rows.Close()

	recs, err := scanSQLRows(t, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s", t.Name)
	}
	return recs, nil
}

func (s *sqliteRecords) Insert(ctx context.Context, tableName string, rec Record) (Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	cols, vals, err := insertColumns(t, rec, s.now().UTC(), encoder{})
	if err != nil {
		return nil, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		t.Name, strings.Join(cols, ", "), placeholders, strings.Join(t.names(), ", "))

	rows, err := s.q.QueryContext(ctx, query, vals...)
	if err != nil {
		if isUniqueViolationMessage(err.Error()) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: insert %s: %v", t.Name, err)
		}
		return nil, eris.Wrapf(err, "sqlite: insert %s", t.Name)
	}
	defer rows.Close()

	recs, err := scanSQLRows(t, rows)
	if err != nil {
		if isUniqueViolationMessage(err.Error()) {
			return nil, eris.Wrapf(ErrDuplicate, "sqlite: insert %s: %v", t.Name, err)
		}
		return nil, eris.Wrapf(err, "sqlite: insert %s", t.Name)
	}
	if len(recs) == 0 {
		return nil, eris.Errorf("sqlite: insert %s returned no row", t.Name)
	}
	return recs[0], nil
}

func sqliteWhere(t Table, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		c, ok := t.column(f.Field)
		if !ok {
			return "", nil, eris.Wrapf(ErrUnknownColumn, "%s.%s", t.Name, f.Field)
		}
		v, err := encodeValue(c, f.Value, encoder{})
		if err != nil {
			return "", nil, eris.Wrapf(err, "filter %s.%s", t.Name, f.Field)
		}
		switch f.Op {
		case OpEq:
			if v == nil {
				clauses = append(clauses, c.Name+" IS NULL")
				continue
			}
			clauses = append(clauses, c.Name+" = ?")
		case OpIEq:
			col, arg, folded := textMatch(t, c, v)
			if folded {
				clauses = append(clauses, col+" = ?")
			} else {
				clauses = append(clauses, "lower("+col+") = lower(?)")
			}
			v = arg
		case OpContains:
			col, arg, folded := textMatch(t, c, v)
			if folded {
				clauses = append(clauses, col+` LIKE '%' || ? || '%' ESCAPE '\'`)
			} else {
				clauses = append(clauses, "lower("+col+`) LIKE '%' || lower(?) || '%' ESCAPE '\'`)
			}
			v = escapeLike(fmt.Sprint(arg))
		default:
			return "", nil, eris.Errorf("store: unsupported filter op %q", f.Op)
		}
		args = append(args, v)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanSQLRows(t Table, rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var recs []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		recs = append(recs, decodeRow(t, cols, vals))
	}
	return recs, rows.Err()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brifyai/pautapro/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	pgRecords
}

type pgRecords struct {
	q   db.Querier
	now func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	s := NewPostgresFromPool(pool)
	s.closeFn = pool.Close
	return s, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgRecords: pgRecords{q: pool, now: time.Now}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clientes (
	id           BIGSERIAL PRIMARY KEY,
	nombre       TEXT NOT NULL,
	razon_social TEXT,
	rut          TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS medios (
	id         BIGSERIAL PRIMARY KEY,
	nombre     TEXT NOT NULL,
	codigo     TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campanas (
	id           BIGSERIAL PRIMARY KEY,
	nombre       TEXT NOT NULL,
	id_cliente   BIGINT NOT NULL REFERENCES clientes(id),
	presupuesto  NUMERIC(18,2),
	fecha_inicio DATE,
	fecha_fin    DATE,
	estado       TEXT,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contratos (
	id           BIGSERIAL PRIMARY KEY,
	nombre       TEXT,
	id_cliente   BIGINT NOT NULL REFERENCES clientes(id),
	id_medio     BIGINT NOT NULL REFERENCES medios(id),
	estado       BOOLEAN NOT NULL DEFAULT true,
	fecha_inicio DATE,
	fecha_fin    DATE,
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS soportes (
	id         BIGSERIAL PRIMARY KEY,
	nombre     TEXT NOT NULL,
	id_medio   BIGINT NOT NULL REFERENCES medios(id),
	nombre_normalizado TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ordenes (
	id           BIGSERIAL PRIMARY KEY,
	id_cliente   BIGINT REFERENCES clientes(id),
	id_campana   BIGINT REFERENCES campanas(id),
	id_contrato  BIGINT REFERENCES contratos(id),
	id_soporte   BIGINT REFERENCES soportes(id),
	id_medio     BIGINT REFERENCES medios(id),
	producto     TEXT,
	presupuesto  NUMERIC(18,2),
	mes          INTEGER,
	anio         INTEGER,
	fecha_inicio DATE,
	fecha_fin    DATE,
	estado       TEXT,
	descripcion  TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alternativas (
	id          BIGSERIAL PRIMARY KEY,
	id_orden    BIGINT NOT NULL REFERENCES ordenes(id),
	id_soporte  BIGINT REFERENCES soportes(id),
	id_medio    BIGINT REFERENCES medios(id),
	id_contrato BIGINT REFERENCES contratos(id),
	id_campana  BIGINT REFERENCES campanas(id),
	descripcion TEXT,
	cantidad    INTEGER,
	valor_total NUMERIC(18,2),
	calendario  JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_campanas_cliente_nombre ON campanas(id_cliente, nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_clientes_nombre ON clientes(nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_medios_nombre ON medios(nombre_normalizado);
CREATE INDEX IF NOT EXISTS idx_contratos_cliente_medio ON contratos(id_cliente, id_medio);
CREATE INDEX IF NOT EXISTS idx_soportes_medio ON soportes(id_medio);
CREATE INDEX IF NOT EXISTS idx_alternativas_orden ON alternativas(id_orden);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx RecordStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &pgRecords{q: tx, now: s.now}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// pgSelectList casts numeric, date and json columns to text so every
// driver value decodes the same way as SQLite's.
func pgSelectList(t Table) string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		switch c.Kind {
		case KindDecimal, KindDate, KindJSON:
			parts[i] = fmt.Sprintf("%s::text AS %s", c.Name, c.Name)
		default:
			parts[i] = c.Name
		}
	}
	return strings.Join(parts, ", ")
}

func (s *pgRecords) Find(ctx context.Context, tableName string, filters []Filter, limit int) ([]Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	where, args, err := pgWhere(t, filters)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY id ASC LIMIT $%d`,
		pgSelectList(t), t.Name, where, len(args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", t.Name)
	}
	recs, err := scanPgRows(t, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s", t.Name)
	}
	return recs, nil
}

func (s *pgRecords) Insert(ctx context.Context, tableName string, rec Record) (Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	cols, vals, err := insertColumns(t, rec, s.now().UTC(), encoder{jsonAsBytes: true})
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		t.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), pgSelectList(t))

	rows, err := s.q.Query(ctx, query, vals...)
	if err != nil {
		return nil, wrapPgInsertErr(err, t.Name)
	}
	recs, err := scanPgRows(t, rows)
	if err != nil {
		return nil, wrapPgInsertErr(err, t.Name)
	}
	if len(recs) == 0 {
		return nil, eris.Errorf("postgres: insert %s returned no row", t.Name)
	}
	return recs[0], nil
}

func wrapPgInsertErr(err error, table string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return eris.Wrapf(ErrDuplicate, "postgres: insert %s: %s", table, pgErr.ConstraintName)
	}
	return eris.Wrapf(err, "postgres: insert %s", table)
}

func pgWhere(t Table, filters []Filter) (string, []any, error) {
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
		v, err := encodeValue(c, f.Value, encoder{jsonAsBytes: true})
		if err != nil {
			return "", nil, eris.Wrapf(err, "filter %s.%s", t.Name, f.Field)
		}
		if f.Op == OpEq && v == nil {
			clauses = append(clauses, c.Name+" IS NULL")
			continue
		}
		n := len(args) + 1
		switch f.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", c.Name, n))
		case OpIEq:
			col, arg, folded := textMatch(t, c, v)
			if folded {
				clauses = append(clauses, fmt.Sprintf("%s = $%d", col, n))
			} else {
				clauses = append(clauses, fmt.Sprintf("lower(%s) = lower($%d)", col, n))
			}
			v = arg
		case OpContains:
			col, arg, folded := textMatch(t, c, v)
			op := "ILIKE"
			if folded {
				op = "LIKE"
			}
			clauses = append(clauses, fmt.Sprintf(`%s %s '%%' || $%d || '%%'`, col, op, n))
			v = escapeLike(fmt.Sprint(arg))
		default:
			return "", nil, eris.Errorf("store: unsupported filter op %q", f.Op)
		}
		args = append(args, v)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanPgRows(t Table, rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	var recs []Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		recs = append(recs, decodeRow(t, cols, vals))
	}
	return recs, rows.Err()
}

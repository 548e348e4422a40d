package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecords_FindPropagatesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteFromDB(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, nombre, razon_social, rut, nombre_normalizado, created_at, updated_at FROM clientes WHERE nombre_normalizado LIKE")).
		WithArgs("retail", 5).
		WillReturnError(errors.New("disk I/O error"))

	_, err = st.Find(context.Background(), TableClientes, []Filter{Contains("nombre", "retail")}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: find clientes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRecords_InsertMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteFromDB(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO campanas")).
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: index 'idx_campanas_cliente_nombre' (2067)"))

	_, err = st.Insert(context.Background(), TableCampanas, Record{"nombre": "Verano", "id_cliente": int64(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRecords_InsertReturnsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewSQLiteFromDB(db)
	rows := sqlmock.NewRows([]string{"id", "nombre", "codigo", "created_at", "updated_at"}).
		AddRow(int64(42), "Radio Bío-Bío", nil, "2026-10-15T10:00:00Z", "2026-10-15T10:00:00Z")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO medios (nombre, nombre_normalizado, created_at, updated_at) VALUES (?, ?, ?, ?) RETURNING")).
		WithArgs("Radio Bío-Bío", "radio bio-bio", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	rec, err := st.Insert(context.Background(), TableMedios, Record{"nombre": "Radio Bío-Bío"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID())
	created, ok := rec.Time("created_at")
	require.True(t, ok)
	assert.Equal(t, 2026, created.Year())
	assert.NoError(t, mock.ExpectationsWereMet())
}

package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testOrder() (model.Orden, []model.Alternativa, model.ResolvedEntity) {
	budget := decimal.NewFromInt(500000)
	orden := model.Orden{
		ID:          model.ID(42),
		Producto:    "Lanzamiento",
		Presupuesto: &budget,
		Mes:         3,
		Anio:        2026,
		FechaInicio: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		FechaFin:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Estado:      model.OrderStatusCreada,
	}
	cal := make([]model.CalendarDay, 31)
	for i := range cal {
		cal[i] = model.CalendarDay{Dia: i + 1, Activo: i%2 == 0, Cantidad: 1}
	}
	alts := []model.Alternativa{{Descripcion: "Lanzamiento", Cantidad: 31, ValorTotal: &budget, Calendar: cal}}
	cliente := model.ResolvedEntity{Kind: model.KindCliente, ID: 1, Nombre: "Retail Corp", Fields: map[string]any{"rut": "76.111.111-1"}}
	return orden, alts, cliente
}

func TestGenerateOrderDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	g := NewXLSXGenerator(dir)
	orden, alts, cliente := testOrder()

	doc, err := g.GenerateOrderDocument(context.Background(), orden, alts, cliente, "Campaña Verano")
	require.NoError(t, err)
	assert.Equal(t, "orden_42.xlsx", doc.Name)
	assert.Equal(t, filepath.Join(dir, "orden_42.xlsx"), doc.Path)
	assert.Positive(t, doc.Size)

	f, err := xlsx.OpenFile(doc.Path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["Orden"]
	require.True(t, ok)

	values := map[string]string{}
	for _, row := range sheet.Rows {
		if len(row.Cells) >= 2 {
			values[row.Cells[0].String()] = row.Cells[1].String()
		}
	}
	assert.Equal(t, "Retail Corp", values["Cliente"])
	assert.Equal(t, "76.111.111-1", values["RUT"])
	assert.Equal(t, "Campaña Verano", values["Campaña"])
	assert.Equal(t, "marzo 2026", values["Periodo"])
	assert.Equal(t, "$500.000", values["Presupuesto"])
	assert.Equal(t, "01-03-2026", values["Inicio"])

	last := sheet.Rows[len(sheet.Rows)-1]
	require.Len(t, last.Cells, 3+31)
	assert.Equal(t, "Lanzamiento", last.Cells[0].String())
	assert.Equal(t, "1", last.Cells[3].String())
	assert.Equal(t, "", last.Cells[4].String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestGenerateOrderDocument_NoID(t *testing.T) {
	g := NewXLSXGenerator(t.TempDir())
	orden, alts, cliente := testOrder()
	orden.ID = nil

	_, err := g.GenerateOrderDocument(context.Background(), orden, alts, cliente, "x")
	assert.ErrorIs(t, err, ErrGenerate)
}

func TestGenerateOrderDocument_Canceled(t *testing.T) {
	dir := t.TempDir()
	g := NewXLSXGenerator(dir)
	orden, alts, cliente := testOrder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateOrderDocument(ctx, orden, alts, cliente, "x")
	assert.ErrorIs(t, err, ErrGenerate)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, "orden_42.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateOrderDocument_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	g := NewXLSXGenerator(file)
	orden, alts, cliente := testOrder()

	_, err := g.GenerateOrderDocument(context.Background(), orden, alts, cliente, "x")
	assert.ErrorIs(t, err, ErrGenerate)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$500.000", FormatAmount(decimal.NewFromInt(500000)))
	assert.Equal(t, "$1.000.000", FormatAmount(decimal.NewFromInt(1000000)))
	assert.Equal(t, "$0", FormatAmount(decimal.Zero))
	assert.Equal(t, "$1.234,50", FormatAmount(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-", FormatAmountPtr(nil))
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "enero", MonthName(1))
	assert.Equal(t, "diciembre", MonthName(12))
	assert.Equal(t, "mes 13", MonthName(13))
}

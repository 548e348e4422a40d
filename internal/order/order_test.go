package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pautapro/internal/model"
)

var now = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

func entities() model.ExtractedEntities {
	cliente, producto, medio := "Retail Corp", "Lanzamiento", "Televisión"
	monto := decimal.NewFromInt(500000)
	return model.ExtractedEntities{
		Cliente:  &cliente,
		Producto: &producto,
		Medio:    &medio,
		Monto:    &monto,
		Anio:     2026,
	}
}

func TestBuild_DefaultsToCurrentMonth(t *testing.T) {
	s := Build(entities(), now)

	assert.Equal(t, 10, s.Orden.Mes)
	assert.Equal(t, 2026, s.Orden.Anio)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), s.Orden.FechaInicio)
	assert.Equal(t, time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC), s.Orden.FechaFin)
	assert.Equal(t, model.OrderStatusPendiente, s.Orden.Estado)
	assert.Equal(t, "Lanzamiento", s.Orden.Producto)
	assert.Equal(t, "Orden Lanzamiento - Televisión", s.Orden.Descripcion)
	require.NotNil(t, s.Orden.Presupuesto)
	assert.True(t, decimal.NewFromInt(500000).Equal(*s.Orden.Presupuesto))

	assert.Equal(t, "Lanzamiento", s.Campana.Nombre)
	assert.Nil(t, s.Campana.ID)
	assert.Nil(t, s.Orden.IDCliente)

	require.Len(t, s.Alternativas, 1)
	a := s.Alternativas[0]
	require.Len(t, a.Calendar, 31)
	for i, d := range a.Calendar {
		assert.Equal(t, model.CalendarDay{Dia: i + 1, Activo: true, Cantidad: 1}, d)
	}
	assert.Equal(t, 31, a.Cantidad)
	assert.Equal(t, 31, a.ActiveUnits())
}

func TestBuild_ExplicitMonthAndDuration(t *testing.T) {
	e := entities()
	mes, dur := 2, 10
	e.Mes = &mes
	e.Duracion = &dur
	e.Anio = 2028

	s := Build(e, now)

	assert.Equal(t, time.Date(2028, 2, 1, 0, 0, 0, 0, time.UTC), s.Orden.FechaInicio)
	assert.Equal(t, time.Date(2028, 2, 11, 0, 0, 0, 0, time.UTC), s.Orden.FechaFin)
	assert.Equal(t, s.Orden.FechaFin, s.Campana.FechaFin)
	// 2028 is a leap year; the calendar still spans the whole month.
	assert.Len(t, s.Alternativas[0].Calendar, 29)
}

func TestBuild_QuantityOverride(t *testing.T) {
	e := entities()
	n := 12
	e.Cantidad = &n

	s := Build(e, now)
	assert.Equal(t, 12, s.Alternativas[0].Cantidad)
}

func TestBuild_BudgetNotShared(t *testing.T) {
	s := Build(entities(), now)
	*s.Orden.Presupuesto = decimal.NewFromInt(1)

	assert.True(t, decimal.NewFromInt(500000).Equal(*s.Campana.Presupuesto))
	assert.True(t, decimal.NewFromInt(500000).Equal(*s.Alternativas[0].ValorTotal))
}

func resolved() model.ResolutionOutcome {
	return model.ResolutionOutcome{
		Cliente:  &model.ResolvedEntity{Kind: model.KindCliente, ID: 1, Nombre: "Retail Corp"},
		Medio:    &model.ResolvedEntity{Kind: model.KindMedio, ID: 2, Nombre: "Televisión"},
		Campana:  &model.ResolvedEntity{Kind: model.KindCampana, ID: 3, Nombre: "lanzamiento"},
		Contrato: &model.ResolvedEntity{Kind: model.KindContrato, ID: 4},
		Soporte:  &model.ResolvedEntity{Kind: model.KindSoporte, ID: 5},
	}
}

func TestPrepare_BackfillsForeignKeys(t *testing.T) {
	s := Build(entities(), now)
	p := Prepare(s, resolved())

	assert.Equal(t, int64(1), *p.Orden.IDCliente)
	assert.Equal(t, int64(2), *p.Orden.IDMedio)
	assert.Equal(t, int64(3), *p.Orden.IDCampana)
	assert.Equal(t, int64(4), *p.Orden.IDContrato)
	assert.Equal(t, int64(5), *p.Orden.IDSoporte)

	assert.Equal(t, int64(3), *p.Campana.ID)
	assert.Equal(t, int64(1), *p.Campana.IDCliente)
	assert.Equal(t, "lanzamiento", p.Campana.Nombre)

	a := p.Alternativas[0]
	assert.Equal(t, int64(2), *a.IDMedio)
	assert.Equal(t, int64(3), *a.IDCampana)
	assert.Equal(t, int64(4), *a.IDContrato)
	assert.Equal(t, int64(5), *a.IDSoporte)
	assert.Nil(t, a.IDOrden)
}

func TestPrepare_DoesNotMutateInputs(t *testing.T) {
	s := Build(entities(), now)
	r := resolved()
	before := s.Clone()
	beforeR := r.Clone()

	p := Prepare(s, r)
	*p.Orden.IDCliente = 99
	p.Alternativas[0].Calendar[0].Activo = false

	assert.Equal(t, before, s)
	assert.Equal(t, beforeR, r)
	assert.Equal(t, int64(1), *p.Campana.IDCliente)
}

func TestPrepare_PartialOutcomeKeepsNil(t *testing.T) {
	s := Build(entities(), now)
	p := Prepare(s, model.ResolutionOutcome{
		Cliente: &model.ResolvedEntity{ID: 7},
	})

	assert.Equal(t, int64(7), *p.Orden.IDCliente)
	assert.Nil(t, p.Orden.IDMedio)
	assert.Nil(t, p.Alternativas[0].IDSoporte)
	assert.Equal(t, "Lanzamiento", p.Campana.Nombre)
}

// Package order assembles the draft record graph for an advertising order
// and back-fills its foreign keys once entities are resolved.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/brifyai/pautapro/internal/model"
)

// Build derives the draft order, campaign and single line item from an
// entity bag. The target month defaults to now's month and the year to
// entities.Anio (or now's year when unset). The line-item calendar always
// covers every day of the target month.
func Build(e model.ExtractedEntities, now time.Time) model.OrderStructure {
	year := e.Anio
	if year == 0 {
		year = now.Year()
	}
	month := int(now.Month())
	if e.Mes != nil {
		month = *e.Mes
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := start.AddDate(0, 1, -1)
	end := monthEnd
	if e.Duracion != nil && *e.Duracion > 0 {
		end = start.AddDate(0, 0, *e.Duracion)
	}

	days := monthEnd.Day()
	calendar := make([]model.CalendarDay, days)
	for i := range calendar {
		calendar[i] = model.CalendarDay{Dia: i + 1, Activo: true, Cantidad: 1}
	}

	cantidad := days
	if e.Cantidad != nil {
		cantidad = *e.Cantidad
	}

	producto := e.ProductoName()
	budget := e.Monto
	if budget != nil {
		v := *budget
		budget = &v
	}

	s := model.OrderStructure{
		Orden: model.Orden{
			Producto:    producto,
			Presupuesto: budget,
			Mes:         month,
			Anio:        year,
			FechaInicio: start,
			FechaFin:    end,
			Estado:      model.OrderStatusPendiente,
			Descripcion: describe(producto, e.MedioName()),
		},
		Campana: model.CampanaDraft{
			Nombre:      producto,
			Presupuesto: budget,
			FechaInicio: start,
			FechaFin:    end,
		},
		Alternativas: []model.Alternativa{{
			Descripcion: producto,
			Cantidad:    cantidad,
			ValorTotal:  budget,
			Calendar:    calendar,
		}},
	}
	// Campaign and order must not share the budget pointer.
	return s.Clone()
}

// Prepare returns a copy of s with every foreign key back-filled from the
// resolved entities. Neither input is modified.
func Prepare(s model.OrderStructure, r model.ResolutionOutcome) model.OrderStructure {
	c := s.Clone()

	c.Orden.IDCliente = fk(r.Cliente, c.Orden.IDCliente)
	c.Orden.IDMedio = fk(r.Medio, c.Orden.IDMedio)
	c.Orden.IDCampana = fk(r.Campana, c.Orden.IDCampana)
	c.Orden.IDContrato = fk(r.Contrato, c.Orden.IDContrato)
	c.Orden.IDSoporte = fk(r.Soporte, c.Orden.IDSoporte)

	c.Campana.ID = fk(r.Campana, c.Campana.ID)
	c.Campana.IDCliente = fk(r.Cliente, c.Campana.IDCliente)
	if r.Campana != nil && r.Campana.Nombre != "" {
		c.Campana.Nombre = r.Campana.Nombre
	}

	for i := range c.Alternativas {
		a := &c.Alternativas[i]
		a.IDMedio = fk(r.Medio, a.IDMedio)
		a.IDCampana = fk(r.Campana, a.IDCampana)
		a.IDContrato = fk(r.Contrato, a.IDContrato)
		a.IDSoporte = fk(r.Soporte, a.IDSoporte)
	}
	return c
}

func describe(producto, medio string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{producto, medio} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("Orden %s", strings.Join(parts, " - "))
}

// fk returns a fresh pointer to e's ID, or cur when e is unresolved.
func fk(e *model.ResolvedEntity, cur *int64) *int64 {
	if e == nil {
		return cur
	}
	return model.ID(e.ID)
}

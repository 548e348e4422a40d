package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status stored on an order record.
type OrderStatus string

const (
	OrderStatusPendiente OrderStatus = "pendiente"
	OrderStatusCreada    OrderStatus = "creada"
)

// Orden is the advertising order header.
type Orden struct {
	ID          *int64           `json:"id,omitempty"`
	IDCliente   *int64           `json:"id_cliente"`
	IDCampana   *int64           `json:"id_campana"`
	IDContrato  *int64           `json:"id_contrato"`
	IDSoporte   *int64           `json:"id_soporte"`
	IDMedio     *int64           `json:"id_medio"`
	Producto    string           `json:"producto"`
	Presupuesto *decimal.Decimal `json:"presupuesto,omitempty"`
	Mes         int              `json:"mes"`
	Anio        int              `json:"anio"`
	FechaInicio time.Time        `json:"fecha_inicio"`
	FechaFin    time.Time        `json:"fecha_fin"`
	Estado      OrderStatus      `json:"estado"`
	Descripcion string           `json:"descripcion,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
}

// CampanaDraft is the campaign an order belongs to, reused or created
// during resolution.
type CampanaDraft struct {
	ID          *int64           `json:"id,omitempty"`
	Nombre      string           `json:"nombre"`
	IDCliente   *int64           `json:"id_cliente"`
	Presupuesto *decimal.Decimal `json:"presupuesto,omitempty"`
	FechaInicio time.Time        `json:"fecha_inicio"`
	FechaFin    time.Time        `json:"fecha_fin"`
}

// CalendarDay is one day of a line item's placement calendar.
type CalendarDay struct {
	Dia      int  `json:"dia"`
	Activo   bool `json:"activo"`
	Cantidad int  `json:"cantidad"`
}

// Alternativa is an order line item.
type Alternativa struct {
	ID          *int64           `json:"id,omitempty"`
	IDOrden     *int64           `json:"id_orden"`
	IDSoporte   *int64           `json:"id_soporte"`
	IDMedio     *int64           `json:"id_medio"`
	IDContrato  *int64           `json:"id_contrato"`
	IDCampana   *int64           `json:"id_campana"`
	Descripcion string           `json:"descripcion"`
	Cantidad    int              `json:"cantidad"`
	ValorTotal  *decimal.Decimal `json:"valor_total,omitempty"`
	Calendar    []CalendarDay    `json:"calendar"`
}

// ActiveUnits sums the quantity over active calendar days.
func (a Alternativa) ActiveUnits() int {
	total := 0
	for _, d := range a.Calendar {
		if d.Activo {
			total += d.Cantidad
		}
	}
	return total
}

// OrderStructure is the draft record graph built from an instruction.
type OrderStructure struct {
	Orden        Orden         `json:"orden"`
	Campana      CampanaDraft  `json:"campana"`
	Alternativas []Alternativa `json:"alternativas"`
}

// Clone returns a deep copy of the structure.
func (s OrderStructure) Clone() OrderStructure {
	c := OrderStructure{
		Orden:   s.Orden,
		Campana: s.Campana,
	}
	c.Orden.ID = cloneID(s.Orden.ID)
	c.Orden.IDCliente = cloneID(s.Orden.IDCliente)
	c.Orden.IDCampana = cloneID(s.Orden.IDCampana)
	c.Orden.IDContrato = cloneID(s.Orden.IDContrato)
	c.Orden.IDSoporte = cloneID(s.Orden.IDSoporte)
	c.Orden.IDMedio = cloneID(s.Orden.IDMedio)
	c.Orden.Presupuesto = cloneDecimal(s.Orden.Presupuesto)
	c.Campana.ID = cloneID(s.Campana.ID)
	c.Campana.IDCliente = cloneID(s.Campana.IDCliente)
	c.Campana.Presupuesto = cloneDecimal(s.Campana.Presupuesto)

	if s.Alternativas != nil {
		c.Alternativas = make([]Alternativa, len(s.Alternativas))
		for i, a := range s.Alternativas {
			ca := a
			ca.ID = cloneID(a.ID)
			ca.IDOrden = cloneID(a.IDOrden)
			ca.IDSoporte = cloneID(a.IDSoporte)
			ca.IDMedio = cloneID(a.IDMedio)
			ca.IDContrato = cloneID(a.IDContrato)
			ca.IDCampana = cloneID(a.IDCampana)
			ca.ValorTotal = cloneDecimal(a.ValorTotal)
			if a.Calendar != nil {
				ca.Calendar = append([]CalendarDay(nil), a.Calendar...)
			}
			c.Alternativas[i] = ca
		}
	}
	return c
}

// PendingOrder is a fully resolved draft waiting for user confirmation.
type PendingOrder struct {
	Structure OrderStructure    `json:"structure"`
	Entities  ExtractedEntities `json:"entities"`
	Resolved  ResolutionOutcome `json:"resolved"`
	CreatedAt time.Time         `json:"created_at"`
}

// ID returns a pointer to a copy of v.
func ID(v int64) *int64 { return &v }

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// Package model defines the data types shared by the order-creation pipeline.
package model

import (
	"github.com/shopspring/decimal"
)

// Field names used in validation results and clarification prompts.
const (
	FieldCliente  = "cliente"
	FieldProducto = "producto"
	FieldMedio    = "medio"
	FieldMonto    = "monto"
	FieldMes      = "mes"
	FieldAnio     = "anio"
	FieldDuracion = "duracion"
	FieldCantidad = "cantidad"
)

// RequiredFields lists the fields an order cannot be created without, in
// the order they are reported as missing.
var RequiredFields = []string{FieldCliente, FieldProducto, FieldMedio}

// ExtractedEntities is the flat bag of values pulled out of a free-text
// instruction. Every field is optional; nil means "not found".
type ExtractedEntities struct {
	Cliente  *string          `json:"cliente,omitempty"`
	Producto *string          `json:"producto,omitempty"`
	Medio    *string          `json:"medio,omitempty"`
	Monto    *decimal.Decimal `json:"monto,omitempty"`
	Mes      *int             `json:"mes,omitempty"`
	Anio     int              `json:"anio"`
	Duracion *int             `json:"duracion,omitempty"`
	Cantidad *int             `json:"cantidad,omitempty"`

	// Invalid names fields whose raw text was present but rejected
	// (e.g. "mes 13").
	Invalid []string `json:"invalid,omitempty"`
}

// Has reports whether the named field carries a value.
func (e ExtractedEntities) Has(field string) bool {
	switch field {
	case FieldCliente:
		return e.Cliente != nil && *e.Cliente != ""
	case FieldProducto:
		return e.Producto != nil && *e.Producto != ""
	case FieldMedio:
		return e.Medio != nil && *e.Medio != ""
	case FieldMonto:
		return e.Monto != nil
	case FieldMes:
		return e.Mes != nil
	case FieldAnio:
		return e.Anio != 0
	case FieldDuracion:
		return e.Duracion != nil
	case FieldCantidad:
		return e.Cantidad != nil
	default:
		return false
	}
}

// ClienteName returns the extracted client name or "".
func (e ExtractedEntities) ClienteName() string { return deref(e.Cliente) }

// ProductoName returns the extracted product name or "".
func (e ExtractedEntities) ProductoName() string { return deref(e.Producto) }

// MedioName returns the extracted medium name or "".
func (e ExtractedEntities) MedioName() string { return deref(e.Medio) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ValidationResult reports whether an entity bag is complete enough to
// build an order. Confidence is the share of required fields present, 0-100.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Missing    []string `json:"missing"`
	Invalid    []string `json:"invalid,omitempty"`
	Confidence int      `json:"confidence"`
}

package model

// EntityKind identifies the kind of persisted record a name resolved to.
type EntityKind string

const (
	KindCliente  EntityKind = "cliente"
	KindMedio    EntityKind = "medio"
	KindCampana  EntityKind = "campana"
	KindContrato EntityKind = "contrato"
	KindSoporte  EntityKind = "soporte"
)

// ResolvedEntity is a persisted record matched for an extracted name.
type ResolvedEntity struct {
	Kind   EntityKind     `json:"kind"`
	ID     int64          `json:"id"`
	Nombre string         `json:"nombre"`
	Fields map[string]any `json:"fields,omitempty"`

	// MatchConfidence is advisory (0-100). It is nil for lookups that are
	// not name based (contrato, soporte).
	MatchConfidence *int `json:"match_confidence,omitempty"`

	// Created is true when the record was synthesized during resolution
	// rather than found. Only campaigns are ever created.
	Created bool `json:"created,omitempty"`
}

// Clone returns a deep copy of the entity.
func (r *ResolvedEntity) Clone() *ResolvedEntity {
	if r == nil {
		return nil
	}
	c := *r
	if r.Fields != nil {
		c.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	if r.MatchConfidence != nil {
		mc := *r.MatchConfidence
		c.MatchConfidence = &mc
	}
	return &c
}

// ResolutionOutcome collects the entities resolved for one order attempt.
// Errors is non-empty iff one of the entities is nil.
type ResolutionOutcome struct {
	Cliente  *ResolvedEntity `json:"cliente"`
	Medio    *ResolvedEntity `json:"medio"`
	Campana  *ResolvedEntity `json:"campana"`
	Contrato *ResolvedEntity `json:"contrato"`
	Soporte  *ResolvedEntity `json:"soporte"`
	Errors   []string        `json:"errors"`
}

// OK reports whether every entity was resolved.
func (o ResolutionOutcome) OK() bool {
	return len(o.Errors) == 0 &&
		o.Cliente != nil && o.Medio != nil && o.Campana != nil &&
		o.Contrato != nil && o.Soporte != nil
}

// Clone returns a deep copy of the outcome.
func (o ResolutionOutcome) Clone() ResolutionOutcome {
	c := ResolutionOutcome{
		Cliente:  o.Cliente.Clone(),
		Medio:    o.Medio.Clone(),
		Campana:  o.Campana.Clone(),
		Contrato: o.Contrato.Clone(),
		Soporte:  o.Soporte.Clone(),
	}
	if o.Errors != nil {
		c.Errors = append([]string(nil), o.Errors...)
	}
	return c
}

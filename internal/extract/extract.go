// Package extract pulls order fields out of free-text Spanish instructions
// with ordered pattern lists and validates the result.
package extract

import (
	"math"
	"strconv"
	"time"

	"github.com/brifyai/pautapro/internal/model"
)

// Extractor turns an instruction into an entity bag. It is stateless apart
// from its clock, which supplies the default year.
type Extractor struct {
	now func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the clock used for the default year.
func WithClock(now func() time.Time) Option {
	return func(x *Extractor) { x.now = now }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{now: time.Now}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Extract runs every field's pattern list against text. Fields without a
// match stay nil. A month outside 1-12 is left unset and reported in
// Invalid.
func (x *Extractor) Extract(text string) model.ExtractedEntities {
	var e model.ExtractedEntities

	if v, ok := firstMatch(clientePatterns, text); ok {
		e.Cliente = &v
	}
	if v, ok := firstMatch(productoPatterns, text); ok {
		e.Producto = &v
	}
	if v, ok := firstMatch(medioPatterns, text); ok {
		e.Medio = &v
	}

	if raw, ok := firstMatch(montoPatterns, text); ok {
		if d, ok := ParseAmount(raw); ok {
			e.Monto = &d
		} else {
			e.Invalid = append(e.Invalid, model.FieldMonto)
		}
	}

	if raw, ok := firstMatch(mesPatterns, text); ok {
		if m, ok := ParseMonth(raw); ok {
			e.Mes = &m
		} else {
			e.Invalid = append(e.Invalid, model.FieldMes)
		}
	}

	e.Anio = x.now().Year()
	if raw, ok := firstMatch(anioPatterns, text); ok {
		if y, err := strconv.Atoi(raw); err == nil {
			e.Anio = y
		}
	}

	if raw, ok := firstMatch(duracionPatterns, text); ok {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 {
			e.Duracion = &d
		}
	} else if raw, ok := firstMatch(semanasPatterns, text); ok {
		if w, err := strconv.Atoi(raw); err == nil && w > 0 {
			d := w * 7
			e.Duracion = &d
		}
	}

	if raw, ok := firstMatch(cantidadPatterns, text); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			e.Cantidad = &n
		}
	}

	return e
}

// Validate checks the required fields. It is pure: the same entities always
// yield the same result.
func Validate(e model.ExtractedEntities) model.ValidationResult {
	missing := make([]string, 0, len(model.RequiredFields))
	for _, f := range model.RequiredFields {
		if !e.Has(f) {
			missing = append(missing, f)
		}
	}
	present := len(model.RequiredFields) - len(missing)

	var invalid []string
	if len(e.Invalid) > 0 {
		invalid = append([]string(nil), e.Invalid...)
	}

	return model.ValidationResult{
		Valid:      len(missing) == 0,
		Missing:    missing,
		Invalid:    invalid,
		Confidence: Confidence(present, len(model.RequiredFields)),
	}
}

// Confidence is round(present/total*100), clamped to 0-100.
func Confidence(present, total int) int {
	if total <= 0 || present <= 0 {
		return 0
	}
	if present >= total {
		return 100
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// Suggestion returns the hint shown to the user for a missing field.
func Suggestion(field string) string {
	switch field {
	case model.FieldCliente:
		return `Indica el cliente, por ejemplo: "para Empresa XYZ" o "cliente: Empresa XYZ"`
	case model.FieldProducto:
		return `Indica el producto, por ejemplo: "con producto Lanzamiento Verano"`
	case model.FieldMedio:
		return `Indica el medio, por ejemplo: "por Televisión" o "medio: Radio"`
	case model.FieldMes:
		return `Indica un mes válido, por ejemplo: "en marzo" o "mes 3"`
	case model.FieldMonto:
		return `Indica el monto, por ejemplo: "por $1.000.000"`
	default:
		return ""
	}
}

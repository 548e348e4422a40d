package session

import (
	"fmt"
	"strings"

	"github.com/brifyai/pautapro/internal/document"
	"github.com/brifyai/pautapro/internal/extract"
	"github.com/brifyai/pautapro/internal/model"
)

// Fixed replies.
const (
	MsgCancelled        = "La orden pendiente fue cancelada. No se creó ninguna orden."
	MsgNothingToCancel  = "No hay una orden pendiente para cancelar."
	MsgNothingPending   = "No hay una orden pendiente para confirmar."
	MsgSlotOccupied     = `Ya hay una orden pendiente de confirmación. Responde "confirmar" para crearla o "cancelar" para descartarla.`
	MsgConfirmPrompt    = `¿Confirmas la creación de la orden? Responde "confirmar" o "cancelar".`
	MsgCommitFailed     = "No se pudo crear la orden por un problema con la base de datos. La orden pendiente fue descartada; puedes intentarlo nuevamente."
	MsgResolveTimedOut  = "La búsqueda de datos tardó demasiado. Intenta nuevamente en unos minutos."
	MsgExtractionHeader = "Falta información para crear la orden:"
	MsgResolutionHeader = "No se pudo preparar la orden:"
)

// MsgHelp explains what the assistant understands.
const MsgHelp = `Puedo crear órdenes de publicidad a partir de una instrucción. Por ejemplo:
  Crea una orden para Retail Corp con producto Lanzamiento por Televisión por $500.000 en marzo
Necesito al menos el cliente, el producto y el medio. Opcionalmente: monto, mes, año, duración (días o semanas) y cantidad.
Cuando la orden esté lista te pediré confirmarla o cancelarla.`

// MsgUnknown is the reply to a turn no rule matched.
const MsgUnknown = "No entendí tu mensaje.\n" + MsgHelp

func extractionMessage(v model.ValidationResult, e model.ExtractedEntities) string {
	if v.Valid {
		var b strings.Builder
		b.WriteString("Información extraída correctamente.")
		fmt.Fprintf(&b, " Cliente: %s, Producto: %s, Medio: %s", e.ClienteName(), e.ProductoName(), e.MedioName())
		if e.Monto != nil {
			fmt.Fprintf(&b, ", Monto: %s", document.FormatAmount(*e.Monto))
		}
		if len(v.Invalid) > 0 {
			fmt.Fprintf(&b, ". Se ignoraron valores no válidos: %s", strings.Join(v.Invalid, ", "))
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(MsgExtractionHeader)
	for _, f := range v.Missing {
		fmt.Fprintf(&b, "\n- %s: %s", f, extract.Suggestion(f))
	}
	for _, f := range v.Invalid {
		fmt.Fprintf(&b, "\n- %s (valor no válido): %s", f, extract.Suggestion(f))
	}
	fmt.Fprintf(&b, "\nConfianza de la extracción: %d%%", v.Confidence)
	return b.String()
}

func resolutionMessage(errs []string) string {
	var b strings.Builder
	b.WriteString(MsgResolutionHeader)
	for _, e := range errs {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}

func pendingSummary(p *model.PendingOrder) string {
	o := p.Structure.Orden
	r := p.Resolved

	var b strings.Builder
	b.WriteString("Orden lista para confirmar:")
	fmt.Fprintf(&b, "\n- Cliente: %s", r.Cliente.Nombre)
	fmt.Fprintf(&b, "\n- Medio: %s", r.Medio.Nombre)
	campana := r.Campana.Nombre
	if r.Campana.Created {
		campana += " (nueva)"
	}
	fmt.Fprintf(&b, "\n- Campaña: %s", campana)
	fmt.Fprintf(&b, "\n- Contrato: %s", r.Contrato.Nombre)
	fmt.Fprintf(&b, "\n- Soporte: %s", r.Soporte.Nombre)
	fmt.Fprintf(&b, "\n- Producto: %s", o.Producto)
	fmt.Fprintf(&b, "\n- Periodo: %s %d (%s al %s)", document.MonthName(o.Mes), o.Anio,
		o.FechaInicio.Format("02-01-2006"), o.FechaFin.Format("02-01-2006"))
	fmt.Fprintf(&b, "\n- Presupuesto: %s", document.FormatAmountPtr(o.Presupuesto))
	b.WriteString("\n")
	b.WriteString(MsgConfirmPrompt)
	return b.String()
}

func completedMessage(id int64, doc *document.Document) string {
	return fmt.Sprintf("Orden N° %d creada exitosamente. Documento generado: %s", id, doc.Name)
}

func partialCommitMessage(id int64) string {
	return fmt.Sprintf("La orden N° %d fue creada, pero no se pudo generar su documento. La orden quedó registrada; solicita el documento nuevamente más tarde.", id)
}

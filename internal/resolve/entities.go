package resolve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/order"
)

// User-facing resolution messages.
const (
	MsgClienteMissing  = "No se indicó el cliente de la orden"
	MsgContratoMissing = "No se encontró un contrato activo para este cliente y medio"
	MsgBackendFault    = "Ocurrió un problema al consultar la base de datos. Intenta nuevamente en unos minutos."
)

func msgClienteNotFound(name string) string {
	return fmt.Sprintf("No se encontró el cliente %q", name)
}

func msgMedioNotFound(name string) string {
	if name == "" {
		return "No se indicó el medio de la orden"
	}
	return fmt.Sprintf("No se encontró el medio %q", name)
}

func msgCampanaFailed(name string) string {
	if name == "" {
		return "No se pudo determinar la campaña de la orden"
	}
	return fmt.Sprintf("No se pudo encontrar ni crear la campaña %q", name)
}

func msgSoporteNotFound(medio string) string {
	return fmt.Sprintf("No se encontró un soporte para el medio %q", medio)
}

// ResolveOrderEntities resolves cliente, medio, campaña, contrato and soporte
// in that order and stops at the first entity that cannot be found, leaving
// the later ones nil. A not-found entity is reported in the outcome's Errors
// with a nil error. A store failure returns an error matching
// ErrBackendFault and an outcome whose Errors hold one generic message.
func (r *Resolver) ResolveOrderEntities(ctx context.Context, e model.ExtractedEntities, s model.OrderStructure) (model.ResolutionOutcome, error) {
	var out model.ResolutionOutcome

	fault := func(stage string, err error) (model.ResolutionOutcome, error) {
		zap.L().Error("resolve: backend fault",
			zap.String("stage", stage),
			zap.String("cliente", e.ClienteName()),
			zap.String("medio", e.MedioName()),
			zap.Error(err),
		)
		out.Errors = []string{MsgBackendFault}
		return out, backendError(stage, err)
	}
	notFound := func(msg string) (model.ResolutionOutcome, error) {
		out.Errors = append(out.Errors, msg)
		return out, nil
	}

	clienteName := e.ClienteName()
	if clienteName == "" {
		return notFound(MsgClienteMissing)
	}
	cliente, err := r.ResolveCliente(ctx, clienteName)
	if err != nil {
		return fault("cliente", err)
	}
	if cliente == nil {
		return notFound(msgClienteNotFound(clienteName))
	}
	out.Cliente = cliente

	medio, err := r.ResolveMedio(ctx, e.MedioName())
	if err != nil {
		return fault("medio", err)
	}
	if medio == nil {
		return notFound(msgMedioNotFound(e.MedioName()))
	}
	out.Medio = medio

	draft := s.Campana
	if draft.Nombre == "" {
		draft.Nombre = e.ProductoName()
	}
	campana, err := r.ResolveOrCreateCampana(ctx, draft, cliente.ID)
	if err != nil {
		return fault("campana", err)
	}
	if campana == nil {
		return notFound(msgCampanaFailed(draft.Nombre))
	}
	out.Campana = campana

	contrato, err := r.ResolveContrato(ctx, cliente.ID, medio.ID)
	if err != nil {
		return fault("contrato", err)
	}
	if contrato == nil {
		return notFound(MsgContratoMissing)
	}
	out.Contrato = contrato

	soporte, err := r.ResolveSoporte(ctx, medio.ID)
	if err != nil {
		return fault("soporte", err)
	}
	if soporte == nil {
		return notFound(msgSoporteNotFound(medio.Nombre))
	}
	out.Soporte = soporte

	return out, nil
}

// PrepareOrderStructure back-fills the structure's foreign keys from a
// resolution outcome without modifying either argument.
func PrepareOrderStructure(s model.OrderStructure, resolved model.ResolutionOutcome) model.OrderStructure {
	return order.Prepare(s, resolved)
}

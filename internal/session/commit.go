package session

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/document"
	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/monitoring"
	"github.com/brifyai/pautapro/internal/store"
)

// CommitStatus is the outcome of ExecuteOrderCreation.
type CommitStatus string

const (
	// CommitCompleted: order persisted and document generated.
	CommitCompleted CommitStatus = "completed"
	// CommitFailed: nothing was persisted.
	CommitFailed CommitStatus = "failed"
	// CommitPartial: order persisted, document missing.
	CommitPartial CommitStatus = "partial_commit"
	// CommitNothingPending: there was no pending order.
	CommitNothingPending CommitStatus = "nothing_pending"
)

// CommitResult reports what ExecuteOrderCreation did.
type CommitResult struct {
	Status   CommitStatus       `json:"status"`
	OrdenID  *int64             `json:"orden_id,omitempty"`
	Document *document.Document `json:"document,omitempty"`
	Message  string             `json:"message"`
	Err      error              `json:"-"`
}

// ExecuteOrderCreation commits the pending order: it persists the order and
// its line items, then generates the document, then clears the slot. The
// slot is cleared whatever the outcome. A document failure after a
// successful write is reported as CommitPartial and the order stays.
func (o *Orchestrator) ExecuteOrderCreation(ctx context.Context, s *Session) CommitResult {
	s.turn.Lock()
	defer s.turn.Unlock()
	s.touch(o.now())
	return o.execute(ctx, s)
}

func (o *Orchestrator) execute(ctx context.Context, s *Session) CommitResult {
	p := s.peekPending()
	if p == nil {
		return CommitResult{Status: CommitNothingPending, Message: MsgNothingPending}
	}
	s.setState(StateExecuting)
	log := zap.L().With(zap.String("session_id", s.ID))

	// 1. persist
	cctx, cancel := withTimeout(ctx, o.cfg.CommitTimeout)
	orden, alts, err := o.persist(cctx, p.Structure)
	cancel()
	if err != nil {
		s.clearPending(StateFailed)
		o.metrics.RecordOrder(string(CommitFailed))
		o.metrics.RecordBackendFault("persist")
		o.notify(ctx, monitoring.BackendFault("persist", s.ID, err))
		log.Error("session: order persistence failed", zap.Error(err))
		return CommitResult{Status: CommitFailed, Message: MsgCommitFailed, Err: err}
	}
	id := *orden.ID
	log = log.With(zap.Int64("orden_id", id))

	// 2. document
	dctx, cancel := withTimeout(ctx, o.cfg.DocumentTimeout)
	doc, err := o.docs.GenerateOrderDocument(dctx, orden, alts, *p.Resolved.Cliente, p.Structure.Campana.Nombre)
	cancel()

	// 3. clear slot, 4. report
	if err != nil {
		s.clearPending(StatePartialCommit)
		o.metrics.RecordOrder(string(CommitPartial))
		o.notify(ctx, monitoring.PartialCommit(id, s.ID, err))
		log.Error("session: order persisted without document", zap.Error(err))
		return CommitResult{Status: CommitPartial, OrdenID: model.ID(id), Message: partialCommitMessage(id), Err: err}
	}

	s.clearPending(StateCompleted)
	o.metrics.RecordOrder(string(CommitCompleted))
	log.Info("session: order created", zap.String("document", doc.Path))
	return CommitResult{Status: CommitCompleted, OrdenID: model.ID(id), Document: doc, Message: completedMessage(id, doc)}
}

// persist writes the order and its line items, atomically when the store
// supports transactions. The returned copies carry the generated IDs.
func (o *Orchestrator) persist(ctx context.Context, st model.OrderStructure) (model.Orden, []model.Alternativa, error) {
	var (
		orden model.Orden
		alts  []model.Alternativa
	)
	write := func(ctx context.Context, rs store.RecordStore) error {
		s := st.Clone()
		orden, alts = s.Orden, s.Alternativas
		orden.Estado = model.OrderStatusCreada

		rec, err := rs.Insert(ctx, store.TableOrdenes, ordenRecord(orden))
		if err != nil {
			return eris.Wrap(err, "session: insert orden")
		}
		orden.ID = model.ID(rec.ID())
		if t, ok := rec.Time("created_at"); ok {
			orden.CreatedAt = t
		}

		for i := range alts {
			alts[i].IDOrden = model.ID(*orden.ID)
			out, err := rs.Insert(ctx, store.TableAlternativas, alternativaRecord(alts[i]))
			if err != nil {
				return eris.Wrapf(err, "session: insert alternativa %d", i)
			}
			alts[i].ID = model.ID(out.ID())
		}
		return nil
	}

	var err error
	if tx, ok := o.store.(store.Transactor); ok {
		err = tx.WithTx(ctx, write)
	} else {
		err = write(ctx, o.store)
	}
	if err != nil {
		return model.Orden{}, nil, err
	}
	return orden, alts, nil
}

func ordenRecord(o model.Orden) store.Record {
	return store.Record{
		"id_cliente":   o.IDCliente,
		"id_campana":   o.IDCampana,
		"id_contrato":  o.IDContrato,
		"id_soporte":   o.IDSoporte,
		"id_medio":     o.IDMedio,
		"producto":     o.Producto,
		"presupuesto":  o.Presupuesto,
		"mes":          o.Mes,
		"anio":         o.Anio,
		"fecha_inicio": o.FechaInicio,
		"fecha_fin":    o.FechaFin,
		"estado":       string(o.Estado),
		"descripcion":  o.Descripcion,
	}
}

func alternativaRecord(a model.Alternativa) store.Record {
	return store.Record{
		"id_orden":    a.IDOrden,
		"id_soporte":  a.IDSoporte,
		"id_medio":    a.IDMedio,
		"id_contrato": a.IDContrato,
		"id_campana":  a.IDCampana,
		"descripcion": a.Descripcion,
		"cantidad":    a.Cantidad,
		"valor_total": a.ValorTotal,
		"calendario":  a.Calendar,
	}
}

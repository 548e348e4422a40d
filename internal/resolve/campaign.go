package resolve

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/fuzzy"
	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/store"
)

const campaignStatusActive = "activa"

// ResolveOrCreateCampana returns the client's campaign named like
// draft.Nombre (ignoring case and accents), creating it when none exists.
//
// Repeated or concurrent calls for the same client and name yield the same
// record: identical in-flight calls are collapsed, and a lost insert race
// (store.ErrDuplicate from the unique index) falls back to re-reading the
// winner. A nil result with nil error means no name was given.
func (r *Resolver) ResolveOrCreateCampana(ctx context.Context, draft model.CampanaDraft, clienteID int64) (*model.ResolvedEntity, error) {
	name := strings.TrimSpace(draft.Nombre)
	if name == "" {
		return nil, nil
	}

	key := strconv.FormatInt(clienteID, 10) + "|" + fuzzy.Fold(name)
	v, err, shared := r.campaigns.Do(key, func() (any, error) {
		return r.findOrCreateCampana(ctx, draft, name, clienteID)
	})
	if err != nil {
		return nil, err
	}
	e := v.(*model.ResolvedEntity)
	if shared {
		return e.Clone(), nil
	}
	return e, nil
}

func (r *Resolver) findOrCreateCampana(ctx context.Context, draft model.CampanaDraft, name string, clienteID int64) (*model.ResolvedEntity, error) {
	existing, err := r.findCampana(ctx, name, clienteID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := r.now().UTC()
	rec, err := r.insert(ctx, store.TableCampanas, store.Record{
		"nombre":       name,
		"id_cliente":   clienteID,
		"presupuesto":  draft.Presupuesto,
		"fecha_inicio": draft.FechaInicio,
		"fecha_fin":    draft.FechaFin,
		"estado":       campaignStatusActive,
		"created_at":   now,
		"updated_at":   now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		zap.L().Debug("resolve: campaign created concurrently, re-reading",
			zap.String("nombre", name),
			zap.Int64("id_cliente", clienteID),
		)
		existing, err = r.findCampana(ctx, name, clienteID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, eris.Errorf("resolve: campaign %q reported duplicate but not found", name)
		}
		return existing, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "resolve: create campaign")
	}

	e := toEntity(model.KindCampana, rec, name)
	e.Created = true
	zap.L().Info("resolve: campaign created",
		zap.Int64("id", e.ID),
		zap.String("nombre", name),
		zap.Int64("id_cliente", clienteID),
	)
	return e, nil
}

func (r *Resolver) findCampana(ctx context.Context, name string, clienteID int64) (*model.ResolvedEntity, error) {
	recs, err := r.find(ctx, store.TableCampanas, []store.Filter{
		store.IEq("nombre", name),
		store.Eq("id_cliente", clienteID),
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toEntity(model.KindCampana, recs[0], name), nil
}

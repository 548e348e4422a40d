// Package resolve maps extracted names to persisted records: clients and
// media by fuzzy name search, campaigns by find-or-create, and contracts and
// supports by foreign key.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/brifyai/pautapro/internal/fuzzy"
	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/resilience"
	"github.com/brifyai/pautapro/internal/store"
)

// ErrBackendFault is matched (errors.Is) by every error caused by the
// record store rather than by missing data.
var ErrBackendFault = errors.New("resolve: backend fault")

// BackendError carries the store error behind a failed resolution step.
type BackendError struct {
	Stage string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("resolve: %s: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackendFault) match.
func (e *BackendError) Is(target error) bool { return target == ErrBackendFault }

// Config tunes the resolver.
type Config struct {
	// SearchLimit caps name-search candidates. Default: 5.
	SearchLimit int

	// Retry applies to reads only.
	Retry resilience.RetryConfig

	// Breaker, when set, guards every store call.
	Breaker *resilience.Breaker
}

// DefaultConfig searches five candidates and never retries.
func DefaultConfig() Config {
	return Config{SearchLimit: 5, Retry: resilience.NoRetry()}
}

// Resolver resolves order entities against a record store.
type Resolver struct {
	store     store.RecordStore
	cfg       Config
	now       func() time.Time
	campaigns singleflight.Group
}

// New creates a Resolver.
func New(st store.RecordStore, cfg Config) *Resolver {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	return &Resolver{store: st, cfg: cfg, now: time.Now}
}

// ResolveCliente returns the first client whose name contains name, or nil.
func (r *Resolver) ResolveCliente(ctx context.Context, name string) (*model.ResolvedEntity, error) {
	return r.searchByName(ctx, store.TableClientes, model.KindCliente, name)
}

// ResolveMedio returns the first medium whose name contains name, or nil.
func (r *Resolver) ResolveMedio(ctx context.Context, name string) (*model.ResolvedEntity, error) {
	return r.searchByName(ctx, store.TableMedios, model.KindMedio, name)
}

// ResolveContrato returns an active contract for the client and medium, or
// nil.
func (r *Resolver) ResolveContrato(ctx context.Context, clienteID, medioID int64) (*model.ResolvedEntity, error) {
	recs, err := r.find(ctx, store.TableContratos, []store.Filter{
		store.Eq("id_cliente", clienteID),
		store.Eq("id_medio", medioID),
		store.Eq("estado", true),
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toEntity(model.KindContrato, recs[0], ""), nil
}

// ResolveSoporte returns any support belonging to the medium, or nil.
func (r *Resolver) ResolveSoporte(ctx context.Context, medioID int64) (*model.ResolvedEntity, error) {
	recs, err := r.find(ctx, store.TableSoportes, []store.Filter{
		store.Eq("id_medio", medioID),
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toEntity(model.KindSoporte, recs[0], ""), nil
}

func (r *Resolver) searchByName(ctx context.Context, table string, kind model.EntityKind, name string) (*model.ResolvedEntity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	recs, err := r.find(ctx, table, []store.Filter{store.Contains("nombre", name)}, r.cfg.SearchLimit)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	e := toEntity(kind, recs[0], name)
	zap.L().Debug("resolve: name matched",
		zap.String("kind", string(kind)),
		zap.String("query", name),
		zap.String("match", e.Nombre),
		zap.Int("candidates", len(recs)),
		zap.Int("confidence", *e.MatchConfidence),
	)
	return e, nil
}

// find is the only read path; it is retried per cfg.Retry.
func (r *Resolver) find(ctx context.Context, table string, filters []store.Filter, limit int) ([]store.Record, error) {
	retry := r.cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(table)
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]store.Record, error) {
		return resilience.Call(ctx, r.cfg.Breaker, func(ctx context.Context) ([]store.Record, error) {
			return r.store.Find(ctx, table, filters, limit)
		})
	})
}

func (r *Resolver) insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	return resilience.Call(ctx, r.cfg.Breaker, func(ctx context.Context) (store.Record, error) {
		return r.store.Insert(ctx, table, rec)
	})
}

// toEntity converts a record; query, when set, is scored against the
// record's name.
func toEntity(kind model.EntityKind, rec store.Record, query string) *model.ResolvedEntity {
	e := &model.ResolvedEntity{
		Kind:   kind,
		ID:     rec.ID(),
		Nombre: rec.String("nombre"),
		Fields: make(map[string]any, len(rec)),
	}
	for k, v := range rec {
		if k == "id" || k == "nombre" || k == "nombre_normalizado" {
			continue
		}
		e.Fields[k] = v
	}
	if query != "" {
		c := fuzzy.MatchConfidence(query, e.Nombre)
		e.MatchConfidence = &c
	}
	return e
}

func backendError(stage string, err error) error {
	return &BackendError{Stage: stage, Err: err}
}

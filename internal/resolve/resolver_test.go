package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/resilience"
	"github.com/brifyai/pautapro/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	st         *store.SQLiteStore
	clienteID  int64
	tvID       int64
	radioID    int64
	contratoID int64
	soporteID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "resolve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	ins := func(table string, rec store.Record) int64 {
		out, err := st.Insert(ctx, table, rec)
		require.NoError(t, err)
		return out.ID()
	}

	f := &fixture{st: st}
	f.clienteID = ins(store.TableClientes, store.Record{"nombre": "Retail Corp", "rut": "76.111.111-1"})
	ins(store.TableClientes, store.Record{"nombre": "Banco Austral"})
	f.tvID = ins(store.TableMedios, store.Record{"nombre": "Televisión"})
	f.radioID = ins(store.TableMedios, store.Record{"nombre": "Radio"})
	ins(store.TableContratos, store.Record{"nombre": "Contrato TV 2025", "id_cliente": f.clienteID, "id_medio": f.tvID, "estado": false})
	f.contratoID = ins(store.TableContratos, store.Record{"nombre": "Contrato TV 2026", "id_cliente": f.clienteID, "id_medio": f.tvID, "estado": true})
	f.soporteID = ins(store.TableSoportes, store.Record{"nombre": "Canal 13 Prime", "id_medio": f.tvID})
	ins(store.TableSoportes, store.Record{"nombre": "Radio Pudahuel", "id_medio": f.radioID})
	return f
}

// spyStore records Find calls and can inject faults per table.
type spyStore struct {
	store.RecordStore

	mu        sync.Mutex
	finds     []string
	fail      map[string]error
	failTimes map[string]int
	hide      map[string]int
}

func newSpy(inner store.RecordStore) *spyStore {
	return &spyStore{
		RecordStore: inner,
		fail:        map[string]error{},
		failTimes:   map[string]int{},
		hide:        map[string]int{},
	}
}

func (s *spyStore) Find(ctx context.Context, table string, filters []store.Filter, limit int) ([]store.Record, error) {
	s.mu.Lock()
	s.finds = append(s.finds, table)
	if err, ok := s.fail[table]; ok && s.failTimes[table] != 0 {
		s.failTimes[table]--
		s.mu.Unlock()
		return nil, err
	}
	if s.hide[table] > 0 {
		s.hide[table]--
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()
	return s.RecordStore.Find(ctx, table, filters, limit)
}

func (s *spyStore) tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.finds...)
}

func entities(cliente, producto, medio string) model.ExtractedEntities {
	e := model.ExtractedEntities{Anio: 2026}
	if cliente != "" {
		e.Cliente = &cliente
	}
	if producto != "" {
		e.Producto = &producto
	}
	if medio != "" {
		e.Medio = &medio
	}
	return e
}

func structure(producto string) model.OrderStructure {
	budget := decimal.NewFromInt(500000)
	return model.OrderStructure{
		Campana: model.CampanaDraft{
			Nombre:      producto,
			Presupuesto: &budget,
			FechaInicio: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			FechaFin:    time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestResolveOrderEntities_AllResolved(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("Retail Corp", "Lanzamiento", "Televisión"), structure("Lanzamiento"))
	require.NoError(t, err)
	assert.Empty(t, out.Errors)
	assert.True(t, out.OK())

	assert.Equal(t, f.clienteID, out.Cliente.ID)
	assert.Equal(t, 100, *out.Cliente.MatchConfidence)
	assert.Equal(t, "76.111.111-1", out.Cliente.Fields["rut"])
	assert.Equal(t, f.tvID, out.Medio.ID)
	assert.Equal(t, f.contratoID, out.Contrato.ID)
	assert.Nil(t, out.Contrato.MatchConfidence)
	assert.Equal(t, f.soporteID, out.Soporte.ID)

	require.NotNil(t, out.Campana)
	assert.True(t, out.Campana.Created)
	assert.Equal(t, "Lanzamiento", out.Campana.Nombre)

	recs, err := f.st.Find(context.Background(), store.TableCampanas, nil, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, f.clienteID, mustInt64(t, recs[0], "id_cliente"))
	d, ok := recs[0].Decimal("presupuesto")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(500000).Equal(d))
}

func TestResolveOrderEntities_ReusesCampaign(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())
	ctx := context.Background()
	e := entities("Retail Corp", "Lanzamiento", "Televisión")

	first, err := r.ResolveOrderEntities(ctx, e, structure("Lanzamiento"))
	require.NoError(t, err)
	second, err := r.ResolveOrderEntities(ctx, e, structure("LANZAMIENTO"))
	require.NoError(t, err)

	assert.Equal(t, first.Campana.ID, second.Campana.ID)
	assert.False(t, second.Campana.Created)

	recs, err := f.st.Find(ctx, store.TableCampanas, nil, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResolveOrderEntities_NoActiveContract(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("Retail Corp", "Verano", "Radio"), structure("Verano"))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgContratoMissing}, out.Errors)
	assert.NotNil(t, out.Cliente)
	assert.NotNil(t, out.Medio)
	assert.NotNil(t, out.Campana)
	assert.Nil(t, out.Contrato)
	assert.Nil(t, out.Soporte)
	assert.False(t, out.OK())
}

func TestResolveOrderEntities_ShortCircuitsOnCliente(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	r := New(spy, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("Desconocido SpA", "Verano", "Televisión"), structure("Verano"))
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Desconocido SpA")
	assert.Nil(t, out.Cliente)
	assert.Nil(t, out.Medio)
	assert.Nil(t, out.Campana)
	assert.Equal(t, []string{store.TableClientes}, spy.tables())
}

func TestResolveOrderEntities_ShortCircuitsOnMedio(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	r := New(spy, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("Retail", "Verano", "Cine"), structure("Verano"))
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.NotNil(t, out.Cliente)
	assert.Equal(t, 55, *out.Cliente.MatchConfidence)
	assert.Nil(t, out.Medio)
	assert.Nil(t, out.Campana)
	assert.Equal(t, []string{store.TableClientes, store.TableMedios}, spy.tables())

	recs, err := f.st.Find(context.Background(), store.TableCampanas, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestResolveOrderEntities_MissingCliente(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	r := New(spy, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("", "Verano", "Radio"), structure("Verano"))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgClienteMissing}, out.Errors)
	assert.Empty(t, spy.tables())
}

func TestResolveOrderEntities_BackendFault(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	f := newFixture(t)
	spy := newSpy(f.st)
	spy.fail[store.TableMedios] = errors.New("sqlite: find medios: disk I/O error")
	spy.failTimes[store.TableMedios] = -1
	r := New(spy, DefaultConfig())

	out, err := r.ResolveOrderEntities(context.Background(), entities("Retail Corp", "Verano", "Televisión"), structure("Verano"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendFault)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "medio", be.Stage)
	assert.Equal(t, []string{MsgBackendFault}, out.Errors)
	assert.NotNil(t, out.Cliente)
	assert.Nil(t, out.Medio)

	entries := logs.FilterMessage("resolve: backend fault").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "medio", entries[0].ContextMap()["stage"])
	assert.Contains(t, entries[0].ContextMap()["error"], "disk I/O error")
}

func TestResolveOrderEntities_NoRetryByDefault(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	spy.fail[store.TableClientes] = resilience.Transient(errors.New("database is locked"))
	spy.failTimes[store.TableClientes] = 1
	r := New(spy, DefaultConfig())

	_, err := r.ResolveOrderEntities(context.Background(), entities("Retail Corp", "Verano", "Televisión"), structure("Verano"))
	assert.ErrorIs(t, err, ErrBackendFault)
}

func TestResolveOrderEntities_RetriesTransientReads(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	spy.fail[store.TableClientes] = resilience.Transient(errors.New("database is locked"))
	spy.failTimes[store.TableClientes] = 1

	cfg := DefaultConfig()
	cfg.Retry = resilience.RetryConfig{Attempts: 2, Backoff: time.Millisecond}
	r := New(spy, cfg)

	out, err := r.ResolveOrderEntities(context.Background(), entities("Retail Corp", "Verano", "Televisión"), structure("Verano"))
	require.NoError(t, err)
	assert.True(t, out.OK())
}

func TestResolveOrCreateCampana_Concurrent(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "Navidad"}, f.clienteID)
			if assert.NoError(t, err) && assert.NotNil(t, e) {
				ids[i] = e.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	recs, err := f.st.Find(ctx, store.TableCampanas, []store.Filter{store.IEq("nombre", "navidad")}, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResolveOrCreateCampana_DuplicateFallsBackToLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing, err := f.st.Insert(ctx, store.TableCampanas, store.Record{"nombre": "Navidad", "id_cliente": f.clienteID})
	require.NoError(t, err)

	spy := newSpy(f.st)
	// The first lookup misses, as if another process inserted just after it.
	spy.hide[store.TableCampanas] = 1
	r := New(spy, DefaultConfig())

	e, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "navidad"}, f.clienteID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, existing.ID(), e.ID)
	assert.False(t, e.Created)
}

func TestResolveByName_NonASCIICase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medio, err := f.st.Insert(ctx, store.TableMedios, store.Record{"nombre": "TELEVISIÓN ABIERTA"})
	require.NoError(t, err)
	cliente, err := f.st.Insert(ctx, store.TableClientes, store.Record{"nombre": "Ñandú Ltda"})
	require.NoError(t, err)
	r := New(f.st, DefaultConfig())

	m, err := r.ResolveMedio(ctx, "televisión abierta")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, medio.ID(), m.ID)
	assert.Equal(t, 100, *m.MatchConfidence)
	assert.NotContains(t, m.Fields, "nombre_normalizado")

	c, err := r.ResolveCliente(ctx, "ñandú")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, cliente.ID(), c.ID)

	c, err = r.ResolveCliente(ctx, "NANDU")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, cliente.ID(), c.ID)
}

func TestResolveOrCreateCampana_NonASCIICase(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())
	ctx := context.Background()

	a, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "Campaña Otoño"}, f.clienteID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Created)

	b, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "CAMPAÑA OTOÑO"}, f.clienteID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, b.ID)
	assert.False(t, b.Created)

	recs, err := f.st.Find(ctx, store.TableCampanas, []store.Filter{store.Eq("id_cliente", f.clienteID)}, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResolveOrCreateCampana_ScopedToCliente(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())
	ctx := context.Background()

	other, err := f.st.Find(ctx, store.TableClientes, []store.Filter{store.Eq("nombre", "Banco Austral")}, 1)
	require.NoError(t, err)
	require.Len(t, other, 1)

	a, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "Verano"}, f.clienteID)
	require.NoError(t, err)
	b, err := r.ResolveOrCreateCampana(ctx, model.CampanaDraft{Nombre: "Verano"}, other[0].ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, b.Created)
}

func TestResolveOrCreateCampana_EmptyName(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())
	e, err := r.ResolveOrCreateCampana(context.Background(), model.CampanaDraft{Nombre: "  "}, f.clienteID)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestResolveContrato_IgnoresInactive(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())

	c, err := r.ResolveContrato(context.Background(), f.clienteID, f.tvID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, f.contratoID, c.ID)
	assert.Equal(t, "Contrato TV 2026", c.Nombre)

	c, err = r.ResolveContrato(context.Background(), f.clienteID, f.radioID)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestResolveSoporte(t *testing.T) {
	f := newFixture(t)
	r := New(f.st, DefaultConfig())

	s, err := r.ResolveSoporte(context.Background(), f.tvID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, f.soporteID, s.ID)

	s, err = r.ResolveSoporte(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestBreakerFailsFast(t *testing.T) {
	f := newFixture(t)
	spy := newSpy(f.st)
	spy.fail[store.TableClientes] = errors.New("connection refused")
	spy.failTimes[store.TableClientes] = -1

	cfg := DefaultConfig()
	cfg.Breaker = resilience.NewBreaker(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	r := New(spy, cfg)
	ctx := context.Background()

	for range 2 {
		_, err := r.ResolveCliente(ctx, "Retail")
		require.Error(t, err)
	}
	_, err := r.ResolveCliente(ctx, "Retail")
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Len(t, spy.tables(), 2)
}

func TestPrepareOrderStructure(t *testing.T) {
	s := structure("Verano")
	s.Alternativas = []model.Alternativa{{Descripcion: "Verano"}}
	out := PrepareOrderStructure(s, model.ResolutionOutcome{
		Cliente: &model.ResolvedEntity{ID: 1},
		Soporte: &model.ResolvedEntity{ID: 5},
	})
	assert.Equal(t, int64(1), *out.Orden.IDCliente)
	assert.Equal(t, int64(5), *out.Alternativas[0].IDSoporte)
	assert.Nil(t, s.Orden.IDCliente)
}

func mustInt64(t *testing.T, rec store.Record, key string) int64 {
	t.Helper()
	v, ok := rec.Int64(key)
	require.True(t, ok, key)
	return v
}

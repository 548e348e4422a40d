package catalog

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/store"
)

// Result counts imported and already-present rows per table.
type Result struct {
	Created  map[string]int `json:"created"`
	Existing map[string]int `json:"existing"`
}

func (r *Result) add(table string, created bool) {
	if created {
		r.Created[table]++
	} else {
		r.Existing[table]++
	}
}

// Import writes c into st. Rows are matched by case-insensitive nombre
// (scoped by medio or cliente for dependent tables), so importing the same
// catalog twice creates nothing the second time. When st supports
// transactions the whole import is atomic.
func Import(ctx context.Context, st store.RecordStore, c *Catalog) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	run := func(ctx context.Context, rs store.RecordStore) error {
		res = Result{Created: map[string]int{}, Existing: map[string]int{}}
		return importAll(ctx, rs, c, &res)
	}

	if tx, ok := st.(store.Transactor); ok {
		if err := tx.WithTx(ctx, run); err != nil {
			return Result{}, err
		}
	} else if err := run(ctx, st); err != nil {
		return Result{}, err
	}

	zap.L().Info("catalog: import complete",
		zap.Any("created", res.Created),
		zap.Any("existing", res.Existing),
	)
	return res, nil
}

func importAll(ctx context.Context, rs store.RecordStore, c *Catalog, res *Result) error {
	clientes := map[string]int64{}
	for _, cl := range c.Clientes {
		id, created, err := findOrInsert(ctx, rs, store.TableClientes,
			[]store.Filter{store.IEq("nombre", cl.Nombre)},
			store.Record{"nombre": cl.Nombre, "razon_social": cl.RazonSocial, "rut": cl.RUT})
		if err != nil {
			return err
		}
		clientes[key(cl.Nombre)] = id
		res.add(store.TableClientes, created)
	}

	medios := map[string]int64{}
	for _, m := range c.Medios {
		id, created, err := findOrInsert(ctx, rs, store.TableMedios,
			[]store.Filter{store.IEq("nombre", m.Nombre)},
			store.Record{"nombre": m.Nombre, "codigo": m.Codigo})
		if err != nil {
			return err
		}
		medios[key(m.Nombre)] = id
		res.add(store.TableMedios, created)
	}

	for _, s := range c.Soportes {
		medioID := medios[key(s.Medio)]
		_, created, err := findOrInsert(ctx, rs, store.TableSoportes,
			[]store.Filter{store.IEq("nombre", s.Nombre), store.Eq("id_medio", medioID)},
			store.Record{"nombre": s.Nombre, "id_medio": medioID})
		if err != nil {
			return err
		}
		res.add(store.TableSoportes, created)
	}

	for _, ct := range c.Contratos {
		clienteID := clientes[key(ct.Cliente)]
		medioID := medios[key(ct.Medio)]
		rec := store.Record{
			"nombre":     ct.Nombre,
			"id_cliente": clienteID,
			"id_medio":   medioID,
			"estado":     ct.Activo,
		}
		if ct.FechaInicio != "" {
			rec["fecha_inicio"] = ct.FechaInicio
		}
		if ct.FechaFin != "" {
			rec["fecha_fin"] = ct.FechaFin
		}
		_, created, err := findOrInsert(ctx, rs, store.TableContratos,
			[]store.Filter{store.IEq("nombre", ct.Nombre), store.Eq("id_cliente", clienteID), store.Eq("id_medio", medioID)},
			rec)
		if err != nil {
			return err
		}
		res.add(store.TableContratos, created)
	}
	return nil
}

func findOrInsert(ctx context.Context, rs store.RecordStore, table string, filters []store.Filter, rec store.Record) (int64, bool, error) {
	rows, err := rs.Find(ctx, table, filters, 1)
	if err != nil {
		return 0, false, eris.Wrapf(err, "catalog: find %s", table)
	}
	if len(rows) > 0 {
		return rows[0].ID(), false, nil
	}

	out, err := rs.Insert(ctx, table, rec)
	if errors.Is(err, store.ErrDuplicate) {
		rows, ferr := rs.Find(ctx, table, filters, 1)
		if ferr == nil && len(rows) > 0 {
			return rows[0].ID(), false, nil
		}
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "catalog: insert %s", table)
	}
	return out.ID(), true, nil
}

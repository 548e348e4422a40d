// Package document renders persisted orders as spreadsheet documents.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/brifyai/pautapro/internal/model"
)

// ErrGenerate is matched by every document generation failure.
var ErrGenerate = errors.New("document: generation failed")

// Document describes a generated file.
type Document struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Generator produces the document for a persisted order.
type Generator interface {
	GenerateOrderDocument(ctx context.Context, orden model.Orden, alternativas []model.Alternativa, cliente model.ResolvedEntity, campaignName string) (*Document, error)
}

// XLSXGenerator writes one workbook per order into a directory.
type XLSXGenerator struct {
	dir string
	now func() time.Time
}

// NewXLSXGenerator creates a generator writing into dir.
func NewXLSXGenerator(dir string) *XLSXGenerator {
	return &XLSXGenerator{dir: dir, now: time.Now}
}

// GenerateOrderDocument writes orden_<id>.xlsx with the order header, line
// items and a day-by-day placement calendar. The file appears atomically.
func (g *XLSXGenerator) GenerateOrderDocument(ctx context.Context, orden model.Orden, alternativas []model.Alternativa, cliente model.ResolvedEntity, campaignName string) (*Document, error) {
	if orden.ID == nil {
		return nil, generateErr(eris.New("document: order has no id"))
	}
	if err := ctx.Err(); err != nil {
		return nil, generateErr(eris.Wrap(err, "document: before render"))
	}

	f, err := renderOrder(orden, alternativas, cliente, campaignName)
	if err != nil {
		return nil, generateErr(err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, generateErr(eris.Wrap(err, "document: create output dir"))
	}
	name := fmt.Sprintf("orden_%d.xlsx", *orden.ID)
	path := filepath.Join(g.dir, name)

	tmp, err := os.CreateTemp(g.dir, ".orden-*.xlsx")
	if err != nil {
		return nil, generateErr(eris.Wrap(err, "document: create temp file"))
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := f.Write(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return nil, generateErr(eris.Wrap(err, "document: write workbook"))
	}
	if err := tmp.Close(); err != nil {
		return nil, generateErr(eris.Wrap(err, "document: close workbook"))
	}
	if err := ctx.Err(); err != nil {
		return nil, generateErr(eris.Wrap(err, "document: before publish"))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, generateErr(eris.Wrap(err, "document: publish workbook"))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, generateErr(eris.Wrap(err, "document: stat workbook"))
	}

	zap.L().Info("document: order document generated",
		zap.Int64("orden_id", *orden.ID),
		zap.String("path", path),
		zap.Int64("bytes", info.Size()),
	)
	return &Document{Path: path, Name: name, Size: info.Size(), CreatedAt: g.now().UTC()}, nil
}

func renderOrder(orden model.Orden, alternativas []model.Alternativa, cliente model.ResolvedEntity, campaignName string) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Orden")
	if err != nil {
		return nil, eris.Wrap(err, "document: add sheet")
	}

	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true

	addPair := func(label, value string) {
		row := sheet.AddRow()
		c := row.AddCell()
		c.SetString(label)
		c.SetStyle(bold)
		row.AddCell().SetString(value)
	}

	title := sheet.AddRow().AddCell()
	title.SetString("ORDEN DE PUBLICIDAD N° " + strconv.FormatInt(*orden.ID, 10))
	title.SetStyle(bold)
	sheet.AddRow()

	addPair("Cliente", cliente.Nombre)
	if rut, ok := cliente.Fields["rut"].(string); ok && rut != "" {
		addPair("RUT", rut)
	}
	addPair("Campaña", campaignName)
	addPair("Producto", orden.Producto)
	addPair("Periodo", fmt.Sprintf("%s %d", MonthName(orden.Mes), orden.Anio))
	addPair("Inicio", orden.FechaInicio.Format("02-01-2006"))
	addPair("Término", orden.FechaFin.Format("02-01-2006"))
	addPair("Presupuesto", FormatAmountPtr(orden.Presupuesto))
	addPair("Estado", string(orden.Estado))
	sheet.AddRow()

	days := 0
	for _, a := range alternativas {
		days = max(days, len(a.Calendar))
	}

	header := sheet.AddRow()
	for _, h := range []string{"Descripción", "Cantidad", "Valor total"} {
		c := header.AddCell()
		c.SetString(h)
		c.SetStyle(bold)
	}
	for d := 1; d <= days; d++ {
		c := header.AddCell()
		c.SetInt(d)
		c.SetStyle(bold)
	}

	for _, a := range alternativas {
		row := sheet.AddRow()
		row.AddCell().SetString(a.Descripcion)
		row.AddCell().SetInt(a.Cantidad)
		row.AddCell().SetString(FormatAmountPtr(a.ValorTotal))
		for _, d := range a.Calendar {
			c := row.AddCell()
			if d.Activo {
				c.SetInt(d.Cantidad)
			}
		}
	}
	return f, nil
}

func generateErr(err error) error {
	return &generateError{err: err}
}

type generateError struct{ err error }

func (e *generateError) Error() string        { return e.err.Error() }
func (e *generateError) Unwrap() error        { return e.err }
func (e *generateError) Is(target error) bool { return target == ErrGenerate }

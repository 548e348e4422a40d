package catalog

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names read by ReadXLSX. Each sheet's first row is a header; columns
// are matched by header name so their order does not matter. Missing
// sheets are treated as empty.
const (
	SheetClientes  = "clientes"
	SheetMedios    = "medios"
	SheetSoportes  = "soportes"
	SheetContratos = "contratos"
)

// ReadXLSX reads a catalog workbook.
func ReadXLSX(path string) (*Catalog, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open xlsx")
	}

	var c Catalog
	for _, r := range readSheet(f, SheetClientes) {
		c.Clientes = append(c.Clientes, Cliente{
			Nombre:      r.get("nombre"),
			RazonSocial: r.get("razon_social"),
			RUT:         r.get("rut"),
		})
	}
	for _, r := range readSheet(f, SheetMedios) {
		c.Medios = append(c.Medios, Medio{Nombre: r.get("nombre"), Codigo: r.get("codigo")})
	}
	for _, r := range readSheet(f, SheetSoportes) {
		c.Soportes = append(c.Soportes, Soporte{Nombre: r.get("nombre"), Medio: r.get("medio")})
	}
	for _, r := range readSheet(f, SheetContratos) {
		c.Contratos = append(c.Contratos, Contrato{
			Nombre:      r.get("nombre"),
			Cliente:     r.get("cliente"),
			Medio:       r.get("medio"),
			Activo:      parseBool(r.get("activo")),
			FechaInicio: r.get("fecha_inicio"),
			FechaFin:    r.get("fecha_fin"),
		})
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

type row map[string]string

func (r row) get(col string) string { return strings.TrimSpace(r[col]) }

// readSheet returns the data rows of the named sheet keyed by lowercased
// header. Blank rows are skipped.
func readSheet(f *xlsx.File, name string) []row {
	sheet := getSheet(f, name)
	if sheet == nil || len(sheet.Rows) == 0 {
		return nil
	}

	header := rowToStrings(sheet.Rows[0])
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var out []row
	for _, xr := range sheet.Rows[1:] {
		cells := rowToStrings(xr)
		r := make(row, len(header))
		blank := true
		for j, h := range header {
			if j < len(cells) && h != "" {
				r[h] = cells[j]
				if strings.TrimSpace(cells[j]) != "" {
					blank = false
				}
			}
		}
		if !blank {
			out = append(out, r)
		}
	}
	return out
}

func getSheet(f *xlsx.File, name string) *xlsx.Sheet {
	if s, ok := f.Sheet[name]; ok {
		return s
	}
	for _, s := range f.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

func rowToStrings(r *xlsx.Row) []string {
	if r == nil {
		return nil
	}
	cells := make([]string, len(r.Cells))
	for j, cell := range r.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "si", "sí", "activo", "x":
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// Package catalog loads reference data (clientes, medios, soportes,
// contratos) from YAML or XLSX files and imports it into the record store.
package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Cliente is an advertiser.
type Cliente struct {
	Nombre      string `yaml:"nombre"`
	RazonSocial string `yaml:"razon_social"`
	RUT         string `yaml:"rut"`
}

// Medio is a media channel such as Televisión or Radio.
type Medio struct {
	Nombre string `yaml:"nombre"`
	Codigo string `yaml:"codigo"`
}

// Soporte is a placement vehicle within a medio.
type Soporte struct {
	Nombre string `yaml:"nombre"`
	Medio  string `yaml:"medio"`
}

// Contrato links a cliente to a medio. Activo maps to the estado column.
type Contrato struct {
	Nombre      string `yaml:"nombre"`
	Cliente     string `yaml:"cliente"`
	Medio       string `yaml:"medio"`
	Activo      bool   `yaml:"activo"`
	FechaInicio string `yaml:"fecha_inicio"`
	FechaFin    string `yaml:"fecha_fin"`
}

// Catalog is the full set of reference records to import.
type Catalog struct {
	Clientes  []Cliente  `yaml:"clientes"`
	Medios    []Medio    `yaml:"medios"`
	Soportes  []Soporte  `yaml:"soportes"`
	Contratos []Contrato `yaml:"contratos"`
}

// LoadFile reads a catalog from path, choosing the format by extension.
func LoadFile(path string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		return ParseYAML(data)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("catalog: unsupported file type %q", filepath.Ext(path))
	}
}

// ParseYAML decodes and validates a YAML catalog.
func ParseYAML(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names are present and every reference points at an
// entry of the same catalog.
func (c *Catalog) Validate() error {
	clientes := map[string]bool{}
	for i, cl := range c.Clientes {
		if strings.TrimSpace(cl.Nombre) == "" {
			return eris.Errorf("catalog: clientes[%d] has no nombre", i)
		}
		clientes[key(cl.Nombre)] = true
	}
	medios := map[string]bool{}
	for i, m := range c.Medios {
		if strings.TrimSpace(m.Nombre) == "" {
			return eris.Errorf("catalog: medios[%d] has no nombre", i)
		}
		medios[key(m.Nombre)] = true
	}
	for i, s := range c.Soportes {
		if strings.TrimSpace(s.Nombre) == "" {
			return eris.Errorf("catalog: soportes[%d] has no nombre", i)
		}
		if !medios[key(s.Medio)] {
			return eris.Errorf("catalog: soporte %q references unknown medio %q", s.Nombre, s.Medio)
		}
	}
	for i, ct := range c.Contratos {
		if strings.TrimSpace(ct.Nombre) == "" {
			return eris.Errorf("catalog: contratos[%d] has no nombre", i)
		}
		if !clientes[key(ct.Cliente)] {
			return eris.Errorf("catalog: contrato %q references unknown cliente %q", ct.Nombre, ct.Cliente)
		}
		if !medios[key(ct.Medio)] {
			return eris.Errorf("catalog: contrato %q references unknown medio %q", ct.Nombre, ct.Medio)
		}
	}
	return nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

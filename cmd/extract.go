package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brifyai/pautapro/internal/document"
	"github.com/brifyai/pautapro/internal/extract"
	"github.com/brifyai/pautapro/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract [instruction]",
	Short: "Show the fields extracted from an instruction without touching the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		e := extract.New().Extract(text)
		renderExtraction(cmd.OutOrStdout(), e, extract.Validate(e))
		return nil
	},
}

func renderExtraction(out io.Writer, e model.ExtractedEntities, v model.ValidationResult) {
	opt := func(p *int) string {
		if p == nil {
			return "-"
		}
		return strconv.Itoa(*p)
	}
	str := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Campo", "Valor"})
	tw.AppendRow(table.Row{model.FieldCliente, str(e.ClienteName())})
	tw.AppendRow(table.Row{model.FieldProducto, str(e.ProductoName())})
	tw.AppendRow(table.Row{model.FieldMedio, str(e.MedioName())})
	tw.AppendRow(table.Row{model.FieldMonto, document.FormatAmountPtr(e.Monto)})
	tw.AppendRow(table.Row{model.FieldMes, opt(e.Mes)})
	tw.AppendRow(table.Row{model.FieldAnio, e.Anio})
	tw.AppendRow(table.Row{model.FieldDuracion, opt(e.Duracion)})
	tw.AppendRow(table.Row{model.FieldCantidad, opt(e.Cantidad)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"válido", v.Valid})
	tw.AppendRow(table.Row{"faltantes", str(strings.Join(v.Missing, ", "))})
	tw.AppendRow(table.Row{"no válidos", str(strings.Join(v.Invalid, ", "))})
	tw.AppendRow(table.Row{"confianza", strconv.Itoa(v.Confidence) + "%"})
	tw.Render()
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

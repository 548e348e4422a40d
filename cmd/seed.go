package main

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brifyai/pautapro/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml|catalog.xlsx>",
	Short: "Import clientes, medios, soportes and contratos from a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := catalog.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		res, err := catalog.Import(ctx, st, c)
		if err != nil {
			return err
		}
		renderImport(cmd.OutOrStdout(), res)
		return nil
	},
}

func renderImport(out io.Writer, res catalog.Result) {
	tables := map[string]bool{}
	for t := range res.Created {
		tables[t] = true
	}
	for t := range res.Existing {
		tables[t] = true
	}
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Tabla", "Creados", "Existentes"})
	for _, t := range names {
		tw.AppendRow(table.Row{t, res.Created[t], res.Existing[t]})
	}
	tw.Render()
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

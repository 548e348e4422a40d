package main

import (
	"bufio"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brifyai/pautapro/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive order conversation on the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return runChat(cmd.InOrStdin(), cmd.OutOrStdout(), func(text string) session.Reply {
			return a.orch.Handle(ctx, a.sessionFor(), text)
		})
	},
}

// sessionFor returns the single terminal session.
func (a *app) sessionFor() *session.Session {
	return a.sessions.GetOrCreate("terminal")
}

// runChat reads one instruction per line until EOF or "salir".
func runChat(in io.Reader, out io.Writer, handle func(string) session.Reply) error {
	fmt.Fprintln(out, `Asistente de órdenes. Escribe "ayuda" para ver ejemplos o "salir" para terminar.`)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		text := strings.TrimSpace(sc.Text())
		switch strings.ToLower(text) {
		case "":
			continue
		case "salir", "exit", "quit":
			return nil
		}
		r := handle(text)
		fmt.Fprintln(out, r.Message)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

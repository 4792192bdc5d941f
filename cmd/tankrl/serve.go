package main

import (
	"os"
	"os/signal"

	"github.com/milk9111/tankrl/api"
	"github.com/milk9111/tankrl/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var db, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored episodes over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			st, err := store.Open(db, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			return api.NewServer(api.WithEpisodes(st)).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&db, "db", envOr("TANKRL_DB", "tankrl.db"), "SQLite episode store")
	cmd.Flags().StringVar(&addr, "http", envOr("TANKRL_HTTP", ":8080"), "listen address")
	return cmd
}

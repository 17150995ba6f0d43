// cmd_serve.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/masim/analysis/database"
	"github.com/masim/analysis/handlers"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics and admin endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		loader, err := newLoader(db)
		if err != nil {
			return err
		}
		catalog, err := newCatalog()
		if err != nil {
			return err
		}
		admin := handlers.NewAdminHandler(db, loader, catalog, metrics)
		server := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           admin.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			log.Infof("Server starting on http://localhost%s", server.Addr)
			errc <- server.ListenAndServe()
		}()

		select {
		case err := <-errc:
			admin.Shutdown()
			return err
		case <-ctx.Done():
		}
		log.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		admin.Shutdown()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dpotapov/go-looseml"
	"github.com/spf13/cobra"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	var dir, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the markup files of a directory as JSON trees",
		Long: `Serve the markup files of a directory as JSON trees.

GET /path parses the .html, .htm, .xml or .xhtml file at path.
POST parses the request body. A WebSocket connection parses every message.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := gf.loadGrammar()
			if err != nil {
				return err
			}
			logger := gf.logger(cmd, slog.LevelInfo)

			h := &looseml.Handler{
				FileSystem: os.DirFS(dir),
				Grammar:    g,
				Logger:     logger,
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           loggerMiddleware(h, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("Starting HTTP server", "address", addr, "dir", dir)

			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to serve markup files from")
	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:8080", "address to listen on")

	return cmd
}

func loggerMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request", "method", r.Method, "url", r.URL)
		next.ServeHTTP(w, r)
	})
}

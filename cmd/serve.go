package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/api"
	"github.com/sells-group/leadsync/internal/store"
	"github.com/sells-group/leadsync/internal/syncer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead intake and sync HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		// The store connects on first request so the server can come up
		// before the database does.
		st := store.NewLazy(func(ctx context.Context) (store.Store, error) {
			return openStore(ctx, cfg)
		})
		defer st.Close() //nolint:errcheck

		notifier, closeNotifier, err := initNotifier(cfg)
		if err != nil {
			return err
		}
		defer closeNotifier() //nolint:errcheck

		srv := api.New(st, newProcessor(cfg), syncer.New(st, notifier), api.Options{
			SyncSecret:     cfg.Sync.Secret,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})
		if cfg.Sync.Secret == "" {
			zap.L().Warn("sync.secret is not set; /sync will reject every request")
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

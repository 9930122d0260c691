package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/sync"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll every account periodically and expose /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			accounts, err := a.store.ListAccounts(ctx)
			if err != nil {
				return err
			}

			poller := sync.NewPoller(a.syncer(ctx), sync.PollerConfig{
				Interval:     time.Duration(a.cfg.Sync.PollIntervalSec) * time.Second,
				MaxEmails:    a.cfg.Sync.MaxEmails,
				MarkAsRead:   a.cfg.Sync.MarkAsRead,
				LookbackDays: a.cfg.Sync.LookbackDays,
			}, a.logger)
			for _, account := range accounts {
				poller.RegisterAccount(account)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			srv := &http.Server{
				Addr:              a.cfg.Metrics.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("metrics server failed", zap.Error(err))
				}
			}()

			a.logger.Info("serving",
				zap.Int("accounts", len(accounts)),
				zap.String("metrics_addr", a.cfg.Metrics.Addr),
			)
			poller.Start(ctx)

			for {
				select {
				case <-ctx.Done():
					poller.Stop()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				case r := <-poller.Results():
					if r.Error != nil {
						continue
					}
					a.logger.Info("account synced",
						zap.String("account_id", r.AccountID),
						zap.Int("emails", len(r.Emails)),
					)
				}
			}
		},
	}
}

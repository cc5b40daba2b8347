package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/internal/hubtest"
)

func newMockHubCmd(e *env) *cobra.Command {
	var (
		listen    string
		interval  time.Duration
		addresses []string
	)

	cmd := &cobra.Command{
		Use:   "mock-hub",
		Short: "Run a local hub that answers requests and pushes made-up transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			mc := e.cfg.MockHub
			if cmd.Flags().Changed("listen") || mc.Listen == "" {
				mc.Listen = listen
			}
			if cmd.Flags().Changed("interval") || mc.NotifyInterval <= 0 {
				mc.NotifyInterval = interval
			}
			mc.Addresses = append(mc.Addresses, addresses...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMockHub(ctx, e.log, mc.Listen, mc.NotifyInterval, mc.Addresses)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":6615", "address to listen on")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "time between pushed transfers")
	cmd.Flags().StringSliceVarP(&addresses, "address", "a", nil, "extra address for the made-up address book")
	return cmd
}

func runMockHub(ctx context.Context, log *zap.Logger, listen string, interval time.Duration, addresses []string) error {
	srv := hubtest.NewServer(hubtest.WithLogger(log.Named("mock-hub")))
	gen := hubtest.NewGenerator(srv, addresses, interval)
	gen.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", srv)
	httpSrv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock hub listening", zap.String("listen", listen), zap.Duration("interval", interval))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down mock hub")
	srv.Drop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

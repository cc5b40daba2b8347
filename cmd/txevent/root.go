package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/internal/config"
	"github.com/smart-dag/txevent/internal/logging"
	"github.com/smart-dag/txevent/pkg/channel"
	"github.com/smart-dag/txevent/pkg/hub"
)

// GlobalFlags are the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// env is what PersistentPreRunE prepares for the subcommands.
type env struct {
	flags    GlobalFlags
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *http.Server

	// quietConsole routes logs to the file only; set by commands that own
	// the terminal.
	quietConsole bool
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "txevent",
		Short:         "Ledger hub client: watch transfers, send requests, run a local hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.teardown()
		},
	}

	root.PersistentFlags().StringVar(&e.flags.ConfigPath, "config", "", "YAML config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&e.flags.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&e.flags.LogFormat, "log-format", "", "log format: console|json")
	root.PersistentFlags().StringVar(&e.flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(newWatchCmd(e))
	root.AddCommand(newRequestCmd(e))
	root.AddCommand(newTUICmd(e))
	root.AddCommand(newMockHubCmd(e))
	return root
}

func (e *env) setup(cmd *cobra.Command) error {
	var err error
	if e.flags.ConfigPath != "" {
		e.cfg, err = config.Load(e.flags.ConfigPath)
	} else {
		e.cfg = config.Default()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if e.flags.LogLevel != "" {
		e.cfg.Log.Level = e.flags.LogLevel
	}
	if e.flags.LogFormat != "" {
		e.cfg.Log.Format = e.flags.LogFormat
	}
	if e.flags.MetricsAddr != "" {
		e.cfg.Metrics.Listen = e.flags.MetricsAddr
	}

	var console io.Writer = cmd.ErrOrStderr()
	if e.quietConsole {
		console = nil
	}
	e.log, err = logging.New(e.cfg.Log, console)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if e.cfg.Metrics.Listen != "" {
		e.serveMetrics(e.cfg.Metrics.Listen)
	}
	return nil
}

func (e *env) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		e.log.Info("serving metrics", zap.String("addr", addr))
		if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server", zap.Error(err))
		}
	}()
}

func (e *env) teardown() {
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.metrics.Shutdown(ctx)
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// hubAddress picks the flag value, then the config file, then the default.
func (e *env) hubAddress(flag string) string {
	switch {
	case flag != "":
		return flag
	case e.cfg.Hub.Address != "":
		return e.cfg.Hub.Address
	default:
		return hub.DefaultAddress
	}
}

// newClient builds a hub client from the loaded configuration.
func (e *env) newClient() *hub.Client {
	h := e.cfg.Hub
	opts := []hub.Option{
		hub.WithLogger(e.log),
		hub.WithDialer(channel.WSDialer(h.ReadTimeout)),
		hub.WithReconnectPolicy(e.cfg.ReconnectPolicy()),
		hub.WithHeartbeatInterval(h.HeartbeatInterval),
		hub.WithConnectTimeout(h.ConnectTimeout),
		hub.WithSettleDelay(h.SettleDelay),
		hub.WithRequestTimeout(h.RequestTimeout),
		hub.WithMetrics(hub.NewMetrics(e.registry)),
	}
	if h.PeerID != "" {
		opts = append(opts, hub.WithPeerID(h.PeerID))
	}
	return hub.New(opts...)
}

// watchList merges configured addresses with the ones given on the command line.
func (e *env) watchList(extra []string) []string {
	out := make([]string, 0, len(e.cfg.Watch.Addresses)+len(extra))
	out = append(out, e.cfg.Watch.Addresses...)
	return append(out, extra...)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/pkg/hub"
	"github.com/smart-dag/txevent/pkg/protocol"
)

func newWatchCmd(e *env) *cobra.Command {
	var (
		hubAddr   string
		addresses []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch addresses and log every hub event until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, e, e.hubAddress(hubAddr), e.watchList(addresses))
		},
	}

	cmd.Flags().StringVar(&hubAddr, "hub", "", "hub address (default from config, then "+hub.DefaultAddress+")")
	cmd.Flags().StringSliceVarP(&addresses, "address", "a", nil, "address to watch; repeat or comma-separate")
	return cmd
}

func runWatch(ctx context.Context, e *env, address string, addresses []string) error {
	c := e.newClient()
	defer c.Close()

	logEvents(c, e.log)
	c.Watch(addresses...)

	ok, err := c.Connect(ctx, address)
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		return err
	case !ok:
		e.log.Warn("hub did not answer in time, retrying in the background", zap.String("address", c.Address()))
	}

	e.log.Info("watching", zap.String("address", c.Address()), zap.Strings("addresses", c.WatchSet()))
	<-ctx.Done()
	e.log.Info("shutting down")
	return nil
}

// logEvents writes every published event to log.
func logEvents(c *hub.Client, log *zap.Logger) {
	transfer := func(tr protocol.Transfer) {
		log.Info("transfer",
			zap.String("direction", string(tr.Direction)),
			zap.String("from", tr.From),
			zap.String("to", tr.To),
			zap.String("amount", tr.Amount.String()),
			zap.String("unit", tr.Unit),
			zap.String("text", tr.Text),
			zap.Int64("timestamp", tr.Timestamp),
		)
	}

	c.OnConnected(func() {
		log.Info("connected", zap.String("address", c.Address()))
	}).
		OnServerLost(func() {
			log.Warn("server lost", zap.String("address", c.Address()))
		}).
		OnError(func(err error) {
			log.Warn("hub error", zap.Error(err))
		}).
		OnJoint(func(body json.RawMessage) {
			log.Info("joint", zap.Int("bytes", len(body)))
		}).
		OnNotify(func(n *protocol.Notification) {
			log.Debug("notify", zap.String("unit", n.Unit), zap.String("from", n.From), zap.Int("recipients", len(n.To)))
		}).
		OnIn(transfer).
		OnOut(transfer)
}

package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-dag/txevent/internal/tui/app"
	"github.com/smart-dag/txevent/pkg/hub"
)

func newTUICmd(e *env) *cobra.Command {
	var (
		hubAddr   string
		addresses []string
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Terminal dashboard of incoming and outgoing transfers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.quietConsole = true
			return e.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := e.newClient()
			defer c.Close()

			watch := e.watchList(addresses)
			address := e.hubAddress(hubAddr)
			m := app.New(address, len(watch))
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

			app.Attach(c, p.Send)
			c.Watch(watch...)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				ok, err := c.Connect(ctx, address)
				if err != nil && !errors.Is(err, context.Canceled) {
					p.Send(app.ErrorMsg{Err: err})
					return
				}
				if !ok && err == nil {
					e.log.Warn("hub did not answer in time, retrying in the background", zap.String("address", address))
				}
			}()

			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hubAddr, "hub", "", "hub address (default from config, then "+hub.DefaultAddress+")")
	cmd.Flags().StringSliceVarP(&addresses, "address", "a", nil, "address to watch; repeat or comma-separate")
	return cmd
}

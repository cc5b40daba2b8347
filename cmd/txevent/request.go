package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smart-dag/txevent/pkg/hub"
)

func newRequestCmd(e *env) *cobra.Command {
	var hubAddr string

	cmd := &cobra.Command{
		Use:   "request COMMAND [PARAMS_JSON]",
		Short: "Send one request to the hub and print the response",
		Example: `  txevent request get_net_info
  txevent request get_balance '"ADDRESS"'
  txevent request getunitsbyrange '{"from_mci":10,"to_mci":20}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params any
			if len(args) == 2 {
				raw, err := parseParams(args[1])
				if err != nil {
					return err
				}
				params = raw
			}

			c := e.newClient()
			defer c.Close()

			ok, err := c.Connect(cmd.Context(), e.hubAddress(hubAddr))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no handshake with %s", c.Address())
			}

			resp, err := c.Request(cmd.Context(), args[0], params)
			var remote *hub.RemoteError
			if err != nil && !errors.As(err, &remote) {
				return err
			}
			if perr := printJSON(cmd, resp.Response); perr != nil {
				return perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&hubAddr, "hub", "", "hub address (default from config, then "+hub.DefaultAddress+")")
	return cmd
}

func parseParams(s string) (json.RawMessage, error) {
	raw := json.RawMessage(s)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("params are not valid JSON: %q", s)
	}
	return raw, nil
}

func printJSON(cmd *cobra.Command, body json.RawMessage) error {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

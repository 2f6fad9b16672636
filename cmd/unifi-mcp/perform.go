package main

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lexfrei/unifi-mcp/internal/action"
)

// errActionFailed reports an unsuccessful action whose result was already printed.
var errActionFailed = errors.New("action failed")

func newPerformCmd(opts *rootOptions) *cobra.Command {
	var (
		pairs   []string
		rawJSON string
	)

	cmd := &cobra.Command{
		Use:   "perform <action>",
		Short: "Perform a single action and print its result as JSON",
		Example: `  unifi-mcp perform get_devices
  unifi-mcp perform restart_device --param mac=aa:bb:cc:dd:ee:ff
  unifi-mcp perform get_events --params '{"limit": 20, "site_name": "office"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(rawJSON, pairs)
			if err != nil {
				return err
			}

			a, err := newApp(opts, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer a.close()

			result := a.dispatcher.Perform(cmd.Context(), action.Request{
				Action: args[0],
				Params: params,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return errors.Wrap(err, "failed to encode result")
			}

			if !result.Success {
				return errActionFailed
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "param", nil, "parameter as key=value, repeatable")
	cmd.Flags().StringVar(&rawJSON, "params", "", "parameters as a JSON object")

	return cmd
}

// parseParams merges a JSON object with key=value pairs; pairs win.
// Pair values stay strings and are coerced by the dispatcher.
func parseParams(rawJSON string, pairs []string) (map[string]any, error) {
	params := map[string]any{}

	if rawJSON != "" {
		dec := json.NewDecoder(strings.NewReader(rawJSON))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, errors.Wrap(err, "--params must be a JSON object")
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}

	return params, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lexfrei/unifi-mcp/internal/action"
	"github.com/lexfrei/unifi-mcp/internal/controller"
	"github.com/lexfrei/unifi-mcp/internal/handlers"
	"github.com/lexfrei/unifi-mcp/internal/session"
)

func newActionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the available actions and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := actionCatalog()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return errors.Wrap(enc.Encode(catalog), "failed to encode catalog")
			}

			return printCatalog(cmd.OutOrStdout(), catalog)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")

	return cmd
}

// actionCatalog builds the registry against an unconfigured client. Nothing
// is sent to a controller; only the descriptors are read.
func actionCatalog() ([]action.Entry, error) {
	client, err := controller.New(controller.Config{Sessions: session.NewManager(session.Config{})})
	if err != nil {
		//nolint:wrapcheck // Construction errors are descriptive
		return nil, err
	}

	reg, err := handlers.NewRegistry(client)
	if err != nil {
		//nolint:wrapcheck // Registry errors name the offending action
		return nil, err
	}

	return reg.Catalog(), nil
}

func printCatalog(out io.Writer, catalog []action.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ACTION\tDOMAIN\tPARAMETERS\tDESCRIPTION")
	for _, e := range catalog {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Action, e.Domain, paramSummary(e), e.Description)
	}

	return errors.Wrap(w.Flush(), "failed to write catalog")
}

// paramSummary renders required parameters bare and optional ones in brackets.
func paramSummary(e action.Entry) string {
	parts := make([]string, 0, len(e.Required)+len(e.Optional))
	for _, p := range e.Required {
		parts = append(parts, p.Name)
	}
	for _, p := range e.Optional {
		parts = append(parts, "["+p.Name+"]")
	}

	if len(parts) == 0 {
		return "-"
	}

	return strings.Join(parts, " ")
}

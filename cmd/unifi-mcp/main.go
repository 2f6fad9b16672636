// Command unifi-mcp serves a UniFi Network controller's private API as MCP
// actions, or performs a single action from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		if !errors.Is(err, errActionFailed) {
			fmt.Fprintln(os.Stderr, "Error:", unifierr.Message(err))
		}
		os.Exit(1)
	}
}

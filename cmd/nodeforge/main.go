// Package main is the entry point for the nodeforge CLI.
//
// nodeforge provisions a single Ethereum node (geth and lighthouse) on
// Hetzner Cloud behind a TLS load balancer and a DNS name, and bootstraps
// the instance without operator intervention.
//
// Commands: init, plan, apply, destroy, render-bootstrap, auth, version.
//
// For detailed usage information, run:
//
//	nodeforge --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/nodeforge/cmd/nodeforge/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

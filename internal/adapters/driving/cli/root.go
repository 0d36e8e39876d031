// Package cli implements the operator-facing command line interface.
//
// Commands drive the engine exclusively through the driving ports; the
// entry point wires concrete services in via Configure before Execute.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
	"github.com/alterPublics/issue-obervatory-sub001/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "observatory",
	Short: "Issue observatory collection engine",
	Long: `observatory runs declarative research collections across social
platforms, search engines and news archives, and stores the results
as canonical content records.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// Services holds everything the commands need. Fields left nil make the
// corresponding commands fail with a configuration error.
type Services struct {
	Catalog      driving.ArenaCatalog
	Orchestrator driving.RunOrchestrator
	Runs         driven.RunStore
	Designs      driven.QueryDesignStore
	Credentials  driven.CredentialPool
	Feed         driven.StatusFeed
}

var (
	catalog      driving.ArenaCatalog
	orchestrator driving.RunOrchestrator
	runStore     driven.RunStore
	designStore  driven.QueryDesignStore
	credentials  driven.CredentialPool
	statusFeed   driven.StatusFeed
)

// Configure injects the services the commands operate on.
func Configure(services Services) {
	catalog = services.Catalog
	orchestrator = services.Orchestrator
	runStore = services.Runs
	designStore = services.Designs
	credentials = services.Credentials
	statusFeed = services.Feed
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

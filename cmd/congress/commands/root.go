package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	serverURL  string
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "congress",
		Short: "Congress - Datalog policy engine",
		Long: `Congress is a policy engine for cloud infrastructure. Policies are written
in Datalog over tables published by datasources, so a single rule can relate
compute, networking, and identity data:

  disconnect_network(vm, network) :-
    error(vm),
    nova:virtual_machine(vm),
    nova:network(vm, network),
    not neutron:public_network(network),
    neutron:owner(network, network_owner),
    nova:owner(vm, vm_owner),
    not same_group(network_owner, vm_owner)

The serve command runs the engine with its HTTP API; the policy and
datasource commands talk to a running server; validate and query work on
local policy files without a server.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:8282", "server URL for client commands")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newDatasourceCommand())

	return rootCmd
}

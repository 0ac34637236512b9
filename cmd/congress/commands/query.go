package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newQueryCommand() *cobra.Command {
	var (
		policyPaths []string
		policyName  string
		dataFiles   []string
	)

	cmd := &cobra.Command{
		Use:   "query <atom>",
		Short: "Evaluate a query against local policy files",
		Long: `Load policy files into a throwaway runtime and evaluate one query,
without a running server.

Datasource tables can be filled from YAML fact files with --data; the file
format is the same one the file driver polls.`,
		Example: `  # Who gets disconnected, given policies and current cloud state?
  congress query -f ./policies \
    --data nova=nova.yaml --data neutron=neutron.yaml \
    'disconnect_network(vm, network)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
			runtime := policy.NewRuntime(logger, nil)

			for _, spec := range dataFiles {
				name, path, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("invalid --data %q, want name=path", spec)
				}
				if _, err := runtime.CreatePolicy(policy.Info{Name: name, Kind: policy.KindDatasource}); err != nil {
					return err
				}
				snap, err := datasource.NewFileDriver().Poll(ctx, map[string]string{"path": path})
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
				if err := runtime.InitializeTables(name, snap.Tables, snap.Facts); err != nil {
					return err
				}
			}

			if len(policyPaths) > 0 {
				loader := policy.NewLoader(runtime, logger)
				if _, err := loader.LoadFromPaths(ctx, policyPaths); err != nil {
					return err
				}
			}

			result, err := runtime.Query(ctx, policyName, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			for _, line := range result.Results {
				fmt.Println(line)
			}
			fmt.Fprintf(os.Stderr, "%d results in %s\n", len(result.Results), result.Duration)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&policyPaths, "file", "f", nil, "policy file or directory (repeatable)")
	cmd.Flags().StringVarP(&policyName, "policy", "p", "", "policy to query (default classification)")
	cmd.Flags().StringSliceVar(&dataFiles, "data", nil, "datasource facts as name=path (repeatable)")

	return cmd
}

package commands

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/spf13/cobra"
)

func newDatasourceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasource",
		Short: "Manage datasources on a running server",
	}

	cmd.AddCommand(newDatasourceListCommand())
	cmd.AddCommand(newDatasourceAddCommand())
	cmd.AddCommand(newDatasourceDeleteCommand())
	cmd.AddCommand(newDatasourcePollCommand())

	return cmd
}

func newDatasourceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sources []datasource.Datasource
			if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/datasources", nil, &sources); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(sources)
			}
			for _, ds := range sources {
				status := "never polled"
				if !ds.Status.LastPolledAt.IsZero() {
					status = fmt.Sprintf("%d facts", ds.Status.FactCount)
					if ds.Status.LastError != "" {
						status = "error: " + ds.Status.LastError
					}
				}
				fmt.Printf("%-24s %-8s %s\n", ds.Spec.Name, ds.Spec.Driver, status)
			}
			return nil
		},
	}
}

func newDatasourceAddCommand() *cobra.Command {
	var (
		driver       string
		description  string
		configPairs  map[string]string
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a datasource",
		Example: `  # Poll a YAML inventory file every minute
  congress datasource add nova --driver file \
    --set path=/var/lib/congress/nova.yaml --interval 1m

  # Poll an HTTP endpoint
  congress datasource add neutron --driver http \
    --set url=https://neutron.example.com/facts --set token=SECRET`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := datasource.Spec{
				Name:         args[0],
				Driver:       driver,
				Description:  description,
				Config:       configPairs,
				PollInterval: pollInterval,
			}
			var ds datasource.Datasource
			if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/datasources", spec, &ds); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(ds)
			}
			fmt.Printf("Datasource %s added (%s)\n", ds.Spec.Name, ds.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "driver name (file, http)")
	cmd.Flags().StringVar(&description, "description", "", "datasource description")
	cmd.Flags().StringToStringVar(&configPairs, "set", nil, "driver config as key=value (repeatable)")
	cmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll interval (default 30s)")
	_ = cmd.MarkFlagRequired("driver")

	return cmd
}

func newDatasourceDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a datasource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/datasources/" + url.PathEscape(args[0])
			if err := newClient().do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Printf("Datasource %s deleted\n", args[0])
			return nil
		},
	}
}

func newDatasourcePollCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "poll <name>",
		Short: "Poll a datasource now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/datasources/" + url.PathEscape(args[0]) + "/poll"
			var status datasource.Status
			if err := newClient().do(cmd.Context(), http.MethodPost, path, nil, &status); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(status)
			}
			fmt.Printf("Polled %s: %d facts\n", args[0], status.FactCount)
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/radekpospisil/congress/pkg/policy"
	"github.com/spf13/cobra"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage policies on a running server",
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCreateCommand())
	cmd.AddCommand(newPolicyDeleteCommand())
	cmd.AddCommand(newPolicyRulesCommand())
	cmd.AddCommand(newPolicyInsertCommand())
	cmd.AddCommand(newPolicyRetractCommand())
	cmd.AddCommand(newPolicyQueryCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var policies []policy.Info
			if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/policies", nil, &policies); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(policies)
			}
			for _, p := range policies {
				fmt.Printf("%-24s %-14s %s\n", p.Name, p.Kind, p.Description)
			}
			return nil
		},
	}
}

func newPolicyCreateCommand() *cobra.Command {
	var (
		kind        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"name":        args[0],
				"kind":        kind,
				"description": description,
			}
			var info policy.Info
			if err := newClient().do(cmd.Context(), http.MethodPost, "/api/v1/policies", body, &info); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(info)
			}
			fmt.Printf("Policy %s created (%s)\n", info.Name, info.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "policy kind (nonrecursive, datasource, action)")
	cmd.Flags().StringVar(&description, "description", "", "policy description")
	return cmd
}

func newPolicyDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/policies/" + url.PathEscape(args[0])
			if err := newClient().do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Printf("Policy %s deleted\n", args[0])
			return nil
		},
	}
}

func newPolicyRulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules <policy>",
		Short: "List the rules of a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules []struct {
				Rule string `json:"rule"`
			}
			path := "/api/v1/policies/" + url.PathEscape(args[0]) + "/rules"
			if err := newClient().do(cmd.Context(), http.MethodGet, path, nil, &rules); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(rules)
			}
			for _, r := range rules {
				fmt.Println(r.Rule)
			}
			return nil
		},
	}
}

func newPolicyInsertCommand() *cobra.Command {
	var comment string

	cmd := &cobra.Command{
		Use:   "insert <policy> <rule>",
		Short: "Insert a rule into a policy",
		Example: `  congress policy insert classification \
    'disconnect_network(vm, net) :- error(vm), nova:network(vm, net)'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"rule": args[1], "comment": comment}
			path := "/api/v1/policies/" + url.PathEscape(args[0]) + "/rules"
			var inserted struct {
				Rule string `json:"rule"`
			}
			if err := newClient().do(cmd.Context(), http.MethodPost, path, body, &inserted); err != nil {
				return err
			}
			fmt.Printf("Inserted: %s\n", inserted.Rule)
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment stored with the rule")
	return cmd
}

func newPolicyRetractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retract <policy> <rule>",
		Short: "Delete a rule from a policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"rule": args[1]}
			path := "/api/v1/policies/" + url.PathEscape(args[0]) + "/rules"
			if err := newClient().do(cmd.Context(), http.MethodDelete, path, body, nil); err != nil {
				return err
			}
			fmt.Println("Rule deleted")
			return nil
		},
	}
}

func newPolicyQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <policy> <atom>",
		Short: "Evaluate a query on the server",
		Example: `  congress policy query classification 'disconnect_network(vm, network)'`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"query": args[1]}
			path := "/api/v1/policies/" + url.PathEscape(args[0]) + "/query"
			var result policy.QueryResult
			if err := newClient().do(cmd.Context(), http.MethodPost, path, body, &result); err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			for _, line := range result.Results {
				fmt.Println(line)
			}
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/radekpospisil/congress/pkg/datalog"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate Datalog policy files",
		Long: `Parse and check policy files without loading them into a server.

Every rule is checked for syntax and safety: each head variable and each
variable in a negated literal must appear in a positive body literal.`,
		Example: `  # Validate a single policy file
  congress validate classification.dlog

  # Validate a directory of policies
  congress validate ./policies`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if err := validatePath(path); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths failed validation", failed, len(args))
			}
			fmt.Printf("%d paths validated\n", len(args))
			return nil
		},
	}
	return cmd
}

func validatePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return validateFile(path)
	}

	var errs []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".dlog") {
			return nil
		}
		if err := validateFile(p); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p, err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "\n"))
	}
	return nil
}

func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rules, err := datalog.Parse(data)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		for _, serr := range datalog.SafetyErrors(rule) {
			return fmt.Errorf("rule %s: %w", rule.Head.String(), serr)
		}
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kintree/pkg/lineage"
)

// checkCommand creates the snapshot validation command.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a lineage snapshot",
		Long: `Check parses a lineage snapshot and reports structural problems:
cycles, unnamed people, and negative ages. The offending person is
identified by their path from the root.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := lineage.ReadSnapshotFile(args[0])
			if err != nil {
				var malformed *lineage.MalformedTreeError
				if errors.As(err, &malformed) {
					printError("%s is malformed", args[0])
					printDetail("at %s: %s", malformed.Path, malformed.Reason)
					return fmt.Errorf("invalid snapshot")
				}
				return err
			}

			printSuccess("%s is valid", args[0])
			printStats(tree.Len(), tree.EdgeCount(), false)
			printDetail("generations: %d", tree.MaxDepth()+1)
			if name, age, ok := oldest(tree); ok {
				printDetail("oldest: %s (%d)", name, age)
			}
			printDetail("hash: %s", tree.Hash()[:12])
			printNextStep("View it", fmt.Sprintf("%s view %s", appName, args[0]))
			return nil
		},
	}
}

// oldest returns the name and age of the oldest person with a known age.
func oldest(tree *lineage.Tree) (string, int, bool) {
	var (
		name  string
		age   int
		found bool
	)
	for p := range tree.WalkPersons() {
		if p.Age != nil && (!found || *p.Age > age) {
			name, age, found = p.Name, *p.Age, true
		}
	}
	return name, age, found
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmnorm/pkg/catalog"
	"github.com/ChrisMcGann/psmnorm/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config]",
	Short: "Validate a configuration and report its modification catalog",
	Long: `Load a configuration, build the modification catalog and the composite
mass table, and report mass collisions and ambiguous composite masses.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	c, t := p.Catalog(), p.Composite()
	fmt.Printf("Configuration: %s\n", args[0])
	fmt.Printf("Modifications: %d\n", c.Len())
	for _, e := range c.Entries() {
		fmt.Printf("  %-20s %s\n", e.Name, e.Mass.StringFixed(c.Precision()))
	}
	fmt.Printf("Fixed sites: %d\n", len(c.FixedSites()))
	fmt.Printf("Combinations: %d (%d mass keys)\n", t.Len(), t.Keys())

	for _, names := range c.Collisions() {
		fmt.Printf("Warning: modifications share a mass: %s\n", strings.Join(names, ", "))
	}
	ambiguous := t.AmbiguousKeys()
	if len(ambiguous) > 0 {
		fmt.Printf("Ambiguous composite masses: %d\n", len(ambiguous))
		for _, k := range ambiguous {
			var combos []string
			for _, combo := range t.Lookup(k) {
				combos = append(combos, strings.Join(catalog.Names(combo), "+"))
			}
			fmt.Printf("  %s: %s\n", k, strings.Join(combos, " | "))
		}
	}

	fmt.Printf("\nConfiguration is valid.\n")
	return nil
}

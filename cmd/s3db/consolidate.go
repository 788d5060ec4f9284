package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <resource> <id> <field>",
	Short: "force one EventualConsistency consolidation for (resource, id, field)",
	Args:  cobra.ExactArgs(3),
	RunE:  runConsolidate,
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	resourceName, id, field := args[0], args[1], args[2]

	ctx := context.Background()
	dep, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if dep.ec == nil {
		return fmt.Errorf("consolidate: no eventualConsistency section in the manifest")
	}

	result, err := dep.ec.Consolidate(ctx, resourceName, id, field)
	if err != nil {
		return err
	}
	fmt.Printf("%s.%s[%s]: %s\n", resourceName, field, id, result.Kind)
	return nil
}

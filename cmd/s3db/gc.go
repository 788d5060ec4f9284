package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "run one EventualConsistency garbage-collection sweep immediately",
	RunE:  runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dep, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if dep.ec == nil {
		return fmt.Errorf("gc: no eventualConsistency section in the manifest")
	}

	counts, err := dep.ec.GCOnce(ctx)
	if err != nil {
		return err
	}
	for key, deleted := range counts {
		fmt.Printf("%s: deleted %s transactions\n", key, humanize.Comma(int64(deleted)))
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <dataset-name>",
	Short: "Show which generation serves production for a dataset name",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Lifecycle.GetProductionIndex(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if gen == nil {
		fmt.Printf("No production generation for %q.\n", args[0])
		return nil
	}

	fmt.Printf("Production generation for %q\n", args[0])
	fmt.Printf("  id:         %s\n", gen.ID)
	fmt.Printf("  dataset:    %s\n", gen.DatasetID)
	fmt.Printf("  collection: %s\n", gen.CollectionName)
	fmt.Printf("  promoted:   %s\n", gen.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

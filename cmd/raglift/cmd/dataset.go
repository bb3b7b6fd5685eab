package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	datasetName    string
	datasetVersion string
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage dataset registrations",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a dataset version snapshot",
	RunE:  runDatasetCreate,
}

var datasetGenerationsCmd = &cobra.Command{
	Use:   "generations <dataset-id>",
	Short: "List all index generations of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetGenerations,
}

func init() {
	datasetCreateCmd.Flags().StringVar(&datasetName, "name", "", "logical dataset name (required)")
	datasetCreateCmd.Flags().StringVar(&datasetVersion, "version", "", "version tag (required)")
	datasetCreateCmd.MarkFlagRequired("name")
	datasetCreateCmd.MarkFlagRequired("version")

	datasetCmd.AddCommand(datasetCreateCmd)
	datasetCmd.AddCommand(datasetGenerationsCmd)
	rootCmd.AddCommand(datasetCmd)
}

func runDatasetCreate(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dataset, err := a.Lifecycle.CreateDataset(cmd.Context(), datasetName, datasetVersion)
	if err != nil {
		return err
	}

	fmt.Printf("Dataset registered\n")
	fmt.Printf("  id:      %s\n", dataset.ID)
	fmt.Printf("  name:    %s\n", dataset.Name)
	fmt.Printf("  version: %s\n", dataset.Version)
	return nil
}

func runDatasetGenerations(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gens, err := a.Lifecycle.ListGenerations(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(gens) == 0 {
		fmt.Println("No generations found.")
		return nil
	}

	for _, g := range gens {
		fmt.Printf("  %s  %-11s  %s  (updated %s)\n",
			g.ID, g.Status, g.CollectionName, g.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

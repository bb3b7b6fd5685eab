package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tomw/raglift/internal/domain"
)

var (
	genDatasetID string
	genConfigID  string
	genTarget    string
)

var generationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Manage index generations",
}

var generationCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft index generation",
	RunE:  runGenerationCreate,
}

var generationStatusCmd = &cobra.Command{
	Use:   "status <generation-id>",
	Short: "Show a generation's lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerationStatus,
}

var generationPromoteCmd = &cobra.Command{
	Use:   "promote <generation-id>",
	Short: "Promote a generation to a new lifecycle state",
	Long: `Promotes a generation. Promoting to production automatically demotes any
other production generation of the same dataset to deprecated.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerationPromote,
}

var generationBuildCmd = &cobra.Command{
	Use:   "build <generation-id>",
	Short: "Build a generation's index from its dataset corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerationBuild,
}

var generationArchiveCmd = &cobra.Command{
	Use:   "archive <generation-id>",
	Short: "Archive a generation and drop its collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerationArchive,
}

func init() {
	generationCreateCmd.Flags().StringVar(&genDatasetID, "dataset", "", "dataset id (required)")
	generationCreateCmd.Flags().StringVar(&genConfigID, "config", "", "embedding config id (required)")
	generationCreateCmd.MarkFlagRequired("dataset")
	generationCreateCmd.MarkFlagRequired("config")

	generationPromoteCmd.Flags().StringVar(&genTarget, "to", "production", "target state: draft, indexing, staging, production, deprecated, archived")

	generationCmd.AddCommand(generationCreateCmd)
	generationCmd.AddCommand(generationStatusCmd)
	generationCmd.AddCommand(generationPromoteCmd)
	generationCmd.AddCommand(generationBuildCmd)
	generationCmd.AddCommand(generationArchiveCmd)
	rootCmd.AddCommand(generationCmd)
}

func runGenerationCreate(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Lifecycle.CreateIndexGeneration(cmd.Context(), genDatasetID, genConfigID)
	if err != nil {
		return err
	}

	fmt.Printf("Index generation created\n")
	fmt.Printf("  id:         %s\n", gen.ID)
	fmt.Printf("  status:     %s\n", gen.Status)
	fmt.Printf("  collection: %s\n", gen.CollectionName)
	return nil
}

func runGenerationStatus(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Lifecycle.GetIndexGeneration(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("  id:         %s\n", gen.ID)
	fmt.Printf("  dataset:    %s\n", gen.DatasetID)
	fmt.Printf("  config:     %s\n", gen.ConfigID)
	fmt.Printf("  status:     %s\n", gen.Status)
	fmt.Printf("  collection: %s\n", gen.CollectionName)
	fmt.Printf("  updated:    %s\n", gen.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runGenerationPromote(cmd *cobra.Command, args []string) error {
	target, err := domain.ParseLifecycleState(genTarget)
	if err != nil {
		return err
	}

	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.Lifecycle.PromoteIndex(cmd.Context(), args[0], target)
	if err != nil {
		return err
	}

	fmt.Printf("Generation %s promoted to %s\n", gen.ID, gen.Status)
	return nil
}

func runGenerationBuild(cmd *cobra.Command, args []string) error {
	a, err := newFullApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Indexer.BuildGeneration(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Build completed\n")
	fmt.Printf("  documents: %d\n", stats.Documents)
	fmt.Printf("  chunks:    %d\n", stats.Chunks)
	fmt.Printf("  failed:    %d\n", stats.Failed)
	fmt.Printf("  duration:  %s\n", stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))
	return nil
}

func runGenerationArchive(cmd *cobra.Command, args []string) error {
	a, err := newFullApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Indexer.ArchiveGeneration(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Generation %s archived\n", args[0])
	return nil
}

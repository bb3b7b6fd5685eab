package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configModel   string
	configSize    int
	configOverlap int
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage embedding configurations",
}

var configRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an embedding configuration (idempotent)",
	Long: `Registers an embedding configuration. The config id is derived from the
(model, chunk-size, chunk-overlap) triple, so registering the same triple
twice returns the same id without creating a duplicate.`,
	RunE: runConfigRegister,
}

func init() {
	configRegisterCmd.Flags().StringVar(&configModel, "model", "", "embedding model name (required)")
	configRegisterCmd.Flags().IntVar(&configSize, "chunk-size", 512, "chunk size in characters")
	configRegisterCmd.Flags().IntVar(&configOverlap, "chunk-overlap", 50, "overlap between consecutive chunks")
	configRegisterCmd.MarkFlagRequired("model")

	configCmd.AddCommand(configRegisterCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigRegister(cmd *cobra.Command, args []string) error {
	a, err := newLifecycleApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.Lifecycle.RegisterEmbeddingConfig(cmd.Context(), configModel, configSize, configOverlap)
	if err != nil {
		return err
	}

	fmt.Printf("Embedding config registered\n")
	fmt.Printf("  id:            %s\n", cfg.ID)
	fmt.Printf("  model:         %s\n", cfg.ModelName)
	fmt.Printf("  chunk size:    %d\n", cfg.ChunkSize)
	fmt.Printf("  chunk overlap: %d\n", cfg.ChunkOverlap)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tomw/raglift/internal/service"
)

var (
	searchMode string
	searchTopK int
)

var searchCmd = &cobra.Command{
	Use:   "search <dataset-name> <query...>",
	Short: "Query the production index of a dataset",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: keyword, vector, hybrid")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	mode, err := service.ParseSearchMode(searchMode)
	if err != nil {
		return err
	}

	a, err := newFullApp()
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Retrieval.Retrieve(cmd.Context(), &service.RetrieveRequest{
		DatasetName: args[0],
		Query:       strings.Join(args[1:], " "),
		Mode:        mode,
		TopK:        searchTopK,
	})
	if err != nil {
		return err
	}

	if resp.Total == 0 {
		fmt.Println("No results.")
		return nil
	}

	fmt.Printf("%d results from %s\n\n", resp.Total, resp.Collection)
	for i, doc := range resp.Results {
		fmt.Printf("%2d. [%.4f] %s #%d\n", i+1, doc.Score, doc.Source, doc.ChunkIndex)
		fmt.Printf("    %s\n", truncate(doc.Text, 160))
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}

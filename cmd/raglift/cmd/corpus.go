package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var corpusDatasetID string

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage raw dataset documents in object storage",
}

var corpusUploadCmd = &cobra.Command{
	Use:   "upload <files...>",
	Short: "Upload documents into a dataset's corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusUpload,
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a dataset's corpus documents",
	RunE:  runCorpusList,
}

func init() {
	corpusUploadCmd.Flags().StringVar(&corpusDatasetID, "dataset", "", "dataset id (required)")
	corpusUploadCmd.MarkFlagRequired("dataset")
	corpusListCmd.Flags().StringVar(&corpusDatasetID, "dataset", "", "dataset id (required)")
	corpusListCmd.MarkFlagRequired("dataset")

	corpusCmd.AddCommand(corpusUploadCmd)
	corpusCmd.AddCommand(corpusListCmd)
	rootCmd.AddCommand(corpusCmd)
}

func runCorpusUpload(cmd *cobra.Command, args []string) error {
	a, err := newFullApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Storage.EnsureBucket(cmd.Context()); err != nil {
		return err
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}

		key := fmt.Sprintf("datasets/%s/%s", corpusDatasetID, filepath.Base(path))
		err = a.Storage.Upload(cmd.Context(), key, f, info.Size(), "text/plain")
		f.Close()
		if err != nil {
			return err
		}
		fmt.Printf("  uploaded %s (%d bytes)\n", key, info.Size())
	}
	return nil
}

func runCorpusList(cmd *cobra.Command, args []string) error {
	a, err := newFullApp()
	if err != nil {
		return err
	}
	defer a.Close()

	prefix := fmt.Sprintf("datasets/%s/", corpusDatasetID)
	keys, err := a.Storage.List(cmd.Context(), prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for _, key := range keys {
		fmt.Println("  " + key)
	}
	return nil
}

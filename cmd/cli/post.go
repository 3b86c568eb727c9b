package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mercantil/demote-service/internal/database"
	"github.com/mercantil/demote-service/internal/grouping"
	"github.com/mercantil/demote-service/internal/ledger"
	"github.com/mercantil/demote-service/internal/types"
)

var (
	postFile        string
	postDeposit     string
	postObservation string
	postDryRun      bool
)

// postCmd posts a JSON batch of demote line items through the two-phase
// ledger write
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a demote batch from a JSON file",
	RunE:  runPost,
}

func init() {
	postCmd.Flags().StringVar(&postFile, "file", "", "JSON file holding the line items")
	postCmd.Flags().StringVar(&postDeposit, "deposit", "", "deposit date (YYYY-MM-DD)")
	postCmd.Flags().StringVar(&postObservation, "observation", "", "free-text observation recorded on each movement")
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "group and print the movements without posting")
	postCmd.MarkFlagRequired("file")
	postCmd.MarkFlagRequired("deposit")

	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	deposit, err := time.Parse("2006-01-02", postDeposit)
	if err != nil {
		return fmt.Errorf("invalid deposit date: %w", err)
	}

	data, err := os.ReadFile(postFile)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}

	var items []types.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parsing batch file: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("batch file holds no line items")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if postDryRun {
		logger.Info().Int("lines", len(items)).Msg("Dry run, printing grouped movements")
		return enc.Encode(groupedPreview(items))
	}

	store := database.NewStore(database.Pool())
	poster := ledger.NewPoster(store, *logger)

	result, err := poster.Post(context.Background(), ledger.Batch{
		Items:       items,
		DepositDate: deposit,
		Observation: postObservation,
	})
	if err != nil {
		return err
	}

	if !result.Valid() {
		logger.Warn().Msg("Batch finished with errors")
	} else {
		logger.Info().Int("lines", len(result.Lines)).Msg("Batch posted")
	}

	return enc.Encode(result)
}

// groupedPreview strips the child line items off each movement so a dry
// run prints the aggregates, not the whole batch again.
func groupedPreview(items []types.LineItem) []types.LedgerMovement {
	movements := grouping.Movements(items)
	for i := range movements {
		movements[i].Items = nil
	}
	return movements
}

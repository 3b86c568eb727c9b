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
)

var (
	demotesBranch   int64
	demotesSupplier int64
	demotesBegin    string
	demotesEnd      string
	demotesView     string
)

// demotesCmd queries demote candidates for a window and prints them as JSON
var demotesCmd = &cobra.Command{
	Use:   "demotes",
	Short: "Query demote candidates for a date window",
	RunE:  runDemotes,
}

func init() {
	demotesCmd.Flags().Int64Var(&demotesBranch, "branch", 0, "branch id filter (0 = all)")
	demotesCmd.Flags().Int64Var(&demotesSupplier, "supplier", 0, "supplier id filter (0 = all)")
	demotesCmd.Flags().StringVar(&demotesBegin, "begin", "", "window begin date (YYYY-MM-DD)")
	demotesCmd.Flags().StringVar(&demotesEnd, "end", "", "window end date (YYYY-MM-DD)")
	demotesCmd.Flags().StringVar(&demotesView, "view", "flat", "output shape: flat, compact or report")
	demotesCmd.MarkFlagRequired("begin")
	demotesCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(demotesCmd)
}

func runDemotes(cmd *cobra.Command, args []string) error {
	begin, err := time.Parse("2006-01-02", demotesBegin)
	if err != nil {
		return fmt.Errorf("invalid begin date: %w", err)
	}
	end, err := time.Parse("2006-01-02", demotesEnd)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if end.Before(begin) {
		return fmt.Errorf("end date %s is before begin date %s", demotesEnd, demotesBegin)
	}

	filter := database.DemoteFilter{BeginDate: begin, EndDate: end}
	if demotesBranch != 0 {
		filter.BranchID = &demotesBranch
	}
	if demotesSupplier != 0 {
		filter.SupplierID = &demotesSupplier
	}

	ctx := context.Background()
	store := database.NewStore(database.Pool())

	items, err := store.GetDemotes(ctx, filter)
	if err != nil {
		return err
	}
	logger.Info().Int("rows", len(items)).Msg("Loaded demote candidates")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch demotesView {
	case "compact":
		return enc.Encode(grouping.Compact(items))
	case "report":
		return enc.Encode(grouping.Report(items))
	case "flat":
		return enc.Encode(items)
	default:
		return fmt.Errorf("unknown view %q", demotesView)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	locationID := flag.Int("location-id", 0, "Required: location id")
	maxItems := flag.Int("max-items", workflow.DefaultRebuildMaxItems, "Optional: stop after this many distinct items")
	maxRows := flag.Int("max-rows", workflow.DefaultRebuildMaxRows, "Optional: stop after scanning this many history rows")
	dryRun := flag.Bool("dry-run", false, "Scan and canonicalize but write nothing; report what would change")
	flag.Parse()

	if *locationID <= 0 {
		fmt.Fprintln(os.Stderr, "--location-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	result, err := workflow.RebuildLedger(context.Background(), db, logger, *locationID, *maxItems, *maxRows, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger rebuild failed: %v\n", err)
		os.Exit(1)
	}
	if result.DryRun {
		fmt.Printf("ledger rebuild dry-run: would write %d entries (scanned_rows=%d)\n", result.RebuiltCount, result.ScannedRows)
		return
	}
	fmt.Printf("ledger rebuild completed: rebuilt=%d scanned_rows=%d\n", result.RebuiltCount, result.ScannedRows)
}

package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	locationID := flag.Int("location-id", 0, "Required: location id")
	maxMissing := flag.Int("max-missing", workflow.DefaultBackfillMaxMissing, "Optional: stop after finding this many missing items")
	maxRows := flag.Int("max-rows", workflow.DefaultBackfillMaxRows, "Optional: stop after scanning this many history rows")
	dryRun := flag.Bool("dry-run", false, "Scan and canonicalize but write nothing; report what would change")
	flag.Parse()

	if *locationID <= 0 {
		fmt.Fprintln(os.Stderr, "--location-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	result, err := workflow.BackfillLedger(db, logger, *locationID, *maxMissing, *maxRows, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger backfill failed: %v\n", err)
		os.Exit(1)
	}
	if result.DryRun {
		fmt.Printf("ledger backfill dry-run: would fill %d entries (scanned_rows=%d)\n", result.FilledCount, result.ScannedRows)
		return
	}
	fmt.Printf("ledger backfill completed: filled=%d scanned_rows=%d\n", result.FilledCount, result.ScannedRows)
}

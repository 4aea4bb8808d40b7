package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RebuildResult struct {
	RebuiltCount int  `json:"rebuilt_count"`
	ScannedRows  int  `json:"scanned_rows"`
	DryRun       bool `json:"dry_run,omitempty"`
}

const (
	DefaultRebuildMaxItems = 5000
	DefaultRebuildMaxRows  = 200000
)

// RebuildLedger recomputes the location's ledger from the full count history,
// used when the ledger is suspected to have drifted. It pages the history in
// descending date order, keeps the first-seen (= most recent) row per item,
// and stops once maxItems distinct items are found or maxRowsScanned rows
// were read — safety valves against unbounded scans, not business rules.
//
// Within one invocation's scan horizon the rebuild is additive: it
// repopulates the items it found and never deletes ledger rows for items
// that fell outside the window.
//
// dryRun runs the scan and canonicalization but skips the upserts; the
// result then carries the count that would have been written.
func RebuildLedger(ctx context.Context, db *gorm.DB, logger *logrus.Logger, locationId int, maxItems int, maxRowsScanned int, dryRun bool) (*RebuildResult, error) {
	if db == nil {
		return nil, errors.New("rebuild ledger: db is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if locationId <= 0 {
		return nil, errors.New("rebuild ledger: location id is required")
	}
	if maxItems <= 0 {
		maxItems = DefaultRebuildMaxItems
	}
	if maxRowsScanned <= 0 {
		maxRowsScanned = DefaultRebuildMaxRows
	}

	// Keep two operators from racing the same expensive scan. Ledger
	// correctness does not depend on this: the upserts stay idempotent.
	release, err := utils.LocationLock(ctx, locationId, "ledger_rebuild", "workflow", "RebuildLedger")
	if err != nil {
		return nil, err
	}
	defer release()

	logger.WithFields(logrus.Fields{
		"location_id": locationId,
		"max_items":   maxItems,
		"max_rows":    maxRowsScanned,
		"dry_run":     dryRun,
	}).Info("ledger.rebuild.start")

	var deposit *models.Deposit
	err = utils.WithRetry(logger, "ledger.rebuild.deposit", func() error {
		var derr error
		deposit, derr = models.GetOrCreateTechnicalDeposit(db, locationId)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild ledger: resolve technical deposit: %w", err)
	}

	scan, err := scanHistory(db, logger, locationId, maxItems, maxRowsScanned, nil)
	if err != nil {
		return nil, err
	}

	written, err := projectScan(db, logger, deposit, scan, "ledger.rebuild", dryRun)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"location_id":  locationId,
		"deposit_id":   deposit.ID,
		"rebuilt":      written,
		"scanned_rows": scan.scannedRows,
		"dry_run":      dryRun,
	}).Info("ledger.rebuild.end")

	return &RebuildResult{RebuiltCount: written, ScannedRows: scan.scannedRows, DryRun: dryRun}, nil
}

// scanHistory pages the submission history most-recent-first, feeding the
// accumulator until it is satisfied or the history ends.
func scanHistory(db *gorm.DB, logger *logrus.Logger, locationId int, maxItems int, maxRows int, skip map[int]bool) (*historyScan, error) {
	scan := newHistoryScan(maxItems, maxRows, skip)
	offset := 0
	for {
		var page []*models.InventorySubmission
		err := utils.WithRetry(logger, "ledger.history.page", func() error {
			var perr error
			page, perr = models.GetSubmissionHistoryPage(db, locationId, offset, historyScanPageSize)
			return perr
		})
		if err != nil {
			return nil, fmt.Errorf("scan history at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return scan, nil
		}
		if !scan.absorb(page) {
			return scan, nil
		}
		offset += len(page)
	}
}

// projectScan canonicalizes everything a history scan found and applies the
// surviving entries, sharing the write path with the incremental sync.
func projectScan(db *gorm.DB, logger *logrus.Logger, deposit *models.Deposit, scan *historyScan, label string, dryRun bool) (int, error) {
	var items map[int]*models.Item
	err := utils.WithRetry(logger, label+".items", func() error {
		var ierr error
		items, ierr = models.GetItemsByIds(db, scan.itemIds())
		return ierr
	})
	if err != nil {
		return 0, fmt.Errorf("fetch item metadata: %w", err)
	}

	writeSet := buildLedgerWriteSet(deposit.ID, scan.latest, items)
	return applyWriteSet(db, logger, label, writeSet, dryRun)
}

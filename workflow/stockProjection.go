package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const historyScanPageSize = 500

// dedupeSubmissionRows collapses a submitted batch to one row per item.
// The same item cannot legitimately appear twice in one batch; when it does,
// the later row in input order wins.
func dedupeSubmissionRows(rows []*models.InventorySubmission) map[int]*models.InventorySubmission {
	byItem := make(map[int]*models.InventorySubmission, len(rows))
	for _, row := range rows {
		if row == nil || row.ItemId <= 0 {
			continue
		}
		byItem[row.ItemId] = row
	}
	return byItem
}

// buildLedgerWriteSet canonicalizes one row per item and keeps only the
// strictly positive results. Items without metadata are skipped (nothing to
// reconcile yet). A zero canonical quantity is omitted entirely: it does NOT
// zero out an existing ledger row.
func buildLedgerWriteSet(depositId int, rowsByItem map[int]*models.InventorySubmission, items map[int]*models.Item) []*models.DepositLedgerEntry {
	entries := make([]*models.DepositLedgerEntry, 0, len(rowsByItem))
	for itemId, row := range rowsByItem {
		item, ok := items[itemId]
		if !ok || item == nil {
			continue
		}
		qty := models.CanonicalQuantity(row, item)
		if qty <= 0 {
			continue
		}
		entries = append(entries, &models.DepositLedgerEntry{
			DepositId:    depositId,
			ItemId:       itemId,
			ImportedCode: item.Code,
			StockQty:     qty,
			IsActive:     utils.NewTrue(),
		})
	}
	return entries
}

// applyWriteSet persists one write set; in dry-run mode it reports the size
// without touching the store. Chunking lives in the model. A transient
// failure retries the whole set, which converges because the upserts are
// idempotent; chunks committed before the failure stay committed.
func applyWriteSet(db *gorm.DB, logger *logrus.Logger, label string, writeSet []*models.DepositLedgerEntry, dryRun bool) (int, error) {
	if dryRun {
		return len(writeSet), nil
	}
	written := 0
	err := utils.WithRetry(logger, label+".upsert", func() error {
		var uerr error
		written, uerr = models.UpsertLedgerEntries(db, writeSet)
		return uerr
	})
	if err != nil {
		return written, fmt.Errorf("upsert write set: %w", err)
	}
	return written, nil
}

// historyScan accumulates the most recent submission row per item over a
// descending-ordered pass of the count history. First seen wins, which under
// (submission_date desc, created_at desc) ordering equals latest wins.
type historyScan struct {
	latest      map[int]*models.InventorySubmission
	scannedRows int
	maxItems    int
	maxRows     int
	// skip holds item ids the scan must ignore (backfill seeds it with the
	// ids already materialized in the ledger).
	skip map[int]bool
}

func newHistoryScan(maxItems int, maxRows int, skip map[int]bool) *historyScan {
	return &historyScan{
		latest:   make(map[int]*models.InventorySubmission),
		maxItems: maxItems,
		maxRows:  maxRows,
		skip:     skip,
	}
}

// absorb consumes one history page. Returns false once a safety valve
// tripped and paging should stop.
func (scan *historyScan) absorb(page []*models.InventorySubmission) bool {
	for _, row := range page {
		if scan.done() {
			return false
		}
		scan.scannedRows++
		if row == nil || row.ItemId <= 0 {
			continue
		}
		if scan.skip != nil && scan.skip[row.ItemId] {
			continue
		}
		if _, seen := scan.latest[row.ItemId]; seen {
			continue
		}
		scan.latest[row.ItemId] = row
	}
	return !scan.done()
}

func (scan *historyScan) done() bool {
	if scan.maxItems > 0 && len(scan.latest) >= scan.maxItems {
		return true
	}
	if scan.maxRows > 0 && scan.scannedRows >= scan.maxRows {
		return true
	}
	return false
}

func (scan *historyScan) itemIds() []int {
	ids := make([]int, 0, len(scan.latest))
	for id := range scan.latest {
		ids = append(ids, id)
	}
	return ids
}

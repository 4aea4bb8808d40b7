package workflow

import (
	"errors"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BackfillResult struct {
	FilledCount int  `json:"filled_count"`
	ScannedRows int  `json:"scanned_rows"`
	DryRun      bool `json:"dry_run,omitempty"`
}

const (
	DefaultBackfillMaxMissing = 1000
	DefaultBackfillMaxRows    = 100000
)

// BackfillLedger adds ledger rows for items that appear in the count history
// but are absent from the ledger, without disturbing existing rows. This is
// the cheap, targeted operation to run after importing a new item catalog;
// a full rebuild stays the recovery tool for suspected drift.
//
// dryRun scans for the gaps but skips the upserts; the result then carries
// the count that would have been filled.
func BackfillLedger(db *gorm.DB, logger *logrus.Logger, locationId int, maxMissing int, maxRowsScanned int, dryRun bool) (*BackfillResult, error) {
	if db == nil {
		return nil, errors.New("backfill ledger: db is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if locationId <= 0 {
		return nil, errors.New("backfill ledger: location id is required")
	}
	if maxMissing <= 0 {
		maxMissing = DefaultBackfillMaxMissing
	}
	if maxRowsScanned <= 0 {
		maxRowsScanned = DefaultBackfillMaxRows
	}

	var deposit *models.Deposit
	err := utils.WithRetry(logger, "ledger.backfill.deposit", func() error {
		var derr error
		deposit, derr = models.GetOrCreateTechnicalDeposit(db, locationId)
		return derr
	})
	if err != nil {
		return nil, err
	}

	var present map[int]bool
	err = utils.WithRetry(logger, "ledger.backfill.present", func() error {
		var perr error
		present, perr = models.GetLedgerItemIds(db, deposit.ID)
		return perr
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"location_id": locationId,
		"deposit_id":  deposit.ID,
		"ledger_rows": len(present),
		"max_missing": maxMissing,
		"max_rows":    maxRowsScanned,
		"dry_run":     dryRun,
	}).Info("ledger.backfill.start")

	scan, err := scanHistory(db, logger, locationId, maxMissing, maxRowsScanned, present)
	if err != nil {
		return nil, err
	}

	written, err := projectScan(db, logger, deposit, scan, "ledger.backfill", dryRun)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"location_id":  locationId,
		"deposit_id":   deposit.ID,
		"filled":       written,
		"scanned_rows": scan.scannedRows,
		"dry_run":      dryRun,
	}).Info("ledger.backfill.end")

	return &BackfillResult{FilledCount: written, ScannedRows: scan.scannedRows, DryRun: dryRun}, nil
}

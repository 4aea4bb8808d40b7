package workflow

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SyncResult struct {
	UpdatedCount int `json:"updated_count"`
	DepositId    int `json:"deposit_id"`
}

// SyncLedger applies a just-saved batch of counts to the location's deposit
// ledger. It runs synchronously after every submission save; the caller
// treats a failure here as a warning, never as a reason to roll back the
// submission — the count history is the source of truth and the ledger is a
// best-effort cache.
func SyncLedger(db *gorm.DB, logger *logrus.Logger, locationId int, rows []*models.InventorySubmission, items map[int]*models.Item) (*SyncResult, error) {
	if db == nil {
		return nil, errors.New("sync ledger: db is nil")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	if locationId <= 0 {
		return nil, errors.New("sync ledger: location id is required")
	}
	if len(rows) == 0 {
		return nil, errors.New("sync ledger: empty submission batch")
	}

	var deposit *models.Deposit
	err := utils.WithRetry(logger, "ledger.sync.deposit", func() error {
		var derr error
		deposit, derr = models.GetOrCreateTechnicalDeposit(db, locationId)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("sync ledger: resolve technical deposit: %w", err)
	}

	writeSet := buildLedgerWriteSet(deposit.ID, dedupeSubmissionRows(rows), items)

	logger.WithFields(logrus.Fields{
		"location_id": locationId,
		"deposit_id":  deposit.ID,
		"batch_rows":  len(rows),
		"write_rows":  len(writeSet),
	}).Info("ledger.sync.start")

	written, err := applyWriteSet(db, logger, "ledger.sync", writeSet, false)
	if err != nil {
		return nil, fmt.Errorf("sync ledger: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"location_id": locationId,
		"deposit_id":  deposit.ID,
		"updated":     written,
	}).Info("ledger.sync.end")

	return &SyncResult{UpdatedCount: written, DepositId: deposit.ID}, nil
}

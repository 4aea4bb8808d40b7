package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerUpsertChunkSize bounds one upsert statement; large write sets are
// split so a single call never exceeds store payload limits.
const LedgerUpsertChunkSize = 1000

// DepositLedgerEntry is the current materialized stock row per
// (deposit, item). StockQty is the canonical quantity from the most recent
// submission considered; its unit follows the item's measurement kind.
type DepositLedgerEntry struct {
	ID        int `gorm:"primary_key" json:"id"`
	DepositId int `gorm:"uniqueIndex:idx_deposit_item;not null" json:"deposit_id"`
	ItemId    int `gorm:"uniqueIndex:idx_deposit_item;not null" json:"item_id"`
	// ImportedCode denormalizes the item code for display.
	ImportedCode string    `gorm:"size:50" json:"imported_code"`
	StockQty     int64     `gorm:"default:0" json:"stock_qty"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertLedgerEntries writes entries keyed by (deposit_id, item_id) in
// chunks. Each chunk is one atomic INSERT ... ON DUPLICATE KEY UPDATE;
// re-running with the same input is a no-op in effect, which is what makes
// retries and overlapping projector runs safe. A failing chunk aborts the
// call; prior chunks stay committed.
func UpsertLedgerEntries(db *gorm.DB, entries []*DepositLedgerEntry) (int, error) {
	written := 0
	for start := 0; start < len(entries); start += LedgerUpsertChunkSize {
		end := start + LedgerUpsertChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]
		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "deposit_id"}, {Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"imported_code", "stock_qty", "is_active", "updated_at",
			}),
		}).Create(&chunk).Error; err != nil {
			return written, err
		}
		written += len(chunk)
	}
	return written, nil
}

// GetLedgerItemIds reads the item-id set already materialized for a deposit.
func GetLedgerItemIds(db *gorm.DB, depositId int) (map[int]bool, error) {
	var ids []int
	if err := db.Model(&DepositLedgerEntry{}).
		Where("deposit_id = ?", depositId).
		Pluck("item_id", &ids).Error; err != nil {
		return nil, err
	}
	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	return present, nil
}

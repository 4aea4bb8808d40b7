package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// InventorySubmission is one physical count for one item at one location on
// one date. The table is append-only: corrections are new rows, never
// in-place edits. The current value for (location, item) is the row with the
// latest (submission_date, created_at).
type InventorySubmission struct {
	ID             int       `gorm:"primary_key" json:"id"`
	LocationId     int       `gorm:"index:idx_location_date;not null" json:"location_id"`
	ItemId         int       `gorm:"index;not null" json:"item_id"`
	SubmissionDate time.Time `gorm:"index:idx_location_date;not null" json:"submission_date"`
	// Qty counts closed/discrete units.
	Qty int64 `gorm:"default:0" json:"qty"`
	// QtyOpenGrams holds loose grams, meaningful only for weight items.
	QtyOpenGrams int64 `gorm:"default:0" json:"qty_open_grams"`
	// QtyTotalMl holds the TOTAL milliliters counted, not an open
	// remainder. Meaningful only for volume items.
	QtyTotalMl int64     `gorm:"default:0" json:"qty_total_ml"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateSubmissionRows appends a counted batch. Rows are immutable once
// written; quantities below zero are rejected up front.
func CreateSubmissionRows(db *gorm.DB, locationId int, rows []*InventorySubmission) error {
	if locationId <= 0 {
		return errors.New("location id is required")
	}
	if len(rows) == 0 {
		return errors.New("empty submission batch")
	}
	for _, row := range rows {
		if row.ItemId <= 0 {
			return errors.New("submission row without item id")
		}
		if row.Qty < 0 || row.QtyOpenGrams < 0 || row.QtyTotalMl < 0 {
			return errors.New("submission quantities must not be negative")
		}
		row.LocationId = locationId
	}
	return db.Create(&rows).Error
}

// GetSubmissionHistoryPage reads one page of the location's count history in
// most-recent-first order. The (submission_date desc, created_at desc)
// ordering is what makes "first seen wins" equal "latest wins" for the
// rebuild and backfill scans.
func GetSubmissionHistoryPage(db *gorm.DB, locationId int, offset int, limit int) ([]*InventorySubmission, error) {
	var rows []*InventorySubmission
	if err := db.Where("location_id = ?", locationId).
		Order("submission_date DESC, created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestSubmissionRow is one item's most recent count joined with its
// metadata, used by the comparison report.
type LatestSubmissionRow struct {
	ItemId        int     `gorm:"column:item_id"`
	Code          string  `gorm:"column:code"`
	Description   string  `gorm:"column:description"`
	Qty           int64   `gorm:"column:qty"`
	QtyOpenGrams  int64   `gorm:"column:qty_open_grams"`
	QtyTotalMl    int64   `gorm:"column:qty_total_ml"`
	VolumePerUnit float64 `gorm:"column:volume_per_unit"`
	WeightPerUnit float64 `gorm:"column:weight_per_unit"`
	UnitLabel     string  `gorm:"column:unit_label"`
	UnitPrice     string  `gorm:"column:unit_price"`
}

// GetLatestSubmissionSnapshot resolves one row per item: the latest
// (submission_date, created_at) count at the location.
func GetLatestSubmissionSnapshot(db *gorm.DB, locationId int) ([]*LatestSubmissionRow, error) {
	sql := `
SELECT
	t.item_id,
	items.code,
	items.description,
	t.qty,
	t.qty_open_grams,
	t.qty_total_ml,
	items.volume_per_unit,
	items.weight_per_unit,
	items.unit_label,
	items.unit_price
FROM (
	SELECT
		s.*,
		ROW_NUMBER() OVER (
			PARTITION BY s.item_id
			ORDER BY s.submission_date DESC, s.created_at DESC, s.id DESC
		) AS rn
	FROM inventory_submissions s
	WHERE s.location_id = ?
) AS t
JOIN items ON items.id = t.item_id
WHERE t.rn = 1
`
	var rows []*LatestSubmissionRow
	if err := db.Raw(sql, locationId).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

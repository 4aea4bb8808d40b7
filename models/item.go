package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MeasurementKind tells which unit the canonical stock quantity of an item
// is expressed in.
type MeasurementKind string

const (
	MeasurementPiece  MeasurementKind = "piece"  // discrete units
	MeasurementWeight MeasurementKind = "weight" // grams
	MeasurementVolume MeasurementKind = "volume" // milliliters
)

type Item struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Code        string          `gorm:"size:50;index;not null" json:"code"`
	Description string          `gorm:"size:255" json:"description"`
	// VolumePerUnit is the milliliters held by one closed unit (e.g. bottle).
	VolumePerUnit float64 `gorm:"default:0" json:"volume_per_unit"`
	// WeightPerUnit is the kilograms of one closed unit. Only meaningful
	// when the unit label is KG.
	WeightPerUnit float64         `gorm:"default:0" json:"weight_per_unit"`
	UnitLabel     string          `gorm:"size:20" json:"unit_label"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MeasurementKindOf resolves the measurement kind with a fixed priority:
// volume beats weight beats piece. An item with both a positive
// volume-per-unit and a KG label is a volume item.
func (item *Item) MeasurementKindOf() MeasurementKind {
	if item.VolumePerUnit > 0 {
		return MeasurementVolume
	}
	if isKgLabel(item.UnitLabel) && item.WeightPerUnit > 0 {
		return MeasurementWeight
	}
	return MeasurementPiece
}

func isKgLabel(label string) bool {
	return len(label) == 2 &&
		(label[0] == 'K' || label[0] == 'k') &&
		(label[1] == 'G' || label[1] == 'g')
}

// CanonicalQuantity folds one submitted count into the single stock integer
// the ledger stores. The unit is implied by the item's measurement kind:
//
//	volume: total milliliters as submitted
//	weight: grams = round(kg-per-unit * 1000) * closed qty + open grams
//	piece:  closed qty
//
// Total function: malformed or negative inputs clamp to zero, never error.
func CanonicalQuantity(row *InventorySubmission, item *Item) int64 {
	if row == nil || item == nil {
		return 0
	}
	switch item.MeasurementKindOf() {
	case MeasurementVolume:
		return clampNonNegative(row.QtyTotalMl)
	case MeasurementWeight:
		gramsPerUnit := int64(math.Round(item.WeightPerUnit * 1000))
		return clampNonNegative(gramsPerUnit*clampNonNegative(row.Qty) + clampNonNegative(row.QtyOpenGrams))
	default:
		return clampNonNegative(row.Qty)
	}
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// GetItemsByIds batch-fetches item metadata keyed by id.
func GetItemsByIds(db *gorm.DB, ids []int) (map[int]*Item, error) {
	result := make(map[int]*Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var items []*Item
	if err := db.Where("id IN (?)", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

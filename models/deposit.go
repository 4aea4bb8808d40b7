package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"gorm.io/gorm"
)

// TechnicalDepositCode marks the synthetic per-location warehouse record
// that exists only to hold the materialized stock ledger.
const TechnicalDepositCode = "TECH"

type Deposit struct {
	ID          int       `gorm:"primary_key" json:"id"`
	LocationId  int       `gorm:"uniqueIndex:idx_location_deposit_code;not null" json:"location_id"`
	DepositCode string    `gorm:"uniqueIndex:idx_location_deposit_code;size:20;not null" json:"deposit_code"`
	Name        string    `gorm:"size:100" json:"name"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// getTechnicalDeposit reads the location's technical deposit without
// creating it. A missing row surfaces as utils.ErrorRecordNotFound so
// callers can tell absence apart from a store failure.
func getTechnicalDeposit(db *gorm.DB, locationId int) (*Deposit, error) {
	var deposit Deposit
	err := db.Where("location_id = ? AND deposit_code = ?", locationId, TechnicalDepositCode).
		First(&deposit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

// GetOrCreateTechnicalDeposit resolves the location's technical deposit,
// creating it on first use. Two concurrent callers for a never-before-seen
// location can both miss the read and both attempt the create; the unique
// index on (location_id, deposit_code) is the safety net, and the loser
// re-reads the winner's row instead of failing.
func GetOrCreateTechnicalDeposit(db *gorm.DB, locationId int) (*Deposit, error) {
	if locationId <= 0 {
		return nil, errors.New("location id is required")
	}

	deposit, err := getTechnicalDeposit(db, locationId)
	if err == nil {
		return deposit, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	created := Deposit{
		LocationId:  locationId,
		DepositCode: TechnicalDepositCode,
		Name:        fmt.Sprintf("Technical deposit (location %d)", locationId),
		IsActive:    utils.NewTrue(),
	}
	createErr := db.Create(&created).Error
	if createErr == nil {
		return &created, nil
	}
	if !isDuplicateKeyError(createErr) {
		return nil, createErr
	}

	// Lost the create race; the row exists now.
	return getTechnicalDeposit(db, locationId)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL error 1062 when the driver doesn't translate.
	return strings.Contains(err.Error(), "Duplicate entry")
}

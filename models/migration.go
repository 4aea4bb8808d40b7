package models

import (
	"bitbucket.org/mmdatafocus/stockcount_backend/config"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Item{},
		&InventorySubmission{},
		&Deposit{},
		&DepositLedgerEntry{},
	)
	utils.ErrorPanic(err)
}

package models

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyError(t *testing.T) {
	if !isDuplicateKeyError(gorm.ErrDuplicatedKey) {
		t.Fatal("translated gorm error should match")
	}
	if !isDuplicateKeyError(errors.New("Error 1062 (23000): Duplicate entry '7-TECH' for key 'idx_location_deposit_code'")) {
		t.Fatal("raw MySQL 1062 should match")
	}
	if isDuplicateKeyError(errors.New("record not found")) {
		t.Fatal("unrelated error must not match")
	}
	if isDuplicateKeyError(nil) {
		t.Fatal("nil must not match")
	}
}

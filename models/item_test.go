package models

import "testing"

func TestMeasurementKindPriority(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want MeasurementKind
	}{
		{"volume wins over kg label", Item{VolumePerUnit: 750, WeightPerUnit: 0.5, UnitLabel: "KG"}, MeasurementVolume},
		{"kg label with weight per unit", Item{WeightPerUnit: 0.032, UnitLabel: "KG"}, MeasurementWeight},
		{"kg label lowercase", Item{WeightPerUnit: 0.032, UnitLabel: "kg"}, MeasurementWeight},
		{"kg label without weight per unit falls to piece", Item{UnitLabel: "KG"}, MeasurementPiece},
		{"weight per unit without kg label falls to piece", Item{WeightPerUnit: 0.032, UnitLabel: "PZ"}, MeasurementPiece},
		{"plain piece item", Item{UnitLabel: "PZ"}, MeasurementPiece},
	}
	for _, tc := range cases {
		if got := tc.item.MeasurementKindOf(); got != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestCanonicalQuantity(t *testing.T) {
	volumeItem := &Item{VolumePerUnit: 750, UnitLabel: "LT"}
	weightItem := &Item{WeightPerUnit: 0.032, UnitLabel: "KG"}
	pieceItem := &Item{UnitLabel: "PZ"}

	cases := []struct {
		name string
		row  InventorySubmission
		item *Item
		want int64
	}{
		{"volume takes total ml as-is", InventorySubmission{Qty: 2, QtyTotalMl: 1700}, volumeItem, 1700},
		{"weight converts pieces to grams plus open grams", InventorySubmission{Qty: 3, QtyOpenGrams: 10}, weightItem, 106},
		{"piece takes closed qty", InventorySubmission{Qty: 12, QtyOpenGrams: 99, QtyTotalMl: 99}, pieceItem, 12},
	}
	for _, tc := range cases {
		if got := CanonicalQuantity(&tc.row, tc.item); got != tc.want {
			t.Errorf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

// Canonicalization is total: malformed or negative input clamps to zero and
// never errors.
func TestCanonicalQuantityTotality(t *testing.T) {
	if got := CanonicalQuantity(nil, &Item{}); got != 0 {
		t.Fatalf("nil row: got %d want 0", got)
	}
	if got := CanonicalQuantity(&InventorySubmission{Qty: 5}, nil); got != 0 {
		t.Fatalf("nil item: got %d want 0", got)
	}
	negatives := InventorySubmission{Qty: -4, QtyOpenGrams: -10, QtyTotalMl: -100}
	for _, item := range []*Item{
		{VolumePerUnit: 750},
		{WeightPerUnit: 0.5, UnitLabel: "KG"},
		{},
	} {
		if got := CanonicalQuantity(&negatives, item); got != 0 {
			t.Errorf("negative inputs with item %+v: got %d want 0", item, got)
		}
	}
}

func TestCanonicalQuantityWeightRounding(t *testing.T) {
	// 0.0325 kg rounds to 33 g per unit before multiplying.
	item := &Item{WeightPerUnit: 0.0325, UnitLabel: "KG"}
	row := &InventorySubmission{Qty: 2, QtyOpenGrams: 1}
	if got := CanonicalQuantity(row, item); got != 67 {
		t.Fatalf("got %d want 67", got)
	}
}

package reports

import (
	"testing"

	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildComparison_SignConvention(t *testing.T) {
	internal := []*InternalStockRow{
		{Code: "AB12", Description: "Prodotto uno", Qty: 12, UnitPrice: d("2.50")},
	}
	external := map[string]decimal.Decimal{"AB12": d("15")}

	lines := BuildComparison(internal, external, true)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	line := lines[0]
	if !line.Diff.Equal(d("-3")) {
		t.Fatalf("diff = internal - external: got %s, want -3 (a shortfall)", line.Diff)
	}
	if !line.FoundInternal || !line.FoundExternal {
		t.Fatalf("found flags wrong: %+v", line)
	}
}

func TestBuildComparison_VolumeItemsCompareInMl(t *testing.T) {
	internal := []*InternalStockRow{
		{Code: "BOTTLE1", Qty: 2, QtyTotalMl: 1700, MlPerUnit: 750},
	}
	external := map[string]decimal.Decimal{"BOTTLE1": d("1500")}

	lines := BuildComparison(internal, external, true)
	line := lines[0]
	if line.MlPerUnit == nil || *line.MlPerUnit != 750 {
		t.Fatalf("ml_per_unit should flag the volume unit: %+v", line)
	}
	if !line.QtyInternal.Equal(d("1700")) {
		t.Fatalf("internal quantity must be the counted total ml, got %s", line.QtyInternal)
	}
	if !line.Diff.Equal(d("200")) {
		t.Fatalf("diff: got %s, want 200", line.Diff)
	}
}

func TestBuildComparison_UnionAndOneSidedRows(t *testing.T) {
	internal := []*InternalStockRow{
		{Code: "ONLYIN1", Qty: 4},
	}
	external := map[string]decimal.Decimal{"ONLYEX1": d("9")}

	lines := BuildComparison(internal, external, true)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want the union of both sides", len(lines))
	}
	byCode := map[string]*ComparisonLine{}
	for _, l := range lines {
		byCode[l.Code] = l
	}
	in := byCode["ONLYIN1"]
	if !in.FoundInternal || in.FoundExternal || !in.Diff.Equal(d("4")) {
		t.Fatalf("internal-only line wrong: %+v", in)
	}
	ex := byCode["ONLYEX1"]
	if ex.FoundInternal || !ex.FoundExternal || !ex.Diff.Equal(d("-9")) {
		t.Fatalf("external-only line wrong: %+v", ex)
	}

	withoutExternalOnly := BuildComparison(internal, external, false)
	if len(withoutExternalOnly) != 1 || withoutExternalOnly[0].Code != "ONLYIN1" {
		t.Fatalf("includeExternalOnly=false must drop external-only codes: %+v", withoutExternalOnly)
	}
}

func TestBuildComparison_NormalizesInternalCodes(t *testing.T) {
	internal := []*InternalStockRow{
		{Code: " ab 12 ", Qty: 5},
	}
	external := map[string]decimal.Decimal{"AB12": d("5")}

	lines := BuildComparison(internal, external, true)
	if len(lines) != 1 {
		t.Fatalf("normalized codes should merge: got %d lines", len(lines))
	}
	if !lines[0].Diff.IsZero() {
		t.Fatalf("diff: got %s, want 0", lines[0].Diff)
	}
}

func TestInternalRowsFromSnapshot_BadPriceFallsBackToZero(t *testing.T) {
	rows := InternalRowsFromSnapshot([]*models.LatestSubmissionRow{
		{Code: "AB12", UnitPrice: "n/d"},
		{Code: "CD34", UnitPrice: "2.50"},
	})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].UnitPrice.IsZero() {
		t.Fatalf("unparseable price must value at zero, got %s", rows[0].UnitPrice)
	}
	if !rows[1].UnitPrice.Equal(d("2.50")) {
		t.Fatalf("price: got %s, want 2.50", rows[1].UnitPrice)
	}
}

func TestComparisonTotals(t *testing.T) {
	ml := 750.0
	lines := []*ComparisonLine{
		{Diff: d("-3"), UnitPrice: d("2.50")},
		{Diff: d("2"), UnitPrice: d("1.00")},
		{Diff: d("500"), MlPerUnit: &ml},
	}
	totals := ComparisonTotalsOf(lines)
	if !totals.DiffPieces.Equal(d("-1")) {
		t.Fatalf("pieces: got %s, want -1", totals.DiffPieces)
	}
	if !totals.DiffValue.Equal(d("-5.5")) {
		t.Fatalf("value: got %s, want -5.5", totals.DiffValue)
	}
	if !totals.DiffLiters.Equal(d("0.5")) {
		t.Fatalf("liters: got %s, want 0.5", totals.DiffLiters)
	}
}

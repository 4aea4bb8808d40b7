package reports

import (
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/stockcount_backend/models"
	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/shopspring/decimal"
)

// InternalStockRow is one item's latest-submission snapshot prepared for
// comparison: the piece count, the counted total milliliters, and the
// metadata needed to pick a unit and price the difference.
type InternalStockRow struct {
	Code        string
	Description string
	Qty         int64
	QtyTotalMl  int64
	MlPerUnit   float64
	UnitPrice   decimal.Decimal
}

// ComparisonLine is one report row. MlPerUnit being set flags that both
// quantities are milliliters rather than pieces; the external source has no
// unit metadata, so its quantity is interpreted in whatever unit the
// internal side chose.
type ComparisonLine struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	QtyInternal   decimal.Decimal `json:"qty_internal"`
	QtyExternal   decimal.Decimal `json:"qty_external"`
	Diff          decimal.Decimal `json:"diff"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MlPerUnit     *float64        `json:"ml_per_unit,omitempty"`
	FoundInternal bool            `json:"found_internal"`
	FoundExternal bool            `json:"found_external"`
}

// ComparisonTotals aggregates the deltas the way the printed report shows
// them: piece shortfall/surplus, its value at unit prices, and the liter
// delta for volume items.
type ComparisonTotals struct {
	DiffPieces decimal.Decimal `json:"diff_pieces"`
	DiffValue  decimal.Decimal `json:"diff_value"`
	DiffLiters decimal.Decimal `json:"diff_liters"`
}

// BuildComparison merges the internal latest-submission snapshot with the
// parsed external map over the union of normalized codes. Sign convention:
// diff = internal - external, so a negative diff is a shortfall against the
// external authoritative file. includeExternalOnly=false drops codes only
// the external file knows about.
func BuildComparison(internalRows []*InternalStockRow, externalMap map[string]decimal.Decimal, includeExternalOnly bool) []*ComparisonLine {
	internalByCode := make(map[string]*InternalStockRow, len(internalRows))
	for _, row := range internalRows {
		if row == nil {
			continue
		}
		code := NormalizeItemCode(row.Code)
		if code == "" {
			continue
		}
		internalByCode[code] = row
	}

	codes := make([]string, 0, len(internalByCode)+len(externalMap))
	for code := range internalByCode {
		codes = append(codes, code)
	}
	for code := range externalMap {
		if _, ok := internalByCode[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	lines := make([]*ComparisonLine, 0, len(codes))
	for _, code := range codes {
		internal, foundInternal := internalByCode[code]
		external, foundExternal := externalMap[code]
		if !foundInternal && !includeExternalOnly {
			continue
		}

		line := &ComparisonLine{
			Code:          code,
			FoundInternal: foundInternal,
			FoundExternal: foundExternal,
		}
		if foundInternal {
			line.Description = internal.Description
			line.UnitPrice = internal.UnitPrice
			if internal.MlPerUnit > 0 {
				ml := internal.MlPerUnit
				line.MlPerUnit = &ml
				line.QtyInternal = decimal.NewFromInt(internal.QtyTotalMl)
			} else {
				line.QtyInternal = decimal.NewFromInt(internal.Qty)
			}
		}
		if foundExternal {
			line.QtyExternal = external
		}
		line.Diff = line.QtyInternal.Sub(line.QtyExternal)
		lines = append(lines, line)
	}
	return lines
}

// ComparisonTotalsOf folds the lines into the report footer figures.
func ComparisonTotalsOf(lines []*ComparisonLine) *ComparisonTotals {
	totals := &ComparisonTotals{}
	thousand := decimal.NewFromInt(1000)
	for _, line := range lines {
		if line.MlPerUnit != nil {
			totals.DiffLiters = totals.DiffLiters.Add(line.Diff.Div(thousand))
			continue
		}
		totals.DiffPieces = totals.DiffPieces.Add(line.Diff)
		totals.DiffValue = totals.DiffValue.Add(line.Diff.Mul(line.UnitPrice))
	}
	return totals
}

// BuildComparisonReport is the full comparison pipeline: parse the uploaded
// gestionale file, merge it with the internal snapshot, and fold the totals.
func BuildComparisonReport(locationId int, fileBytes []byte, internalRows []*InternalStockRow, includeExternalOnly bool) (*ComparisonReport, error) {
	started := time.Now()
	defer func() {
		logSlowReport("stock_comparison", started, map[string]any{
			"location_id": locationId,
			"file_bytes":  len(fileBytes),
		})
	}()

	externalMap, err := ParseExternalStock(fileBytes)
	if err != nil {
		return nil, err
	}
	lines := BuildComparison(internalRows, externalMap, includeExternalOnly)
	return &ComparisonReport{Lines: lines, Totals: ComparisonTotalsOf(lines)}, nil
}

// InternalRowsFromSnapshot adapts the latest-submission query rows to
// comparison inputs.
func InternalRowsFromSnapshot(snapshot []*models.LatestSubmissionRow) []*InternalStockRow {
	rows := make([]*InternalStockRow, 0, len(snapshot))
	for _, s := range snapshot {
		// Missing or malformed prices value the diff at zero, they never
		// fail the report.
		price, err := utils.ParseDecimal(s.UnitPrice)
		if err != nil {
			price = decimal.Zero
		}
		rows = append(rows, &InternalStockRow{
			Code:        s.Code,
			Description: s.Description,
			Qty:         s.Qty,
			QtyTotalMl:  s.QtyTotalMl,
			MlPerUnit:   s.VolumePerUnit,
			UnitPrice:   price,
		})
	}
	return rows
}

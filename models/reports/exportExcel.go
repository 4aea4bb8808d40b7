package reports

import (
	"fmt"

	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExportComparisonXlsx renders the comparison report as a workbook for
// download.
func ExportComparisonXlsx(report *ComparisonReport) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Code")
	f.SetCellValue(sheetName, "B1", "Description")
	f.SetCellValue(sheetName, "C1", "QtyInternal")
	f.SetCellValue(sheetName, "D1", "QtyExternal")
	f.SetCellValue(sheetName, "E1", "Diff")
	f.SetCellValue(sheetName, "F1", "UnitPrice")
	f.SetCellValue(sheetName, "G1", "Unit")

	// Add data
	for i, line := range report.Lines {
		unit := "pcs"
		if utils.DereferencePtr(line.MlPerUnit, 0) > 0 {
			unit = "ml"
		}
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), line.Code)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), line.Description)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), line.QtyInternal.String())
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), line.QtyExternal.String())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), line.Diff.String())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(i+2), line.UnitPrice.String())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(i+2), unit)
	}

	footer := len(report.Lines) + 3
	f.SetCellValue(sheetName, "A"+fmt.Sprint(footer), "TotalDiffPieces")
	f.SetCellValue(sheetName, "B"+fmt.Sprint(footer), report.Totals.DiffPieces.String())
	f.SetCellValue(sheetName, "A"+fmt.Sprint(footer+1), "TotalDiffValue")
	f.SetCellValue(sheetName, "B"+fmt.Sprint(footer+1), report.Totals.DiffValue.String())
	f.SetCellValue(sheetName, "A"+fmt.Sprint(footer+2), "TotalDiffLiters")
	f.SetCellValue(sheetName, "B"+fmt.Sprint(footer+2), report.Totals.DiffLiters.String())

	return f, nil
}

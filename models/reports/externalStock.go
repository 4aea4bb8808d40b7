package reports

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"bitbucket.org/mmdatafocus/stockcount_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// The gestionale export has no fixed layout: header row position, wording
// and column order vary by tool version, and one sheet may contain several
// report sections back-to-back, each with its own header line. Header
// discovery is therefore a scoring problem over two column roles, with the
// vocabularies kept as data so new labels can be added without touching
// control flow.

// codeHeaderScores ranks labels that announce the item-code column.
// Higher score = more specific label.
var codeHeaderScores = map[string]int{
	"CODICE ARTICOLO": 100,
	"COD. ARTICOLO":   95,
	"CODICE":          90,
	"COD ARTICOLO":    90,
	"ARTICOLO":        70,
	"COD.":            65,
	"COD":             60,
	"CODE":            60,
	"ITEM CODE":       60,
	"SKU":             55,
}

// qtyHeaderScores ranks labels that announce the on-hand-quantity column,
// biased toward the most specific stock label with graduated fallbacks for
// looser synonyms.
var qtyHeaderScores = map[string]int{
	"QTA GIACENZA 1":  100,
	"QTA GIACENZA":    95,
	"GIACENZA 1":      90,
	"GIACENZA":        85,
	"ESISTENZA":       80,
	"QTA DISPONIBILE": 75,
	"DISPONIBILITA":   70,
	"QUANTITA":        65,
	"QTA":             60,
	"QTY":             55,
	"STOCK":           50,
}

const (
	headerSampleLimit = 8
	minItemCodeLen    = 2
	maxItemCodeLen    = 20
)

// ParseExternalStock extracts a code -> on-hand-quantity map from a raw
// gestionale spreadsheet. The same code appearing in several header-delimited
// sections sums up, it never overwrites. When nothing could be extracted the
// error carries a sample of the header text actually observed so an operator
// can diagnose the input format.
func ParseExternalStock(fileBytes []byte) (map[string]decimal.Decimal, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	result := make(map[string]decimal.Decimal)
	sampleHeaders := make([]string, 0, headerSampleLimit)

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		parseSheet(rows, result, &sampleHeaders)
	}

	if len(result) == 0 {
		if len(sampleHeaders) == 0 {
			return nil, fmt.Errorf("no stock data found: the file contains no readable rows")
		}
		return nil, fmt.Errorf("no stock data found: could not locate code/quantity columns; sample rows seen: %s",
			strings.Join(sampleHeaders, " | "))
	}
	return result, nil
}

// parseSheet walks one cell grid top to bottom. Data rows run from the row
// after a qualifying header until end-of-sheet or the next qualifying header
// block, which is what terminates a section safely in concatenated exports.
func parseSheet(rows [][]string, result map[string]decimal.Decimal, sampleHeaders *[]string) {
	codeCol, qtyCol := -1, -1
	inSection := false

	for i := 0; i < len(rows); i++ {
		row := rows[i]
		var next []string
		if i+1 < len(rows) {
			next = rows[i+1]
		}

		if c, q, ok := findHeaderColumns(row, next); ok {
			codeCol, qtyCol = c, q
			inSection = true
			// A two-row wrapped header consumes the continuation row too.
			if _, _, single := findHeaderColumns(row, nil); !single {
				i++
			}
			continue
		}

		if !inSection {
			if text := rowText(row); text != "" && len(*sampleHeaders) < headerSampleLimit {
				*sampleHeaders = append(*sampleHeaders, text)
			}
			continue
		}

		code := NormalizeItemCode(cellAt(row, codeCol))
		if !looksLikeItemCode(code) {
			continue
		}
		qty := utils.ParseLocaleDecimal(cellAt(row, qtyCol))
		result[code] = result[code].Add(qty)
	}
}

// findHeaderColumns scores every cell of a candidate row for both roles. If
// the row alone does not qualify and a next row exists, each cell is paired
// with the cell below it, supporting headers wrapped across two physical
// rows ("QTA" over "GIACENZA 1" scores like "QTA GIACENZA 1"). A row
// qualifies only when both roles land on different column indices and the
// row is not a section banner.
func findHeaderColumns(row []string, next []string) (int, int, bool) {
	if looksLikeTitleRow(row) {
		return -1, -1, false
	}

	codeCol, qtyCol := scoreHeaderRow(func(col int) string {
		return cellAt(row, col)
	}, len(row))
	if codeCol >= 0 && qtyCol >= 0 && codeCol != qtyCol {
		return codeCol, qtyCol, true
	}

	if next == nil {
		return -1, -1, false
	}
	width := len(row)
	if len(next) > width {
		width = len(next)
	}
	codeCol, qtyCol = scoreHeaderRow(func(col int) string {
		return strings.TrimSpace(cellAt(row, col) + " " + cellAt(next, col))
	}, width)
	if codeCol >= 0 && qtyCol >= 0 && codeCol != qtyCol {
		return codeCol, qtyCol, true
	}
	return -1, -1, false
}

func scoreHeaderRow(cell func(int) string, width int) (int, int) {
	codeCol, qtyCol := -1, -1
	bestCode, bestQty := 0, 0
	for col := 0; col < width; col++ {
		text := normalizeHeaderText(cell(col))
		if text == "" {
			continue
		}
		if s := scoreAgainst(text, codeHeaderScores); s > bestCode {
			bestCode, codeCol = s, col
		}
		if s := scoreAgainst(text, qtyHeaderScores); s > bestQty {
			bestQty, qtyCol = s, col
		}
	}
	return codeCol, qtyCol
}

// scoreAgainst gives the full vocabulary score on an exact match and a
// slightly discounted one when the label is merely contained in the cell
// (exports often decorate headers with units or footnote marks).
func scoreAgainst(text string, vocabulary map[string]int) int {
	best := 0
	for label, score := range vocabulary {
		if text == label && score > best {
			best = score
			continue
		}
		if strings.Contains(text, label) && score-10 > best {
			best = score - 10
		}
	}
	return best
}

// looksLikeTitleRow guards against section banners: rows that are mostly
// empty or carry one long free-text cell must not be mistaken for headers.
func looksLikeTitleRow(row []string) bool {
	nonEmpty := 0
	longest := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) == "" {
			continue
		}
		nonEmpty++
		if len(cell) > longest {
			longest = len(cell)
		}
	}
	if nonEmpty == 0 {
		return true
	}
	return nonEmpty == 1 && longest > 25
}

// NormalizeItemCode trims, uppercases and strips internal whitespace so the
// internal and external sides key by the same spelling.
func NormalizeItemCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(code)) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// summaryRowLabels lists the words totals and footer rows put in the code
// column. Kept as data next to the header vocabularies.
var summaryRowLabels = map[string]bool{
	"TOT":       true,
	"TOTALE":    true,
	"TOTALI":    true,
	"TOTAL":     true,
	"SUBTOTALE": true,
	"SUBTOTAL":  true,
}

// looksLikeItemCode filters out totals and label rows: a plausible item code
// is alphanumeric after normalization, within length bounds, and is not one
// of the known summary-row words. All-letter codes are legitimate.
func looksLikeItemCode(code string) bool {
	if len(code) < minItemCodeLen || len(code) > maxItemCodeLen {
		return false
	}
	if summaryRowLabels[code] {
		return false
	}
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func normalizeHeaderText(text string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(text))), " ")
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func rowText(row []string) string {
	fields := make([]string, 0, len(row))
	for _, cell := range row {
		if s := strings.TrimSpace(cell); s != "" {
			fields = append(fields, s)
		}
	}
	return strings.Join(fields, " ")
}

package reports

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func xlsxBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", name, cell); err != nil {
				t.Fatal(err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseExternalStock_SingleSection(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"MAGAZZINO CENTRALE - GIACENZE AL 31/12"},
		{"CODICE", "DESCRIZIONE", "GIACENZA"},
		{"AB12", "Prodotto uno", "5"},
		{"CD34", "Prodotto due", "1.234,5"},
		{"BIANCO", "Prodotto tre", "2"},
		{"TOTALE", "", "1241,5"},
	})
	result, err := ParseExternalStock(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("got %d codes, want 3 (the TOTALE row must be rejected): %v", len(result), result)
	}
	if !result["AB12"].Equal(decimal.NewFromInt(5)) {
		t.Fatalf("AB12: got %s", result["AB12"])
	}
	if !result["CD34"].Equal(decimal.RequireFromString("1234.5")) {
		t.Fatalf("locale number parsing failed for CD34: got %s", result["CD34"])
	}
	if !result["BIANCO"].Equal(decimal.NewFromInt(2)) {
		t.Fatalf("all-letter code must be accepted: got %s", result["BIANCO"])
	}
}

// A header wrapped across two physical rows must parse exactly like the
// merged single-cell spelling of the same header.
func TestParseExternalStock_TwoRowHeaderPair(t *testing.T) {
	dataRows := [][]interface{}{
		{"AB12", "3"},
		{"CD34", "7"},
	}
	mergedSheet := append([][]interface{}{{"CODICE", "QTA GIACENZA 1"}}, dataRows...)
	wrappedSheet := append([][]interface{}{
		{"CODICE", "QTA"},
		{"", "GIACENZA 1"},
	}, dataRows...)

	fromMerged, err := ParseExternalStock(xlsxBytes(t, mergedSheet))
	if err != nil {
		t.Fatalf("merged header: %v", err)
	}
	fromWrapped, err := ParseExternalStock(xlsxBytes(t, wrappedSheet))
	if err != nil {
		t.Fatalf("wrapped header: %v", err)
	}
	if len(fromMerged) != len(fromWrapped) {
		t.Fatalf("merged and wrapped headers disagree: %v vs %v", fromMerged, fromWrapped)
	}
	for code, qty := range fromMerged {
		if !fromWrapped[code].Equal(qty) {
			t.Fatalf("code %s: merged %s, wrapped %s", code, qty, fromWrapped[code])
		}
	}
}

// Export tools emit several report sections back-to-back, each with its own
// header line; a code repeated across sections sums up.
func TestParseExternalStock_MultiSectionSummation(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"CODICE", "GIACENZA"},
		{"AB12", "5"},
		{"CD34", "2"},
		{"CODICE", "GIACENZA"},
		{"AB12", "7"},
	})
	result, err := ParseExternalStock(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result["AB12"].Equal(decimal.NewFromInt(12)) {
		t.Fatalf("AB12 must sum across sections: got %s, want 12", result["AB12"])
	}
	if !result["CD34"].Equal(decimal.NewFromInt(2)) {
		t.Fatalf("CD34: got %s", result["CD34"])
	}
}

func TestParseExternalStock_NoHeaderFound(t *testing.T) {
	data := xlsxBytes(t, [][]interface{}{
		{"Relazione annuale"},
		{"Qualcosa", "di", "irrilevante"},
	})
	_, err := ParseExternalStock(data)
	if err == nil {
		t.Fatal("expected a descriptive error")
	}
	if !strings.Contains(err.Error(), "sample rows seen") {
		t.Fatalf("error should carry observed rows for diagnosis: %v", err)
	}
	if !strings.Contains(err.Error(), "Relazione annuale") {
		t.Fatalf("error should include the sampled text: %v", err)
	}
}

func TestNormalizeItemCode(t *testing.T) {
	if got := NormalizeItemCode("  ab 12\t"); got != "AB12" {
		t.Fatalf("got %q", got)
	}
}

func TestLooksLikeItemCode(t *testing.T) {
	cases := map[string]bool{
		"AB12":                    true,
		"1234567":                 true,
		"BIANCO":                  true,  // all-letter codes are legitimate
		"TOTALE":                  false, // summary-row label
		"SUBTOTALE":               false, // summary-row label
		"A":                       false, // too short
		"AB-12":                   false, // non-alphanumeric
		"X1234567890123456789012": false, // too long
	}
	for code, want := range cases {
		if got := looksLikeItemCode(code); got != want {
			t.Errorf("%q: got %v want %v", code, got, want)
		}
	}
}

package utils

import "testing"

func TestParseLocaleDecimal(t *testing.T) {
	cases := map[string]string{
		"5":        "5",
		"1.234,5":  "1234.5",
		"1234.50":  "1234.5",
		"  12,5  ": "12.5",
		"":         "0",
		"n/a":      "0",
	}
	for input, want := range cases {
		if got := ParseLocaleDecimal(input); got.String() != want {
			t.Errorf("%q: got %s want %s", input, got, want)
		}
	}
}

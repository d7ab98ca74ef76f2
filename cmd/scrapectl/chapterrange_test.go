package main

import "testing"

func TestParseChapterRange(t *testing.T) {
	r, err := parseChapterRange("1, 2,5-7,10.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	for _, number := range []float64{1, 2, 5, 6, 6.5, 7, 10.5} {
		if !r.Contains(number) {
			t.Fatalf("expected %v to be in range", number)
		}
	}
	for _, number := range []float64{3, 4, 7.5, 8, 10, 11} {
		if r.Contains(number) {
			t.Fatalf("expected %v to be outside range", number)
		}
	}
}

func TestParseChapterRangeRejectsInvalidInput(t *testing.T) {
	cases := []string{"", " , ", "abc", "0", "-3", "7-5", "1-x"}
	for _, raw := range cases {
		if _, err := parseChapterRange(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

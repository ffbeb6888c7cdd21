package rating

import "testing"

func TestBaseRate_Table(t *testing.T) {
	expected := map[int]int64{
		1: 16000, 2: 20500, 3: 25000, 4: 29500, 5: 34000,
		6: 38500, 7: 43000, 8: 47500, 9: 52000, 10: 56500,
	}
	for level, want := range expected {
		if got := BaseRate(level); got != want {
			t.Fatalf("BaseRate(%d) = %d, want %d", level, got, want)
		}
	}
}

func TestBaseRate_OutOfRangeIsZero(t *testing.T) {
	for _, level := range []int{0, -1, 11, 100} {
		if got := BaseRate(level); got != 0 {
			t.Fatalf("BaseRate(%d) = %d, want 0", level, got)
		}
	}
}

func TestLiabilityRate_UnknownIsZero(t *testing.T) {
	if got := LiabilityRate(""); got != 0 {
		t.Fatalf("LiabilityRate(\"\") = %d, want 0", got)
	}
	if got := LiabilityRate("option99"); got != 0 {
		t.Fatalf("LiabilityRate(option99) = %d, want 0", got)
	}
}

func TestClassifyGuestRange_Bands(t *testing.T) {
	cases := []struct {
		guests int
		band   GuestBand
		ok     bool
	}{
		{1, 50, true},
		{50, 50, true},
		{51, 100, true},
		{120, 150, true},
		{399, 400, true},
		{400, 400, true},
		{401, 0, false},
		{1000, 0, false},
		{0, 0, false},
		{-5, 0, false},
	}
	for _, tc := range cases {
		band, ok := ClassifyGuestRange(tc.guests)
		if band != tc.band || ok != tc.ok {
			t.Fatalf("ClassifyGuestRange(%d) = (%d, %v), want (%d, %v)", tc.guests, band, ok, tc.band, tc.ok)
		}
	}
}

func TestClassifyGuestRange_Monotonic(t *testing.T) {
	prev := GuestBand(0)
	for g := 1; g <= 400; g++ {
		band, ok := ClassifyGuestRange(g)
		if !ok {
			t.Fatalf("ClassifyGuestRange(%d) unexpectedly out of range", g)
		}
		if band < prev {
			t.Fatalf("band decreased at %d guests: %d < %d", g, band, prev)
		}
		prev = band
	}
}

func TestLiquorRate_NotSelectedIsZero(t *testing.T) {
	if got := LiquorRate(false, 120, "option2"); got != 0 {
		t.Fatalf("LiquorRate(unselected) = %d, want 0", got)
	}
}

func TestLiquorRate_AboveTopBandIsZero(t *testing.T) {
	if got := LiquorRate(true, 500, "option2"); got != 0 {
		t.Fatalf("LiquorRate(500 guests) = %d, want 0", got)
	}
}

func TestLiquorRate_NewTierUsesHigherTable(t *testing.T) {
	standard := LiquorRate(true, 120, "option2")
	newTier := LiquorRate(true, 120, "option5")
	if standard != 8500 {
		t.Fatalf("standard liquor rate = %d, want 8500", standard)
	}
	if newTier <= standard {
		t.Fatalf("new-tier liquor rate %d not above standard %d", newTier, standard)
	}
}

// Worked example: level 3 + option2 + liquor liability for 120 guests.
func TestCalculate_WorkedExample(t *testing.T) {
	p := Calculate(3, "option2", true, 120)
	if p.BaseCents != 25000 {
		t.Fatalf("base = %d, want 25000", p.BaseCents)
	}
	if p.LiabilityCents != 21000 {
		t.Fatalf("liability = %d, want 21000", p.LiabilityCents)
	}
	if p.LiquorCents != 8500 {
		t.Fatalf("liquor = %d, want 8500", p.LiquorCents)
	}
	if p.TotalCents != 54500 {
		t.Fatalf("total = %d, want 54500", p.TotalCents)
	}
}

func TestCalculate_TotalIsAlwaysSum(t *testing.T) {
	options := []string{"", "option1", "option2", "option3", "option4", "option5", "option6", "bogus"}
	for level := 0; level <= 11; level++ {
		for _, opt := range options {
			for _, guests := range []int{0, 40, 120, 400, 500} {
				for _, liquor := range []bool{true, false} {
					p := Calculate(level, opt, liquor, guests)
					if p.TotalCents != p.BaseCents+p.LiabilityCents+p.LiquorCents {
						t.Fatalf("total %d != %d+%d+%d (level=%d opt=%q liquor=%v guests=%d)",
							p.TotalCents, p.BaseCents, p.LiabilityCents, p.LiquorCents, level, opt, liquor, guests)
					}
				}
			}
		}
	}
}

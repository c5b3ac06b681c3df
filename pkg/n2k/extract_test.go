package n2k

import "testing"

func TestExtractSrcPgnAndDescription(t *testing.T) {
	line := `{"timestamp":"2024-01-01T00:00:00Z","prio":3,"src":"35","dst":"255","pgn":"128267","description":"Water Depth","fields":{"Depth":3.1}}`

	f, ok := Extract(line)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if f.Src != 35 {
		t.Fatalf("src = %d, want 35", f.Src)
	}
	if f.PRN != 128267 {
		t.Fatalf("prn = %d, want 128267", f.PRN)
	}
	if f.Description != "Water Depth" {
		t.Fatalf("description = %q, want %q", f.Description, "Water Depth")
	}
	if f.Key != KeyNone || f.Key2 != "" {
		t.Fatalf("expected no secondary key, got %v %q", f.Key, f.Key2)
	}
}

func TestExtractSecondaryKeyUserID(t *testing.T) {
	line := `{"timestamp":"t","src":"1","dst":"255","pgn":"129038","description":"AIS Class A Position Report","fields":{"User ID":"366123","Longitude":1}}`
	f, ok := Extract(line)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if f.Key != KeyUserID || f.Key2 != "366123" {
		t.Fatalf("got key=%v key2=%q", f.Key, f.Key2)
	}
}

func TestExtractSecondaryKeyInstance(t *testing.T) {
	line := `{"timestamp":"t","src":"9","dst":"255","pgn":"127489","description":"Engine Parameters, Dynamic","fields":{"Instance":"0","Oil pressure":400000}}`
	f, ok := Extract(line)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if f.Key != KeyInstance || f.Key2 != "0" {
		t.Fatalf("got key=%v key2=%q", f.Key, f.Key2)
	}
}

func TestExtractRejectsZeroSrcOrPgn(t *testing.T) {
	cases := []string{
		`{"timestamp":"t","src":"0","dst":"255","pgn":"128267","description":"x","fields":{}}`,
		`{"timestamp":"t","src":"35","dst":"255","pgn":"0","description":"x","fields":{}}`,
	}
	for _, line := range cases {
		if _, ok := Extract(line); ok {
			t.Fatalf("expected rejection for %q", line)
		}
	}
}

func TestExtractRejectsOutOfRangePGN(t *testing.T) {
	line := `{"timestamp":"t","src":"1","dst":"255","pgn":"99","description":"x","fields":{}}`
	if _, ok := Extract(line); ok {
		t.Fatalf("expected rejection for out-of-range pgn")
	}
}

func TestExtractAcceptsActisenseRange(t *testing.T) {
	line := `{"timestamp":"t","src":"1","dst":"255","pgn":"4194305","description":"Actisense BEM","fields":{}}`
	f, ok := Extract(line)
	if !ok {
		t.Fatalf("expected Actisense PGN to be accepted")
	}
	if f.PRN != 0x400001 {
		t.Fatalf("prn = %d", f.PRN)
	}
}

func TestValidPGNRanges(t *testing.T) {
	cases := []struct {
		prn  int
		want bool
	}{
		{59390, false},
		{59391, true},
		{131000, true},
		{131001, false},
		{ActisenseBEM - 1, false},
		{ActisenseBEM, true},
		{ActisenseBEM + ActisenseRng - 1, true},
		{ActisenseBEM + ActisenseRng, false},
	}
	for _, c := range cases {
		if got := ValidPGN(c.prn); got != c.want {
			t.Errorf("ValidPGN(%d) = %v, want %v", c.prn, got, c.want)
		}
	}
}

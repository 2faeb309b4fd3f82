package units

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		kind Kind
	}{
		{"230mm", 0.23, Length},
		{"230 mm", 0.23, Length},
		{"23 cm", 0.23, Length},
		{"3m", 3, Length},
		{"36 in", 0.9144, Length},
		{"36 inches", 0.9144, Length},
		{"10 ft", 3.048, Length},
		{"9.0 m²", 9, Area},
		{"5.7 sq ft", 5.7 * 0.09290304, Area},
		{"100 ft2", 9.290304, Area},
		{"250 kPa", 250000, Pressure},
		{"1 psi", 6894.757293168361, Pressure},
		{"20 A", 20, Current},
		{"500 lux", 500, Illuminance},
		{"2 hours", 7200, Time},
		{"90 minutes", 5400, Time},
		{"1-hour", 3600, Time},
		{"  .5 m ", 0.5, Length},
	}
	for _, tt := range tests {
		got, kind, err := Normalize(tt.raw)
		if err != nil {
			t.Errorf("Normalize(%q): %v", tt.raw, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
		}
		if kind != tt.kind {
			t.Errorf("Normalize(%q) kind = %s, want %s", tt.raw, kind, tt.kind)
		}
	}
}

func TestNormalize_Unrecognized(t *testing.T) {
	for _, raw := range []string{"36 furlongs", "12 parsecs", "3"} {
		_, _, err := Normalize(raw)
		if !errors.Is(err, ErrUnrecognizedUnit) {
			t.Errorf("Normalize(%q) err = %v, want ErrUnrecognizedUnit", raw, err)
		}
		var ue *UnitError
		if !errors.As(err, &ue) {
			t.Errorf("Normalize(%q) err is not a *UnitError", raw)
		}
	}

	_, _, err := Normalize("brick")
	if !errors.Is(err, ErrNotQuantity) {
		t.Errorf("Normalize(brick) err = %v, want ErrNotQuantity", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, sym := range Symbols() {
		for _, x := range []float64{0.001, 1, 3, 36, 123.45, 98765.4321} {
			raw := formatNumber(x) + " " + sym
			si, _, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", raw, err)
			}
			back, err := Convert(si, sym)
			if err != nil {
				t.Fatalf("Convert(%v, %q): %v", si, sym, err)
			}
			if math.Abs(back-x) > 1e-9*math.Max(1, math.Abs(x)) {
				t.Errorf("round trip %q = %v, want %v", raw, back, x)
			}
		}
	}
}

func TestDenormalize(t *testing.T) {
	tests := []struct {
		si     float64
		kind   Kind
		system System
		want   string
	}{
		{0.23, Length, Metric, "230 mm"},
		{3, Length, Metric, "3 m"},
		{0.9144, Length, Imperial, "3 ft"},
		{0.2032, Length, Imperial, "8 in"},
		{9, Area, Metric, "9 m²"},
		{9.290304, Area, Imperial, "100 ft²"},
		{250000, Pressure, Metric, "250 kPa"},
		{6894.757293168361, Pressure, Imperial, "1 psi"},
		{20, Current, Imperial, "20 A"},
		{500, Illuminance, Metric, "500 lux"},
		{7200, Time, Metric, "2 h"},
		{5400, Time, Imperial, "1.5 h"},
		{1800, Time, Metric, "30 min"},
		{42, KindUnknown, Metric, "42"},
	}
	for _, tt := range tests {
		got := Denormalize(tt.si, tt.kind, tt.system)
		if got != tt.want {
			t.Errorf("Denormalize(%v, %s, %s) = %q, want %q", tt.si, tt.kind, tt.system, got, tt.want)
		}
	}
}

func TestQuantityOriginal(t *testing.T) {
	q, err := Parse("36 inches")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.Unit != "in" {
		t.Errorf("Unit = %q, want in", q.Unit)
	}
	if got := q.Original(); got != "36 in" {
		t.Errorf("Original() = %q, want 36 in", got)
	}
	if _, err := q.In("kPa"); err == nil {
		t.Error("In(kPa) on a length should fail")
	}
}

func TestParseSystem(t *testing.T) {
	tests := []struct {
		in   string
		want System
	}{
		{"imperial", Imperial},
		{"US", Imperial},
		{"metric", Metric},
		{"", Metric},
		{"whatever", Metric},
	}
	for _, tt := range tests {
		if got := ParseSystem(tt.in); got != tt.want {
			t.Errorf("ParseSystem(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	text := "Egress windows need 5.7 sq ft of clear opening, a sill no higher than 44 inches and 20 furlongs of nothing."
	got := Extract(text)
	if len(got) != 2 {
		t.Fatalf("Extract found %d mentions, want 2: %+v", len(got), got)
	}
	if got[0].Quantity.Kind != Area || got[0].Text != "5.7 sq ft" {
		t.Errorf("first mention = %+v, want 5.7 sq ft area", got[0])
	}
	if got[1].Quantity.Kind != Length || math.Abs(got[1].Quantity.Value-44*0.0254) > 1e-12 {
		t.Errorf("second mention = %+v, want 44 in length", got[1])
	}
}

func TestExtract_TrailingPunctuation(t *testing.T) {
	got := Extract("External walls shall be at least 0.23m.")
	if len(got) != 1 {
		t.Fatalf("Extract found %d mentions, want 1", len(got))
	}
	if got[0].Quantity.Value != 0.23 || got[0].Text != "0.23m" {
		t.Errorf("mention = %+v, want 0.23m", got[0])
	}
}

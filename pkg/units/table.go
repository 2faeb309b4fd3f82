package units

import "strings"

type unitDef struct {
	symbol string
	kind   Kind
	factor float64 // SI base units per one of this unit
}

const (
	inch       = 0.0254
	foot       = 0.3048
	squareFoot = foot * foot
	psi        = 6894.757293168361 // 1 lbf/in²
	footCandle = 1 / squareFoot    // 1 lm/ft²
)

var canonical = []unitDef{
	{"mm", Length, 0.001},
	{"cm", Length, 0.01},
	{"m", Length, 1},
	{"in", Length, inch},
	{"ft", Length, foot},
	{"m²", Area, 1},
	{"ft²", Area, squareFoot},
	{"Pa", Pressure, 1},
	{"kPa", Pressure, 1000},
	{"MPa", Pressure, 1e6},
	{"psi", Pressure, psi},
	{"A", Current, 1},
	{"lux", Illuminance, 1},
	{"fc", Illuminance, footCandle},
	{"s", Time, 1},
	{"min", Time, 60},
	{"h", Time, 3600},
}

// spellings maps every accepted (folded) suffix to a canonical symbol.
var spellings = map[string]string{
	"mm": "mm", "millimeter": "mm", "millimeters": "mm", "millimetre": "mm", "millimetres": "mm",
	"cm": "cm", "centimeter": "cm", "centimeters": "cm", "centimetre": "cm", "centimetres": "cm",
	"m": "m", "meter": "m", "meters": "m", "metre": "m", "metres": "m",
	"in": "in", "in.": "in", "inch": "in", "inches": "in", `"`: "in",
	"ft": "ft", "ft.": "ft", "foot": "ft", "feet": "ft", "'": "ft",

	"m²": "m²", "m2": "m²", "m^2": "m²", "sqm": "m²", "sq m": "m²", "square meter": "m²",
	"square meters": "m²", "square metre": "m²", "square metres": "m²",
	"ft²": "ft²", "ft2": "ft²", "ft^2": "ft²", "sqft": "ft²", "sq ft": "ft²", "sq. ft": "ft²",
	"sq. ft.": "ft²", "square foot": "ft²", "square feet": "ft²",

	"pa": "Pa", "pascal": "Pa", "pascals": "Pa",
	"kpa": "kPa", "kilopascal": "kPa", "kilopascals": "kPa",
	"mpa": "MPa", "megapascal": "MPa", "megapascals": "MPa",
	"psi": "psi",

	"a": "A", "amp": "A", "amps": "A", "ampere": "A", "amperes": "A",

	"lux": "lux", "lx": "lux",
	"fc": "fc", "footcandle": "fc", "footcandles": "fc", "foot-candle": "fc", "foot-candles": "fc",

	"s": "s", "sec": "s", "secs": "s", "second": "s", "seconds": "s",
	"min": "min", "mins": "min", "minute": "min", "minutes": "min",
	"h": "h", "hr": "h", "hrs": "h", "hour": "h", "hours": "h",
}

var bySymbol = func() map[string]unitDef {
	m := make(map[string]unitDef, len(canonical))
	for _, d := range canonical {
		m[d.symbol] = d
	}
	return m
}()

func lookup(unit string) (unitDef, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(unit)), " ")
	sym, ok := spellings[key]
	if !ok {
		return unitDef{}, false
	}
	d, ok := bySymbol[sym]
	return d, ok
}

// Symbols lists the canonical unit symbols in table order.
func Symbols() []string {
	out := make([]string, len(canonical))
	for i, d := range canonical {
		out[i] = d.symbol
	}
	return out
}

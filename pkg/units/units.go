// Package units converts dimension and quantity strings ("230mm", "9.0 m²",
// "36 in", "2 hours") to SI base values tagged with a unit kind, and back to
// display strings in the metric or imperial system.
package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the physical dimension a value measures.
type Kind int

const (
	KindUnknown Kind = iota
	Length
	Area
	Pressure
	Current
	Illuminance
	Time
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	Length:      "length",
	Area:        "area",
	Pressure:    "pressure",
	Current:     "current",
	Illuminance: "illuminance",
	Time:        "time",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind returns the kind for a name such as "length", or KindUnknown.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// System selects the display units used by Denormalize.
type System int

const (
	Metric System = iota
	Imperial
)

func (s System) String() string {
	if s == Imperial {
		return "imperial"
	}
	return "metric"
}

// ParseSystem accepts "metric", "si", "imperial", "us". Anything else is metric.
func ParseSystem(s string) System {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "imperial", "us", "us_customary":
		return Imperial
	default:
		return Metric
	}
}

var (
	ErrUnrecognizedUnit = errors.New("unrecognized unit")
	ErrNotQuantity      = errors.New("not a quantity")
)

// UnitError reports a numeric value whose suffix is not in the unit table.
type UnitError struct {
	Raw    string
	Suffix string
}

func (e *UnitError) Error() string {
	if e.Suffix == "" {
		return fmt.Sprintf("unrecognized unit: %q has no unit suffix", e.Raw)
	}
	return fmt.Sprintf("unrecognized unit %q in %q", e.Suffix, e.Raw)
}

func (e *UnitError) Unwrap() error { return ErrUnrecognizedUnit }

// Quantity is a value expressed in the SI base unit of its kind
// (m, m², Pa, A, lux, s). Unit keeps the canonical symbol it was given in.
type Quantity struct {
	Value float64 `json:"value"`
	Kind  Kind    `json:"kind"`
	Unit  string  `json:"unit"`
}

// In returns the quantity expressed in the given unit.
func (q Quantity) In(unit string) (float64, error) {
	def, ok := lookup(unit)
	if !ok {
		return 0, &UnitError{Raw: unit, Suffix: unit}
	}
	if def.kind != q.Kind {
		return 0, fmt.Errorf("convert %s to %s: kind mismatch", q.Kind, def.kind)
	}
	return q.Value / def.factor, nil
}

// Original renders the quantity in the unit it was parsed from.
func (q Quantity) Original() string {
	v, err := q.In(q.Unit)
	if err != nil {
		return formatNumber(q.Value)
	}
	return formatNumber(v) + " " + q.Unit
}

var quantityRe = regexp.MustCompile(`^\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+))\s*(.*?)\s*$`)

// Parse reads a "<number><unit>" string into a Quantity in SI base units.
func Parse(raw string) (Quantity, error) {
	m := quantityRe.FindStringSubmatch(raw)
	if m == nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrNotQuantity, raw)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrNotQuantity, raw)
	}
	suffix := strings.TrimLeft(m[2], "- ")
	def, ok := lookup(suffix)
	if !ok {
		return Quantity{}, &UnitError{Raw: raw, Suffix: suffix}
	}
	return Quantity{Value: n * def.factor, Kind: def.kind, Unit: def.symbol}, nil
}

// Normalize converts raw to its SI value and unit kind.
func Normalize(raw string) (float64, Kind, error) {
	q, err := Parse(raw)
	if err != nil {
		return 0, KindUnknown, err
	}
	return q.Value, q.Kind, nil
}

// Convert expresses an SI value in the named unit, in one hop.
func Convert(si float64, unit string) (float64, error) {
	def, ok := lookup(unit)
	if !ok {
		return 0, &UnitError{Raw: unit, Suffix: unit}
	}
	return si / def.factor, nil
}

// FromValue builds a Quantity from a number already expressed in unit.
func FromValue(v float64, unit string) (Quantity, error) {
	def, ok := lookup(unit)
	if !ok {
		return Quantity{}, &UnitError{Raw: formatNumber(v), Suffix: unit}
	}
	return Quantity{Value: v * def.factor, Kind: def.kind, Unit: def.symbol}, nil
}

// Lookup reports the canonical symbol and kind of a unit spelling.
func Lookup(unit string) (symbol string, kind Kind, ok bool) {
	def, ok := lookup(unit)
	if !ok {
		return "", KindUnknown, false
	}
	return def.symbol, def.kind, true
}

// Denormalize renders an SI value for display in the target system.
func Denormalize(si float64, kind Kind, target System) string {
	sym := displayUnit(si, kind, target)
	if sym == "" {
		return formatNumber(si)
	}
	v, _ := Convert(si, sym)
	return formatNumber(v) + " " + sym
}

func displayUnit(si float64, kind Kind, target System) string {
	abs := math.Abs(si)
	switch kind {
	case Length:
		if target == Imperial {
			if abs < 0.3048 {
				return "in"
			}
			return "ft"
		}
		if abs < 1 {
			return "mm"
		}
		return "m"
	case Area:
		if target == Imperial {
			return "ft²"
		}
		return "m²"
	case Pressure:
		if target == Imperial {
			return "psi"
		}
		return "kPa"
	case Current:
		return "A"
	case Illuminance:
		if target == Imperial {
			return "fc"
		}
		return "lux"
	case Time:
		if abs >= 3600 {
			return "h"
		}
		return "min"
	}
	return ""
}

func formatNumber(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

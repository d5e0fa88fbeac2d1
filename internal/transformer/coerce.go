// Package transformer turns decoded JSON objects into positional rows typed
// against a schema.Schema.
//
// Coercion is lenient: a value that does not fit its field becomes nil and the
// row is kept. Nothing in this package rejects a record.
//
// A per-field plan is compiled once per schema so the hot loop does no map
// lookups on types and no switch on field kinds.
package transformer

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"sparkify/internal/schema"
)

// Row is one positional record. V is aligned with the schema the row was
// built from; Line is the 1-based line number inside its source file.
type Row struct {
	Line int
	V    []any
}

type coerceFn func(v any) any

// Plan is a compiled coercion plan for one schema.
type Plan struct {
	names []string
	cols  []coerceFn
}

// Compile builds the coercion plan for s.
func Compile(s schema.Schema) *Plan {
	p := &Plan{
		names: s.Names(),
		cols:  make([]coerceFn, len(s)),
	}
	for i, f := range s {
		switch f.Type {
		case schema.Integer:
			p.cols[i] = func(v any) any {
				n, ok := toInt(v, 32)
				if !ok {
					return nil
				}
				return int32(n)
			}
		case schema.Long:
			p.cols[i] = func(v any) any {
				n, ok := toInt(v, 64)
				if !ok {
					return nil
				}
				return n
			}
		case schema.Double:
			p.cols[i] = func(v any) any {
				x, ok := toFloat(v)
				if !ok {
					return nil
				}
				return x
			}
		case schema.Decimal:
			prec, scale := f.Precision, f.Scale
			if prec <= 0 {
				prec, scale = schema.DecimalPrecision, schema.DecimalScale
			}
			p.cols[i] = func(v any) any {
				d, ok := toDecimal(v, prec, scale)
				if !ok {
					return nil
				}
				return d
			}
		case schema.Boolean:
			p.cols[i] = func(v any) any {
				b, ok := toBool(v)
				if !ok {
					return nil
				}
				return b
			}
		default:
			p.cols[i] = toText
		}
	}
	return p
}

// Width is the number of fields in the plan.
func (p *Plan) Width() int { return len(p.cols) }

// Apply types the fields of obj. Missing keys and untypeable values are nil.
// A nil obj yields an all-null row.
func (p *Plan) Apply(obj map[string]any) []any {
	out := make([]any, len(p.cols))
	if obj == nil {
		return out
	}
	for i, name := range p.names {
		raw, ok := obj[name]
		if !ok || raw == nil {
			continue
		}
		out[i] = p.cols[i](raw)
	}
	return out
}

// --- helpers ------------------------------------------------------------------

// toText renders scalars as text and nested values as their JSON encoding.
func toText(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

func numberText(v any) (string, bool) {
	switch t := v.(type) {
	case json.Number:
		return t.String(), true
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// toInt parses integral values. "42.0" is accepted, "42.5" is not.
func toInt(v any, bits int) (int64, bool) {
	s, ok := numberText(v)
	if !ok {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, bits); err == nil {
		return i, true
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		lim := math.Ldexp(1, bits-1)
		if f < -lim || f >= lim {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	s, ok := numberText(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// toDecimal rounds half-up to scale and rejects values wider than precision.
func toDecimal(v any, precision, scale int) (decimal.Decimal, bool) {
	s, ok := numberText(v)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.IsZero() {
		return decimal.New(0, -int32(scale)), true
	}
	// Magnitude is decided on coefficient digits and exponent so a token like
	// 1e999999999 is rejected without materializing it.
	mag := int64(len(new(big.Int).Abs(d.Coefficient()).String())) + int64(d.Exponent())
	if mag > int64(precision-scale) {
		return decimal.Decimal{}, false
	}
	if mag < -int64(scale) {
		return decimal.New(0, -int32(scale)), true
	}
	d = d.Round(int32(scale))
	intDigits := len(d.Abs().Truncate(0).String())
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		intDigits = 0
	}
	if intDigits > precision-scale {
		return decimal.Decimal{}, false
	}
	return d, true
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

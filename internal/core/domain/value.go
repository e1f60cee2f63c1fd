package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ValueKind selects how a record value is bound as a statement parameter.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "text"
	}
}

// Value is a record field tagged with its parameter kind.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
}

func NullValue() Value           { return Value{Kind: KindNull} }
func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func TextValue(v string) Value   { return Value{Kind: KindText, Text: v} }

// NumericTextValue is a numeric string. It is tagged as a float but binds as
// the caller's text, so text columns keep leading zeros and every digit.
func NumericTextValue(s string, f float64) Value {
	return Value{Kind: KindFloat, Float: f, Text: s}
}

// Arg returns the driver argument for the value.
func (v Value) Arg() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		if v.Text != "" {
			return v.Text
		}
		return v.Float
	case KindText:
		return v.Text
	default:
		return nil
	}
}

// ClassifyValue tags a decoded JSON value. Numbers are expected as
// json.Number (decoder with UseNumber) but native Go numbers are accepted too.
// Numeric strings are tagged as floats and still bind as the original text.
// Booleans bind as "1" and "0"; false is "0" rather than an empty string so
// integer and flag columns accept it. Anything unrecognized is bound as text.
func ClassifyValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return NullValue()
	case json.Number:
		return classifyNumber(v)
	case int:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case string:
		if d, ok := parseNumeric(v); ok {
			return NumericTextValue(v, d.InexactFloat64())
		}
		return TextValue(v)
	case bool:
		if v {
			return TextValue("1")
		}
		return TextValue("0")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return TextValue("")
		}
		return TextValue(string(b))
	}
}

func classifyNumber(n json.Number) Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return IntValue(i)
		}
	}
	if f, err := n.Float64(); err == nil {
		return FloatValue(f)
	}
	return TextValue(s)
}

func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

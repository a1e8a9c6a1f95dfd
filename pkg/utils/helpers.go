package utils

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

func ParseValue(s string) interface{} {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Numeric converts supported types to float64. Numeric strings are accepted;
// ok is false for anything else, including NaN and Inf.
func Numeric(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float64:
		f = val
	case float32:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, ok := ParseValue(val).(float64)
		if !ok {
			i, isInt := ParseValue(val).(int)
			if !isInt {
				return 0, false
			}
			parsed = float64(i)
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() < reflect.Int || rv.Kind() > reflect.Float64 {
			return 0, false
		}
		f = rv.Convert(reflect.TypeOf(float64(0))).Float()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Round rounds to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

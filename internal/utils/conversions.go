package utils

import (
	"encoding/json"
	"math"
	"strconv"
)

func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ToInt64 converts a decoded JSON claim (number, json.Number or numeric string) to an int64.
// Floats that are not finite or do not fit in an int64 are rejected.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return floatToInt64(n)
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt64(f)
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return floatToInt64(f)
		}
	}
	return 0, false
}

// -2^63 is exact as a float64; 2^63 is the first value past the top.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

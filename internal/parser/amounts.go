package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// leadingFloat matches the longest numeric prefix, so trailing junk such as the
// closing half of an accounting "(12.00)" is ignored.
var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount converts a cell or field value to a non-negative magnitude.
// Numbers are returned as their absolute value. Strings have currency symbols,
// thousands separators and whitespace removed, accounting parentheses turned
// into minus signs, and their leading number read. Anything else, or a string
// with no numeric prefix, reports false. The sign is always discarded.
func ParseAmount(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return finiteAbs(v)
	case float32:
		return finiteAbs(float64(v))
	case int:
		return finiteAbs(float64(v))
	case int64:
		return finiteAbs(float64(v))
	case int32:
		return finiteAbs(float64(v))
	case json.Number:
		return parseAmountString(v.String())
	case string:
		return parseAmountString(v)
	default:
		return 0, false
	}
}

func parseAmountString(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '$' || r == ',' || unicode.IsSpace(r):
			return -1
		case r == '(' || r == ')':
			return '-'
		}
		return r
	}, s)

	num := leadingFloat.FindString(cleaned)
	if num == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return finiteAbs(f)
}

// ParseFloatPrefix reads the signed number at the start of s after leading
// whitespace, ignoring anything that follows it. No symbols are stripped.
func ParseFloatPrefix(s string) (float64, bool) {
	num := leadingFloat.FindString(strings.TrimLeftFunc(s, unicode.IsSpace))
	if num == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func finiteAbs(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Abs(f), true
}

// FormatRaw renders a cell value the way it appears in row error messages.
func FormatRaw(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Truthy reports whether a decoded value would count as present: nil, empty
// strings, zero, false and NaN do not.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

var dynamicNumber = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// TypeCell gives a tabular cell the dynamic type a spreadsheet would: empty
// cells are nil, true/false are booleans, plain numbers are float64 and
// everything else stays a string.
func TypeCell(s string) any {
	switch s {
	case "":
		return nil
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}
	if dynamicNumber.MatchString(s) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return s
}

package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	usDatePattern    = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})$`)
	shortDatePattern = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})$`)
)

// fallbackLayouts are tried after the numeric patterns, in order.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"2006/1/2",
	"2006/1/2 15:04:05",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Mon, 2 Jan 2006",
	"Mon Jan 2 2006",
	"Monday, January 2, 2006",
}

// twoDigitYearPivot: two-digit years above it are 19xx, the rest 20xx.
const twoDigitYearPivot = 50

// ParseDate normalizes a textual date to YYYY-MM-DD. Patterns are tried in a
// fixed order: ISO prefix, M/D/YYYY, M/D/YY, then common textual layouts.
// Empty input and unparseable input both report false.
func ParseDate(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	if m := isoDatePattern.FindStringSubmatch(value); m != nil {
		return formatYMD(m[1], m[2], m[3]), true
	}

	if m := usDatePattern.FindStringSubmatch(value); m != nil {
		return formatYMD(m[3], m[1], m[2]), true
	}

	if m := shortDatePattern.FindStringSubmatch(value); m != nil {
		yy, _ := strconv.Atoi(m[3])
		century := "20"
		if yy > twoDigitYearPivot {
			century = "19"
		}
		return formatYMD(century+m[3], m[1], m[2]), true
	}

	trimmed := strings.TrimSpace(value)
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format("2006-01-02"), true
		}
	}

	return "", false
}

// ParseCompactDate reads the first eight characters of a YYYYMMDD[HHMMSS...]
// stamp positionally, as bank exports write them.
func ParseCompactDate(value string) (string, bool) {
	if len(value) < 8 {
		return "", false
	}
	return fmt.Sprintf("%s-%s-%s", value[0:4], value[4:6], value[6:8]), true
}

func formatYMD(y, m, d string) string {
	return fmt.Sprintf("%s-%s-%s", y, padTwo(m), padTwo(d))
}

func padTwo(s string) string {
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

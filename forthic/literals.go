package forthic

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LiteralHandler tries to parse a string as a literal value
// Returns value and true if successful, nil and false otherwise
type LiteralHandler func(string) (interface{}, bool)

// ============================================================================
// Boolean Literals
// ============================================================================

// ToBool parses boolean literals: TRUE, FALSE
func ToBool(str string) (interface{}, bool) {
	if str == "TRUE" {
		return true, true
	}
	if str == "FALSE" {
		return false, true
	}
	return nil, false
}

// ============================================================================
// Numeric Literals
// ============================================================================

// ToFloat parses float literals: 3.14, -2.5, 0.0
// Must contain a decimal point
func ToFloat(str string) (interface{}, bool) {
	if !strings.Contains(str, ".") {
		return nil, false
	}
	result, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return nil, false
	}
	return result, true
}

// ToInt parses integer literals: 42, -10, 0
// Must not contain a decimal point
func ToInt(str string) (interface{}, bool) {
	if strings.Contains(str, ".") {
		return nil, false
	}
	result, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, false
	}
	// Verify it's actually an integer string (not "42abc")
	if strconv.FormatInt(result, 10) != str {
		return nil, false
	}
	return result, true
}

// ============================================================================
// Time Literals
// ============================================================================

var timeLiteralRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*(AM|PM))?$`)

// ToTime parses time literals: 9:00, 22:15, 11:30PM
// Times are represented as time.Time values with year 0, month 1, day 1.
// A UTC location means the time is naive; <TZ! attaches a real location.
func ToTime(str string) (interface{}, bool) {
	match := timeLiteralRe.FindStringSubmatch(str)
	if match == nil {
		return nil, false
	}

	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(match[2])
	if err != nil {
		return nil, false
	}
	meridiem := match[3]

	// AM/PM normalize an hour given in either 12- or 24-hour form
	if meridiem == "PM" && hours < 12 {
		hours += 12
	} else if meridiem == "AM" && hours == 12 {
		hours = 0
	} else if meridiem == "AM" && hours > 12 {
		hours -= 12
	}

	if hours > 23 || minutes >= 60 {
		return nil, false
	}

	return time.Date(0, 1, 1, hours, minutes, 0, 0, time.UTC), true
}

// ============================================================================
// Date Literals
// ============================================================================

var dateLiteralRe = regexp.MustCompile(`^(\d{4}|YYYY)-(\d{2}|MM)-(\d{2}|DD)$`)

// ToLiteralDate creates a date literal handler
// Parses: 2020-06-05, YYYY-MM-DD (with wildcards filled from today)
// Dates are naive: represented as midnight UTC of the named day.
func ToLiteralDate(timezone *time.Location) LiteralHandler {
	return func(str string) (interface{}, bool) {
		match := dateLiteralRe.FindStringSubmatch(str)
		if match == nil {
			return nil, false
		}

		now := time.Now().In(timezone)
		year := now.Year()
		month := int(now.Month())
		day := now.Day()

		if match[1] != "YYYY" {
			y, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, false
			}
			year = y
		}

		if match[2] != "MM" {
			m, err := strconv.Atoi(match[2])
			if err != nil {
				return nil, false
			}
			month = m
		}

		if match[3] != "DD" {
			d, err := strconv.Atoi(match[3])
			if err != nil {
				return nil, false
			}
			day = d
		}

		result := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		return result, true
	}
}

// ============================================================================
// ZonedDateTime Literals
// ============================================================================

var tzOffsetRe = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)

// ToZonedDateTime creates a zoned datetime literal handler
// Parses:
// - 2025-05-24T10:15:00[America/Los_Angeles] (IANA named timezone, RFC 9557)
// - 2025-05-24T10:15:00-07:00[America/Los_Angeles] (offset + IANA timezone)
// - 2025-05-24T10:15:00Z (UTC)
// - 2025-05-24T10:15:00-05:00 (offset timezone)
// - 2025-05-24T10:15:00 (uses interpreter's timezone)
func ToZonedDateTime(timezone *time.Location) LiteralHandler {
	return func(str string) (interface{}, bool) {
		if !strings.Contains(str, "T") {
			return nil, false
		}

		// IANA named timezone in bracket notation (RFC 9557)
		if strings.Contains(str, "[") && strings.HasSuffix(str, "]") {
			bracketStart := strings.Index(str, "[")
			bracketEnd := strings.Index(str, "]")
			tzName := str[bracketStart+1 : bracketEnd]

			loc, err := time.LoadLocation(tzName)
			if err != nil {
				return nil, false
			}

			dtStr := str[:bracketStart]

			// With an offset, parse as RFC3339 and convert to the named zone
			if strings.Contains(dtStr, "+") || strings.LastIndex(dtStr, "-") > 10 {
				t, err := time.Parse(time.RFC3339, dtStr)
				if err != nil {
					return nil, false
				}
				return t.In(loc), true
			}

			// No offset: plain datetime in the named zone
			t, err := time.Parse("2006-01-02T15:04:05", dtStr)
			if err != nil {
				return nil, false
			}
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), true
		}

		// Explicit UTC (Z suffix)
		if strings.HasSuffix(str, "Z") {
			t, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return nil, false
			}
			return t.UTC(), true
		}

		// Explicit timezone offset (+05:00, -05:00)
		if tzOffsetRe.MatchString(str) {
			t, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return nil, false
			}
			return t.UTC(), true
		}

		// No timezone specified, use interpreter's timezone
		t, err := time.Parse("2006-01-02T15:04:05", str)
		if err != nil {
			return nil, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), timezone), true
	}
}

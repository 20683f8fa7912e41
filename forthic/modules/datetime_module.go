package modules

import (
	"fmt"
	"strings"
	"time"

	"github.com/forthic-lang/forthic-go/forthic"
)

// DateTimeModule provides date, time, and datetime operations.
//
// Dates are naive (midnight UTC of the named day), times are year-0 values
// whose location is UTC when naive, and datetimes live in the interpreter's
// timezone.
type DateTimeModule struct {
	*forthic.Module
}

// NewDateTimeModule creates a new datetime module
func NewDateTimeModule() *DateTimeModule {
	m := &DateTimeModule{
		Module: forthic.NewModule("datetime"),
	}
	m.registerWords()
	return m
}

func (m *DateTimeModule) registerWords() {
	// Current date/time
	m.AddModuleWord("TODAY", m.today)
	m.AddModuleWord("NOW", m.now)

	// Days of the current ISO week
	m.AddModuleWord("MONDAY", m.weekday(time.Monday))
	m.AddModuleWord("TUESDAY", m.weekday(time.Tuesday))
	m.AddModuleWord("WEDNESDAY", m.weekday(time.Wednesday))
	m.AddModuleWord("THURSDAY", m.weekday(time.Thursday))
	m.AddModuleWord("FRIDAY", m.weekday(time.Friday))
	m.AddModuleWord("SATURDAY", m.weekday(time.Saturday))
	m.AddModuleWord("SUNDAY", m.weekday(time.Sunday))

	// Conversion TO datetime types
	m.AddModuleWord(">TIME", m.toTime)
	m.AddModuleWord(">DATE", m.toDate)
	m.AddModuleWord(">DATETIME", m.toDateTime)
	m.AddModuleWord("DATE-TIME>DATETIME", m.dateTimeToDatetime)
	m.AddModuleWord("AT", m.dateTimeToDatetime)

	// Timezone handling
	m.AddModuleWord("<TZ!", m.attachTimezone)

	// Conversion FROM datetime types
	m.AddModuleWord("TIME>STR", m.timeToStr)
	m.AddModuleWord("DATE>STR", m.dateToStr)
	m.AddModuleWord("DATE>INT", m.dateToInt)

	// Timestamps
	m.AddModuleWord("DATETIME>TIMESTAMP", m.datetimeToTimestamp)
	m.AddModuleWord(">TIMESTAMP", m.datetimeToTimestamp)
	m.AddModuleWord("TIMESTAMP>DATETIME", m.timestampToDatetime)

	// Date math
	m.AddModuleWord("+DAYS", m.addDays)
	m.AddModuleWord("ADD-DAYS", m.addDays)
	m.AddModuleWord("SUBTRACT-DATES", m.subtractDates)

	// Time adjustment
	m.AddModuleWord("AM", m.am)
	m.AddModuleWord("PM", m.pm)
}

// ========================================
// Current
// ========================================

// todayIn returns midnight UTC of today's date in loc
func todayIn(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (m *DateTimeModule) today(interp *forthic.Interpreter) error {
	interp.StackPush(todayIn(interp.GetLocation()))
	return nil
}

func (m *DateTimeModule) now(interp *forthic.Interpreter) error {
	interp.StackPush(time.Now().In(interp.GetLocation()))
	return nil
}

// weekday returns a handler pushing that weekday's date within the ISO week
// containing today (Monday <= today <= Sunday)
func (m *DateTimeModule) weekday(target time.Weekday) func(*forthic.Interpreter) error {
	return func(interp *forthic.Interpreter) error {
		today := todayIn(interp.GetLocation())

		// Index days Monday=0 .. Sunday=6
		todayIdx := (int(today.Weekday()) + 6) % 7
		targetIdx := (int(target) + 6) % 7

		result := today.AddDate(0, 0, targetIdx-todayIdx)
		interp.StackPush(result)
		return nil
	}
}

// ========================================
// Conversion TO datetime types
// ========================================

func (m *DateTimeModule) toTime(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	if item == nil {
		interp.StackPush(nil)
		return nil
	}

	// A datetime's time part
	if t, ok := item.(time.Time); ok {
		interp.StackPush(time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC))
		return nil
	}

	str, ok := item.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	str = strings.TrimSpace(str)

	formats := []string{
		"15:04",
		"15:04:05",
		"3:04 PM",
		"3:04PM",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, str); err == nil {
			interp.StackPush(time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC))
			return nil
		}
	}

	interp.StackPush(nil)
	return nil
}

func (m *DateTimeModule) toDate(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	if item == nil {
		interp.StackPush(nil)
		return nil
	}

	// A datetime's date part
	if t, ok := item.(time.Time); ok {
		interp.StackPush(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
		return nil
	}

	str, ok := item.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	str = strings.TrimSpace(str)

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, str); err == nil {
			interp.StackPush(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
			return nil
		}
	}

	interp.StackPush(nil)
	return nil
}

func (m *DateTimeModule) toDateTime(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	if item == nil {
		interp.StackPush(nil)
		return nil
	}

	if t, ok := item.(time.Time); ok {
		interp.StackPush(t)
		return nil
	}

	// Numbers are Unix timestamps in seconds
	if num, err := toNumber(item); err == nil {
		interp.StackPush(time.Unix(int64(num), 0).In(interp.GetLocation()))
		return nil
	}

	str, ok := item.(string)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	str = strings.TrimSpace(str)

	if t, err := time.Parse(time.RFC3339, str); err == nil {
		interp.StackPush(t.In(interp.GetLocation()))
		return nil
	}

	naiveFormats := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, format := range naiveFormats {
		if t, err := time.ParseInLocation(format, str, interp.GetLocation()); err == nil {
			interp.StackPush(t)
			return nil
		}
	}

	interp.StackPush(nil)
	return nil
}

// dateTimeToDatetime combines a date and a time into a datetime in the
// interpreter's timezone: ( date time -- datetime )
func (m *DateTimeModule) dateTimeToDatetime(interp *forthic.Interpreter) error {
	timeVal := interp.StackPop()
	dateVal := interp.StackPop()

	date, ok1 := dateVal.(time.Time)
	timeOnly, ok2 := timeVal.(time.Time)

	if !ok1 || !ok2 {
		interp.StackPush(nil)
		return nil
	}

	result := time.Date(
		date.Year(), date.Month(), date.Day(),
		timeOnly.Hour(), timeOnly.Minute(), timeOnly.Second(),
		0, interp.GetLocation(),
	)

	interp.StackPush(result)
	return nil
}

// ========================================
// Timezone handling
// ========================================

// attachTimezone attaches a timezone label to a time: ( time tzname -- time )
func (m *DateTimeModule) attachTimezone(interp *forthic.Interpreter) error {
	tzName := interp.StackPop()
	timeVal := interp.StackPop()

	t, ok1 := timeVal.(time.Time)
	name, ok2 := tzName.(string)

	if !ok1 || !ok2 {
		interp.StackPush(nil)
		return nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return forthic.NewGlobalModuleError(fmt.Sprintf("Unknown timezone: %s", name)).WithCause(err)
	}

	interp.StackPush(time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, loc))
	return nil
}

// ========================================
// Conversion FROM datetime types
// ========================================

// timeToStr renders a time as HH:MM. A tz-attached time is converted to the
// interpreter's timezone first, anchored on today's date.
func (m *DateTimeModule) timeToStr(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush("")
		return nil
	}

	if t.Location() == time.UTC {
		// Naive time: render as-is
		interp.StackPush(t.Format("15:04"))
		return nil
	}

	loc := interp.GetLocation()
	now := time.Now().In(t.Location())
	anchored := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	interp.StackPush(anchored.In(loc).Format("15:04"))
	return nil
}

func (m *DateTimeModule) dateToStr(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush("")
		return nil
	}

	interp.StackPush(t.Format("2006-01-02"))
	return nil
}

func (m *DateTimeModule) dateToInt(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	// YYYYMMDD
	result := int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
	interp.StackPush(result)
	return nil
}

// ========================================
// Timestamps
// ========================================

func (m *DateTimeModule) datetimeToTimestamp(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(t.Unix())
	return nil
}

func (m *DateTimeModule) timestampToDatetime(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	timestamp, err := toNumber(item)
	if err != nil {
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(time.Unix(int64(timestamp), 0).In(interp.GetLocation()))
	return nil
}

// ========================================
// Date math
// ========================================

func (m *DateTimeModule) addDays(interp *forthic.Interpreter) error {
	numDays := interp.StackPop()
	date := interp.StackPop()

	t, ok := date.(time.Time)
	if !ok {
		interp.StackPush(nil)
		return nil
	}

	interp.StackPush(t.AddDate(0, 0, toInt(numDays)))
	return nil
}

// subtractDates returns the signed day count date1 - date2
func (m *DateTimeModule) subtractDates(interp *forthic.Interpreter) error {
	date2 := interp.StackPop()
	date1 := interp.StackPop()

	t1, ok1 := date1.(time.Time)
	t2, ok2 := date2.(time.Time)

	if !ok1 || !ok2 {
		interp.StackPush(nil)
		return nil
	}

	diff := t1.Sub(t2)
	interp.StackPush(int64(diff.Hours() / 24))
	return nil
}

// ========================================
// Time adjustment
// ========================================

// am normalizes a time to before noon
func (m *DateTimeModule) am(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush(item)
		return nil
	}

	hour := t.Hour()
	if hour >= 12 {
		interp.StackPush(time.Date(t.Year(), t.Month(), t.Day(), hour-12, t.Minute(), t.Second(), 0, t.Location()))
	} else {
		interp.StackPush(t)
	}

	return nil
}

// pm normalizes a time to after noon
func (m *DateTimeModule) pm(interp *forthic.Interpreter) error {
	item := interp.StackPop()

	t, ok := item.(time.Time)
	if !ok {
		interp.StackPush(item)
		return nil
	}

	hour := t.Hour()
	if hour < 12 {
		interp.StackPush(time.Date(t.Year(), t.Month(), t.Day(), hour+12, t.Minute(), t.Second(), 0, t.Location()))
	} else {
		interp.StackPush(t)
	}

	return nil
}

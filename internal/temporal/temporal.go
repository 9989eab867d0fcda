// Package temporal resolves free-text date expressions ("next week",
// "this weekend", "August 15th") into structured interpretations that ride
// along with dated facts. Interpretation is best-effort: the original
// phrase is always preserved, and an unparseable phrase is not an error.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Grain values attached under the "grain" key.
const (
	GrainWeek             = "week"
	GrainDay              = "day"
	GrainWeekend          = "weekend"
	GrainMonth            = "month"
	GrainMonthApprox      = "month_approx"
	GrainDuration         = "duration"
	GrainDaySpecific      = "day_specific"
	GrainDatetimeSpecific = "datetime_specific"
)

// Key holds the fixed key under which an interpretation is attached to an
// entity's details.
const Key = "temporal_interpretation"

const dateLayout = "2006-01-02"

var (
	durationRe = regexp.MustCompile(`\bfor (\d+|a|an|one|two|three|four|five|six) (day|week|month)s?\b`)
	relativeRe = regexp.MustCompile(`\bin (\d+|a|an|one|two|three|four|five|six) (day|week|month)s?\b`)
	ordinalRe  = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)

	weekdayRe = regexp.MustCompile(`^(?:(this|next|coming|this coming|next coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)

	weekdays = map[string]time.Weekday{
		"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
		"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
		"sunday": time.Sunday,
	}
)

// Interpret resolves term relative to now. The result always carries the
// original phrase under "original"; all other keys depend on what was
// recognized. Recognition failures return just the original phrase;
// callers attach whatever comes back and move on.
func Interpret(term string, now time.Time) map[string]any {
	lower := strings.ToLower(strings.TrimSpace(term))
	today := truncateToDay(now)
	result := map[string]any{"original": term}

	switch {
	case strings.Contains(lower, "next week"):
		monday := onOrAfter(today.AddDate(0, 0, 7), time.Monday)
		result["start_date"] = monday.Format(dateLayout)
		result["end_date"] = monday.AddDate(0, 0, 6).Format(dateLayout)
		result["grain"] = GrainWeek

	case strings.Contains(lower, "upcoming week"):
		monday := onOrAfter(today.AddDate(0, 0, 7), time.Monday)
		result["start_date"] = monday.Format(dateLayout)
		result["end_date"] = monday.AddDate(0, 0, 6).Format(dateLayout)
		result["grain"] = GrainWeek
		result["interpretation_note"] = "interpreted as the week starting next Monday"

	case strings.Contains(lower, "tomorrow"):
		result["date"] = today.AddDate(0, 0, 1).Format(dateLayout)
		result["grain"] = GrainDay

	case strings.Contains(lower, "today"), strings.Contains(lower, "tonight"):
		result["date"] = today.Format(dateLayout)
		result["grain"] = GrainDay

	case strings.Contains(lower, "yesterday"):
		result["date"] = today.AddDate(0, 0, -1).Format(dateLayout)
		result["grain"] = GrainDay

	case strings.Contains(lower, "last weekend"):
		saturday := onOrAfter(today.AddDate(0, 0, -7), time.Saturday)
		result["start_date"] = saturday.Format(dateLayout)
		result["end_date"] = saturday.AddDate(0, 0, 1).Format(dateLayout)
		result["grain"] = GrainWeekend

	case strings.Contains(lower, "this weekend"), strings.Contains(lower, "the weekend"):
		saturday := onOrAfter(today, time.Saturday)
		result["start_date"] = saturday.Format(dateLayout)
		result["end_date"] = saturday.AddDate(0, 0, 1).Format(dateLayout)
		result["grain"] = GrainWeekend

	case strings.Contains(lower, "in a month"), strings.Contains(lower, "in 1 month"):
		result["date"] = addMonths(today, 1).Format(dateLayout)
		result["grain"] = GrainMonthApprox

	case strings.Contains(lower, "next month"):
		start := firstOfMonth(today).AddDate(0, 1, 0)
		result["start_date"] = start.Format(dateLayout)
		result["end_date"] = start.AddDate(0, 1, -1).Format(dateLayout)
		result["grain"] = GrainMonth

	case strings.Contains(lower, "last month"):
		end := firstOfMonth(today).AddDate(0, 0, -1)
		result["start_date"] = firstOfMonth(end).Format(dateLayout)
		result["end_date"] = end.Format(dateLayout)
		result["grain"] = GrainMonth

	case durationRe.MatchString(lower):
		m := durationRe.FindStringSubmatch(lower)
		n := wordToCount(m[1])
		result["duration_term"] = fmt.Sprintf("%d %s", n, plural(m[2], n))
		result["start_date"] = today.Format(dateLayout)
		result["end_date"] = addUnits(today, n, m[2]).Format(dateLayout)
		result["grain"] = GrainDuration

	case relativeRe.MatchString(lower):
		m := relativeRe.FindStringSubmatch(lower)
		n := wordToCount(m[1])
		result["date"] = addUnits(today, n, m[2]).Format(dateLayout)
		result["grain"] = GrainDaySpecific
		result["parser_used"] = "relative"

	default:
		interpretFallback(term, lower, now, result)
	}

	return result
}

// interpretFallback handles weekday names and concrete dates once the
// fixed phrases are exhausted. Failure leaves result untouched beyond the
// original phrase.
func interpretFallback(term, lower string, now time.Time, result map[string]any) {
	today := truncateToDay(now)

	if m := weekdayRe.FindStringSubmatch(lower); m != nil {
		wd := weekdays[m[2]]
		base := today
		if strings.HasPrefix(m[1], "next") {
			base = today.AddDate(0, 0, 7)
		}
		result["date"] = onOrAfter(base, wd).Format(dateLayout)
		result["grain"] = GrainDaySpecific
		result["parser_used"] = "weekday"
		return
	}

	cleaned := strings.TrimSpace(ordinalRe.ReplaceAllString(term, "$1"))

	// Month-day phrases without a year ("August 15") are common in event
	// details; resolve them against the current year.
	for _, layout := range []string{"January 2", "Jan 2", "2 January", "2 Jan"} {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			parsed = parsed.AddDate(now.Year(), 0, 0)
			result["date"] = parsed.Format(dateLayout)
			result["grain"] = GrainDaySpecific
			result["parser_used"] = "layout"
			return
		}
	}

	parsed, err := dateparse.ParseIn(cleaned, now.Location())
	if err != nil {
		return
	}
	if parsed.Year() == 0 {
		parsed = parsed.AddDate(now.Year(), 0, 0)
	}
	if parsed.Hour() == 0 && parsed.Minute() == 0 && parsed.Second() == 0 {
		result["date"] = parsed.Format(dateLayout)
		result["grain"] = GrainDaySpecific
	} else {
		result["datetime"] = parsed.Format("2006-01-02T15:04:05")
		result["grain"] = GrainDatetimeSpecific
	}
	result["parser_used"] = "dateparse"
}

// onOrAfter moves d forward to the requested weekday, staying put when d
// already falls on it.
func onOrAfter(d time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, delta)
}

// addMonths adds n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29, not Mar 2).
func addMonths(d time.Time, n int) time.Time {
	first := firstOfMonth(d).AddDate(0, n, 0)
	day := d.Day()
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, d.Location())
}

func addUnits(d time.Time, n int, unit string) time.Time {
	switch unit {
	case "day":
		return d.AddDate(0, 0, n)
	case "week":
		return d.AddDate(0, 0, 7*n)
	case "month":
		return addMonths(d, n)
	}
	return d
}

func firstOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}

func truncateToDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

func wordToCount(w string) int {
	if n, err := strconv.Atoi(w); err == nil {
		return n
	}
	switch w {
	case "a", "an", "one":
		return 1
	case "two":
		return 2
	case "three":
		return 3
	case "four":
		return 4
	case "five":
		return 5
	case "six":
		return 6
	}
	return 1
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// Package availability turns a product's compact per-day counter
// strings and weekday restriction masks into a day-by-day bookable
// calendar. The calendar is derived data: recomputed on every query,
// never persisted, and advisory with respect to price — the booking
// submission's own verdict is ground truth.
package availability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/thisisafrica/hostlink/internal/hostconnect"
)

// CalendarDay is one derived day of the bookable calendar.
type CalendarDay struct {
	Date           time.Time
	DayOfWeek      time.Weekday
	Bookable       bool
	RemainingUnits int
	Price          int    // advisory per-person price in cents, 0 when unknown
	Currency       string
	DisplayPrice   string // empty when the day is not bookable
}

// Window is the half-open-inclusive query window [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// ComputeCalendar walks every date range of the product that overlaps
// the window and produces one CalendarDay per date in the window.
//
// A date is bookable only if a covering range has a strictly positive
// availability token for it AND that range either has no weekday mask
// or has the date's weekday bit set. Overlapping ranges use union
// semantics: bookable if any covering range says so. When several
// bookable ranges cover one date, the day carries the highest remaining
// units and the lowest advisory price.
func ComputeCalendar(product hostconnect.ProductOption, w Window) []CalendarDay {
	start := midnight(w.Start)
	end := midnight(w.End)
	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	calendar := make([]CalendarDay, days)
	for i := range calendar {
		date := start.AddDate(0, 0, i)
		calendar[i] = CalendarDay{Date: date, DayOfWeek: date.Weekday()}
	}

	for _, rng := range product.DateRanges {
		applyRange(calendar, start, rng)
	}

	for i := range calendar {
		if calendar[i].Bookable {
			calendar[i].DisplayPrice = FormatPrice(calendar[i].Currency, calendar[i].Price)
		}
	}
	return calendar
}

// applyRange overlays one date range's tokens onto the calendar.
// Tokens map positionally: token j belongs to DateFrom+j days. A token
// string shorter than the range span leaves the trailing days
// unavailable; a missing token string disables the whole range.
func applyRange(calendar []CalendarDay, windowStart time.Time, rng hostconnect.DateRange) {
	if len(rng.PerDayAvailability) == 0 {
		return
	}
	rangeStart := midnight(rng.DateFrom)
	rangeEnd := midnight(rng.DateTo)

	for j, token := range rng.PerDayAvailability {
		date := rangeStart.AddDate(0, 0, j)
		if date.After(rangeEnd) {
			break
		}
		idx := daysBetween(windowStart, date)
		if idx < 0 || idx >= len(calendar) {
			continue
		}
		units, err := strconv.Atoi(token)
		if err != nil || units <= 0 {
			continue
		}
		if rng.DaysOfWeek != nil && !rng.DaysOfWeek.Allows(date.Weekday()) {
			continue
		}

		day := &calendar[idx]
		price := rng.PerPersonRate()
		if !day.Bookable {
			day.Bookable = true
			day.RemainingUnits = units
			day.Price = price
			day.Currency = rng.Currency
			continue
		}
		// Union of overlapping ranges: most units, lowest shown price.
		if units > day.RemainingUnits {
			day.RemainingUnits = units
		}
		if price > 0 && (day.Price == 0 || price < day.Price) {
			day.Price = price
			day.Currency = rng.Currency
		}
	}
}

// FormatPrice renders an advisory per-person price such as "AUD $1,234".
// A zero price means the upstream gave none: price on application.
func FormatPrice(currency string, cents int) string {
	if cents <= 0 {
		return "POA"
	}
	if currency == "" {
		currency = "AUD"
	}
	return fmt.Sprintf("%s $%s", currency, groupThousands(cents/100))
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b at day resolution.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

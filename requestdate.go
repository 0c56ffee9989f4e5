/*
Copyright © 2024 the GeoCDL authors.
This file is part of GeoCDL.

GeoCDL is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoCDL is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoCDL.  If not, see <http://www.gnu.org/licenses/>.
*/

package geocdl

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RequestDate is a date that may be missing its finer fields, with the
// pattern of presence/absence encoding the grain: a year alone is ANNUAL,
// year+month is MONTHLY, year+month+day is DAILY. Month and Day are nil
// when absent. If Day is set, Month must be set; if Month is set, Year
// must be set.
type RequestDate struct {
	Year  int
	Month *int
	Day   *int
}

// NewAnnualDate returns a RequestDate at ANNUAL grain.
func NewAnnualDate(year int) RequestDate {
	return RequestDate{Year: year}
}

// NewMonthlyDate returns a RequestDate at MONTHLY grain.
func NewMonthlyDate(year, month int) RequestDate {
	m := month
	return RequestDate{Year: year, Month: &m}
}

// NewDailyDate returns a RequestDate at DAILY grain.
func NewDailyDate(year, month, day int) RequestDate {
	m, d := month, day
	return RequestDate{Year: year, Month: &m, Day: &d}
}

// Grain returns the granularity implied by which fields are present.
func (d RequestDate) Grain() Grain {
	switch {
	case d.Day != nil:
		return Daily
	case d.Month != nil:
		return Monthly
	default:
		return Annual
	}
}

// key returns a totally-ordered, comparable representation so RequestDates
// can be used as map keys and sorted regardless of grain.
func (d RequestDate) key() [3]int {
	m, dd := 0, 0
	if d.Month != nil {
		m = *d.Month
	}
	if d.Day != nil {
		dd = *d.Day
	}
	return [3]int{d.Year, m, dd}
}

// Before reports whether d sorts strictly before o using (year, month, day)
// ordering with absent fields treated as 0.
func (d RequestDate) Before(o RequestDate) bool {
	dk, ok := d.key(), o.key()
	for i := range dk {
		if dk[i] != ok[i] {
			return dk[i] < ok[i]
		}
	}
	return false
}

// Equal reports whether d and o represent the same date at the same grain.
func (d RequestDate) Equal(o RequestDate) bool {
	return d.key() == o.key()
}

// AsTime converts d to a time.Time using the first day of any absent finer
// field, treating ANNUAL/MONTHLY dates as the first instant of the period
// for range-containment comparisons.
func (d RequestDate) AsTime() time.Time {
	m, day := 1, 1
	if d.Month != nil {
		m = *d.Month
	}
	if d.Day != nil {
		day = *d.Day
	}
	return time.Date(d.Year, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

// String renders the date as "YYYY", "YYYY-MM", or "YYYY-MM-DD" depending
// on grain.
func (d RequestDate) String() string {
	switch d.Grain() {
	case Monthly:
		return fmt.Sprintf("%04d-%02d", d.Year, *d.Month)
	case Daily:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, *d.Month, *d.Day)
	default:
		return fmt.Sprintf("%04d", d.Year)
	}
}

// MarshalJSON renders a RequestDate as its String form rather than its
// Year/Month/Day fields, so metadata documents stay human-readable.
func (d RequestDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// sortUniqueDates returns dates sorted ascending with duplicates removed,
// the sortedness and dedup guarantee every date-producing path in the
// parser relies on.
func sortUniqueDates(dates []RequestDate) []RequestDate {
	seen := make(map[[3]int]bool, len(dates))
	out := make([]RequestDate, 0, len(dates))
	for _, d := range dates {
		k := d.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func isLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func daysInYear(year int) int {
	if isLeapYear(year) {
		return 366
	}
	return 365
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ordinalToMonthDay converts a day-of-year (1-based) to a (month, day) pair.
func ordinalToMonthDay(year, yday int) (month, day int) {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, yday-1)
	return int(t.Month()), t.Day()
}

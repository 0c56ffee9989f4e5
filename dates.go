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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseDates parses the (dates, years, months, days) request parameters
// into a sorted, deduplicated list of RequestDates and the grain they were
// expressed at. At most one of datesStr or (yearsStr, monthsStr, daysStr)
// should carry values; datesStr wins if both are non-empty, matching the
// precedence the web API has always given the compact form. An entirely
// empty set of parameters is valid and yields (nil, NoGrain).
func ParseDates(datesStr, yearsStr, monthsStr, daysStr string) ([]RequestDate, Grain, error) {
	if datesStr == "" && yearsStr == "" && monthsStr == "" && daysStr == "" {
		return nil, NoGrain, nil
	}
	if datesStr != "" {
		return parseSimpleDates(datesStr)
	}
	return parseYMD(yearsStr, monthsStr, daysStr)
}

// parseSimpleDates implements the DATESSTR grammar:
//
//	DATESSTR   = (SINGLEDATE | DATERANGE) , [{",", (SINGLEDATE | DATERANGE)}]
//	SINGLEDATE = "YYYY" | "YYYY-MM" | "YYYY-MM-DD" (M, D may drop leading 0s)
//	DATERANGE  = SINGLEDATE, ":", SINGLEDATE
func parseSimpleDates(datesStr string) ([]RequestDate, Grain, error) {
	var all []RequestDate
	var grain Grain
	haveGrain := false

	for _, part := range strings.Split(datesStr, ",") {
		var start, end string
		if strings.Contains(part, ":") {
			lims := strings.SplitN(part, ":", -1)
			if len(lims) != 2 {
				return nil, NoGrain, newErr(ErrBadDateSpec, "invalid simple date range: %q", part)
			}
			start, end = lims[0], lims[1]
		} else {
			start, end = part, part
		}

		dates, g, err := parseSimpleDateRange(start, end)
		if err != nil {
			return nil, NoGrain, err
		}
		if !haveGrain {
			grain = g
			haveGrain = true
		} else if grain != g {
			return nil, NoGrain, newErr(ErrMixedGrain, "cannot mix date grains in a dates string: %q", datesStr)
		}
		all = append(all, dates...)
	}

	return sortUniqueDates(all), grain, nil
}

// parseSimpleDateRange parses a start/end SINGLEDATE pair and expands it
// into the inclusive list of dates at the grain implied by the strings'
// lengths.
func parseSimpleDateRange(start, end string) ([]RequestDate, Grain, error) {
	if start == "" || end == "" {
		return nil, NoGrain, newErr(ErrBadDateSpec, "start and end dates must both be specified")
	}

	switch {
	case len(start) == 4 && len(end) == 4:
		s, err1 := strconv.Atoi(start)
		e, err2 := strconv.Atoi(end)
		if err1 != nil || err2 != nil {
			return nil, NoGrain, newErr(ErrBadDateSpec, "invalid year in range %q:%q", start, end)
		}
		if e < s {
			return nil, NoGrain, newErr(ErrEndBeforeStart, "the end date cannot precede the start date")
		}
		var dates []RequestDate
		for y := s; y <= e; y++ {
			dates = append(dates, NewAnnualDate(y))
		}
		return dates, Annual, nil

	case isLenIn(len(start), 6, 7) && isLenIn(len(end), 6, 7):
		sy, sm, err1 := splitYM(start)
		ey, em, err2 := splitYM(end)
		if err1 != nil || err2 != nil {
			return nil, NoGrain, newErr(ErrBadDateSpec, "invalid month date in range %q:%q", start, end)
		}
		if sm < 1 || sm > 12 {
			return nil, NoGrain, newErr(ErrInvalidMonth, "invalid month value: %d", sm)
		}
		if em < 1 || em > 12 {
			return nil, NoGrain, newErr(ErrInvalidMonth, "invalid month value: %d", em)
		}
		if ey*12+em < sy*12+sm {
			return nil, NoGrain, newErr(ErrEndBeforeStart, "the end date cannot precede the start date")
		}
		var dates []RequestDate
		curY, curM := sy, sm
		mCnt := sm - 1
		for curY*12+curM <= ey*12+em {
			dates = append(dates, NewMonthlyDate(curY, curM))
			mCnt++
			curY = sy + mCnt/12
			curM = mCnt%12 + 1
		}
		return dates, Monthly, nil

	case isLenIn(len(start), 8, 9, 10) && isLenIn(len(end), 8, 9, 10):
		sy, sm, sd, err1 := splitYMD(start)
		ey, em, ed, err2 := splitYMD(end)
		if err1 != nil || err2 != nil {
			return nil, NoGrain, newErr(ErrBadDateSpec, "invalid daily date in range %q:%q", start, end)
		}
		if sm < 1 || sm > 12 || em < 1 || em > 12 {
			return nil, NoGrain, newErr(ErrInvalidMonth, "invalid month value in range %q:%q", start, end)
		}
		if sd < 1 || sd > daysInMonth(sy, sm) || ed < 1 || ed > daysInMonth(ey, em) {
			return nil, NoGrain, newErr(ErrInvalidDay, "invalid day value in range %q:%q", start, end)
		}
		startOrd := ordinal(sy, sm, sd)
		endOrd := ordinal(ey, em, ed)
		if endOrd < startOrd {
			return nil, NoGrain, newErr(ErrEndBeforeStart, "the end date cannot precede the start date")
		}
		var dates []RequestDate
		for o := startOrd; o <= endOrd; o++ {
			y, m, d := fromOrdinal(o)
			dates = append(dates, NewDailyDate(y, m, d))
		}
		return dates, Daily, nil

	default:
		return nil, NoGrain, newErr(ErrBadDateSpec, "mismatched starting and ending date range granularity: %q, %q", start, end)
	}
}

func isLenIn(n int, opts ...int) bool {
	for _, o := range opts {
		if n == o {
			return true
		}
	}
	return false
}

func splitYM(s string) (year, month int, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, newErr(ErrBadDateSpec, "invalid monthly date: %q", s)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, newErr(ErrBadDateSpec, "invalid monthly date: %q", s)
	}
	return y, m, nil
}

func splitYMD(s string) (year, month, day int, err error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, newErr(ErrBadDateSpec, "invalid daily date: %q", s)
	}
	y, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	d, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, newErr(ErrBadDateSpec, "invalid daily date: %q", s)
	}
	return y, m, d, nil
}

// ordinal and fromOrdinal use a proleptic day count anchored at year 1 day
// 1, sufficient for comparing and stepping through dates within the years
// this service deals with; they deliberately avoid time.Time arithmetic
// across multi-century spans where the Gregorian proleptic rules would
// matter, since request date ranges never approach that scale.
func ordinal(y, m, d int) int {
	days := 0
	for yy := 1; yy < y; yy++ {
		days += daysInYear(yy)
	}
	for mm := 1; mm < m; mm++ {
		days += daysInMonth(y, mm)
	}
	return days + d
}

func fromOrdinal(o int) (year, month, day int) {
	y := 1
	for {
		dy := daysInYear(y)
		if o <= dy {
			break
		}
		o -= dy
		y++
	}
	m, d := ordinalToMonthDay(y, o)
	return y, m, d
}

// parseRangeStr parses "START:END[+INC]", where END may be "N" meaning
// maxval, and returns the inclusive list of integers it describes.
func parseRangeStr(rangeStr string, maxval *int) ([]int, error) {
	parts := strings.Split(rangeStr, ":")
	if len(parts) != 2 {
		return nil, newErr(ErrBadDateSpec, "invalid range string: %q", rangeStr)
	}
	startVal, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, newErr(ErrBadDateSpec, "invalid range string: %q", rangeStr)
	}

	endStr := parts[1]
	inc := 1
	if strings.Contains(parts[1], "+") {
		endParts := strings.Split(parts[1], "+")
		if len(endParts) != 2 {
			return nil, newErr(ErrBadDateSpec, "invalid range string: %q", rangeStr)
		}
		endStr = endParts[0]
		inc, err = strconv.Atoi(endParts[1])
		if err != nil {
			return nil, newErr(ErrBadDateSpec, "invalid range string: %q", rangeStr)
		}
	}

	var endVal int
	if endStr == "N" {
		if maxval == nil {
			return nil, newErr(ErrNoMaxForN, "cannot interpret range string %q: no maximum value was provided", rangeStr)
		}
		endVal = *maxval
	} else {
		endVal, err = strconv.Atoi(endStr)
		if err != nil {
			return nil, newErr(ErrBadDateSpec, "invalid range string: %q", rangeStr)
		}
	}

	if startVal > endVal {
		return nil, newErr(ErrBadDateSpec, "invalid range string: %q: starting value cannot exceed ending value", rangeStr)
	}
	if startVal <= 0 || endVal <= 0 {
		return nil, newErr(ErrBadDateSpec, "invalid range string: %q: values must be greater than 0", rangeStr)
	}
	if maxval != nil && endVal > *maxval {
		return nil, newErr(ErrBadDateSpec, "invalid range string: %q: ending value cannot exceed %d", rangeStr, *maxval)
	}

	var out []int
	for v := startVal; v <= endVal; v += inc {
		out = append(out, v)
	}
	return out, nil
}

// parseNumValsStr implements the NUMVALSSTR grammar:
//
//	NUMVALSSTR = (SINGLEVAL | RANGESTR) , [{",", (SINGLEVAL | RANGESTR)}]
//	SINGLEVAL  = integer | "N"
//	RANGESTR   = integer, ":", integer, ["+", integer]
//
// and returns the sorted, deduplicated set of integers it describes.
func parseNumValsStr(nvStr string, maxval *int) ([]int, error) {
	seen := map[int]bool{}
	for _, part := range strings.Split(nvStr, ",") {
		if strings.Contains(part, ":") {
			vals, err := parseRangeStr(part, maxval)
			if err != nil {
				return nil, err
			}
			for _, v := range vals {
				seen[v] = true
			}
			continue
		}

		var newval int
		if part == "N" {
			if maxval == nil {
				return nil, newErr(ErrNoMaxForN, "cannot interpret number values string %q: no maximum value was provided", nvStr)
			}
			newval = *maxval
		} else {
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, newErr(ErrBadDateSpec, "invalid date values string: %q", nvStr)
			}
			newval = v
		}

		if maxval != nil && newval > *maxval {
			return nil, newErr(ErrBadDateSpec, "invalid date values string: %q: values cannot exceed %d", nvStr, *maxval)
		}
		if newval <= 0 {
			return nil, newErr(ErrBadDateSpec, "invalid date values string: %q: values must be greater than 0", nvStr)
		}
		seen[newval] = true
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

// parseYMD implements the separate years/months/days request parameters,
// generating the corresponding RequestDate list and inferred grain.
func parseYMD(yearsStr, monthsStr, daysStr string) ([]RequestDate, Grain, error) {
	if yearsStr == "" {
		return nil, NoGrain, newErr(ErrBadDateSpec, "the years to include were not specified")
	}

	years, err := parseNumValsStr(yearsStr, nil)
	if err != nil {
		return nil, NoGrain, err
	}

	var months []int
	if monthsStr != "" {
		twelve := 12
		months, err = parseNumValsStr(monthsStr, &twelve)
		if err != nil {
			return nil, NoGrain, err
		}
	}

	var dates []RequestDate
	var grain Grain

	switch {
	case daysStr == "" && months == nil:
		grain = Annual
		for _, y := range years {
			dates = append(dates, NewAnnualDate(y))
		}

	case daysStr == "":
		grain = Monthly
		for _, y := range years {
			for _, m := range months {
				dates = append(dates, NewMonthlyDate(y, m))
			}
		}

	case months == nil:
		grain = Daily
		c365, c366 := 365, 366
		daysCommon, err := parseNumValsStr(daysStr, &c365)
		if err != nil {
			return nil, NoGrain, err
		}
		daysLeap, err := parseNumValsStr(daysStr, &c366)
		if err != nil {
			return nil, NoGrain, err
		}
		for _, y := range years {
			days := daysCommon
			if isLeapYear(y) {
				days = daysLeap
			}
			for _, yday := range days {
				m, d := ordinalToMonthDay(y, yday)
				dates = append(dates, NewDailyDate(y, m, d))
			}
		}

	default:
		grain = Daily
		for _, y := range years {
			for _, m := range months {
				dim := daysInMonth(y, m)
				days, err := parseNumValsStr(daysStr, &dim)
				if err != nil {
					return nil, NoGrain, err
				}
				for _, d := range days {
					dates = append(dates, NewDailyDate(y, m, d))
				}
			}
		}
	}

	return sortUniqueDates(dates), grain, nil
}

// populateDates builds the per-grain date lists needed once grain
// negotiation has assigned one or more datasets a grain other than the
// request's originally inferred grain. For each such negotiated grain it
// re-derives the date list from whichever original input (datesStr or
// years/months/days) the request used, widened or narrowed to the new
// grain.
func populateDates(originalGrain Grain, negotiatedGrains map[string]Grain, datesStr, yearsStr, monthsStr, daysStr string) (map[Grain][]RequestDate, error) {
	unique := map[Grain]bool{}
	for _, g := range negotiatedGrains {
		unique[g] = true
	}

	out := map[Grain][]RequestDate{}
	for g := range unique {
		if g == NoGrain || g == originalGrain {
			continue
		}
		var dates []RequestDate
		var err error
		if datesStr != "" {
			dates, err = populateSimpleDates(originalGrain, g, datesStr)
		} else {
			dates, err = populateYMD(originalGrain, g, yearsStr, monthsStr, daysStr)
		}
		if err != nil {
			return nil, err
		}
		out[g] = dates
	}
	return out, nil
}

func populateYMD(originalGrain, newGrain Grain, yearsStr, monthsStr, daysStr string) ([]RequestDate, error) {
	var gMonths, gDays string
	switch newGrain {
	case Annual:
		// gMonths and gDays stay empty.
	case Monthly:
		if originalGrain == Daily && monthsStr != "" {
			gMonths = monthsStr
		} else {
			gMonths = "1:12"
		}
	case Daily:
		gDays = "1:N"
		if originalGrain == Monthly {
			gMonths = monthsStr
		} else {
			gMonths = "1:12"
		}
	}
	dates, _, err := parseYMD(yearsStr, gMonths, gDays)
	return dates, err
}

func populateSimpleDates(originalGrain, newGrain Grain, datesStr string) ([]RequestDate, error) {
	var newParts []string
	for _, part := range strings.Split(datesStr, ",") {
		var start, end string
		if strings.Contains(part, ":") {
			lims := strings.SplitN(part, ":", 2)
			start, end = lims[0], lims[1]
		} else {
			start, end = part, part
		}
		gs, ge, err := modifySimpleDateGrain(originalGrain, newGrain, start, end)
		if err != nil {
			return nil, err
		}
		newParts = append(newParts, gs+":"+ge)
	}
	dates, _, err := parseSimpleDates(strings.Join(newParts, ","))
	return dates, err
}

// modifySimpleDateGrain rewrites a SINGLEDATE start/end pair expressed at
// originalGrain into the equivalent pair at newGrain, widening by taking
// the full first/last period (e.g. annual "2010" widened to daily becomes
// "2010-01-01:2010-12-31") or narrowing by truncation.
func modifySimpleDateGrain(originalGrain, newGrain Grain, start, end string) (gStart, gEnd string, err error) {
	switch newGrain {
	case Annual:
		return start[:4], end[:4], nil

	case Monthly:
		if originalGrain == Daily {
			return start[:strings.LastIndex(start, "-")], end[:strings.LastIndex(end, "-")], nil
		}
		return start + "-01", end + "-12", nil

	case Daily:
		if originalGrain == Monthly {
			endY, endM, err := splitYM(end)
			if err != nil {
				return "", "", err
			}
			return start + "-01", fmt.Sprintf("%s-%d", end, daysInMonth(endY, endM)), nil
		}
		return start + "-01-01", end + "-12-31", nil
	}
	return "", "", newErr(ErrBadDateSpec, "unsupported grain for date widening")
}

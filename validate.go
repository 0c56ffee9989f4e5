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

// ValidateMethod selects how requested dates are checked against each
// dataset's available coverage.
type ValidateMethod string

const (
	ValidateStrict  ValidateMethod = "strict"
	ValidateAll     ValidateMethod = "all"
	ValidateOverlap ValidateMethod = "overlap"
)

var validValidateMethods = map[ValidateMethod]bool{
	ValidateStrict: true, ValidateAll: true, ValidateOverlap: true,
}

// strictDateRangeCheck reports whether every date in reqDates falls
// within availRange. Dates are assumed chronologically sorted, so only
// the endpoints need checking.
func strictDateRangeCheck(reqDates []RequestDate, availRange DateRange) bool {
	if availRange.Start == nil || availRange.End == nil || len(reqDates) == 0 {
		return false
	}
	start := reqDates[0]
	end := reqDates[len(reqDates)-1]
	return !start.Before(*availRange.Start) && !end.AsTime().After(availRange.End.AsTime())
}

// partialDateRangeCheck returns the subset of reqDates that fall within
// availRange.
func partialDateRangeCheck(reqDates []RequestDate, availRange DateRange) []RequestDate {
	var out []RequestDate
	for _, d := range reqDates {
		if strictDateRangeCheck([]RequestDate{d}, availRange) {
			out = append(out, d)
		}
	}
	return out
}

// validateDateRange checks requested dates against each dataset's
// coverage according to method and returns the dates actually available
// per dataset. reqDatesByGrain holds the full parsed/negotiated date
// list for each grain in play; dsGrains gives the grain each dataset was
// negotiated to (or is absent for a skipped dataset).
func validateDateRange(method ValidateMethod, dsGrains map[string]Grain, reqDatesByGrain map[Grain][]RequestDate, caps map[string]Capabilities) (map[string][]RequestDate, error) {
	if !validValidateMethods[method] {
		return nil, newErr(ErrUnsupportedGrain, "invalid date range validation method: %q", method)
	}
	if len(dsGrains) == 0 {
		// Every requested dataset is nontemporal (or grain negotiation
		// skipped them all); there is no date range to validate.
		return map[string][]RequestDate{}, nil
	}

	dsAvailDates := make(map[string][]RequestDate)
	allAvailable := true

	for dsid, grain := range dsGrains {
		if grain == NoGrain {
			dsAvailDates[dsid] = nil
			continue
		}
		reqDates := reqDatesByGrain[grain]
		availRange := caps[dsid].DateRanges[grain]

		if strictDateRangeCheck(reqDates, availRange) {
			dsAvailDates[dsid] = reqDates
			continue
		}

		allAvailable = false
		if method == ValidateStrict {
			return nil, newErr(ErrRangeUnavailable, "date range not available for dataset: %q", dsid)
		}
		dsAvailDates[dsid] = partialDateRangeCheck(reqDates, availRange)
	}

	if method == ValidateStrict || method == ValidateAll || allAvailable {
		total := 0
		for _, d := range dsAvailDates {
			total += len(d)
		}
		if total == 0 {
			return nil, newErr(ErrRangeUnavailable, "date range not available in any requested dataset")
		}
		return dsAvailDates, nil
	}

	// method == overlap and at least one dataset came back partial: pool
	// each grain's available dates from datasets negotiated to that
	// grain and every finer grain, truncated up to it (a DAILY dataset's
	// dates narrow both the MONTHLY and ANNUAL pools, a MONTHLY
	// dataset's dates narrow the ANNUAL pool), intersect per pool, then
	// redistribute the intersection back out to every dataset negotiated
	// to that grain.
	grainsInPlay := map[Grain]bool{}
	for _, grain := range dsGrains {
		if grain != NoGrain {
			grainsInPlay[grain] = true
		}
	}

	grainIntersection := map[Grain][]RequestDate{}
	for target := range grainsInPlay {
		var inter map[[3]int]RequestDate
		first := true
		for dsid, grain := range dsGrains {
			if grain == NoGrain || grain < target {
				continue
			}
			set := truncatedDateSetOf(dsAvailDates[dsid], target)
			if first {
				inter = set
				first = false
				continue
			}
			inter = intersectDateSets(inter, set)
		}
		grainIntersection[target] = sortUniqueDates(dateSliceOf(inter))
	}

	overlapping := make(map[string][]RequestDate)
	emptyFound := false
	for dsid, grain := range dsGrains {
		dates := grainIntersection[grain]
		if len(dates) == 0 {
			emptyFound = true
			continue
		}
		overlapping[dsid] = dates
	}
	if emptyFound {
		return nil, newErr(ErrRangeUnavailable, "date range not available in any requested dataset")
	}

	return overlapping, nil
}

// truncatedDateSetOf keys each date by its (year, month, day) components
// truncated to target's grain, dropping any finer fields, and rebuilds
// each entry as a RequestDate at target's grain so a finer dataset's
// dates can be pooled into a coarser grain's intersection.
func truncatedDateSetOf(dates []RequestDate, target Grain) map[[3]int]RequestDate {
	m := make(map[[3]int]RequestDate, len(dates))
	for _, d := range dates {
		var rd RequestDate
		switch target {
		case Annual:
			rd = NewAnnualDate(d.Year)
		case Monthly:
			rd = NewMonthlyDate(d.Year, *d.Month)
		default:
			rd = NewDailyDate(d.Year, *d.Month, *d.Day)
		}
		m[rd.key()] = rd
	}
	return m
}

func intersectDateSets(a, b map[[3]int]RequestDate) map[[3]int]RequestDate {
	out := make(map[[3]int]RequestDate)
	for k, v := range a {
		if _, ok := b[k]; ok {
			out[k] = v
		}
	}
	return out
}

func dateSliceOf(m map[[3]int]RequestDate) []RequestDate {
	out := make([]RequestDate, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

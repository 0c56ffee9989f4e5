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

import "testing"

func TestParseDatesSingle(t *testing.T) {
	dates, grain, err := ParseDates("2010", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if grain != Annual {
		t.Fatalf("grain = %v, want Annual", grain)
	}
	if len(dates) != 1 || dates[0].String() != "2010" {
		t.Fatalf("dates = %v", dates)
	}
}

func TestParseDatesRangeMonths(t *testing.T) {
	dates, grain, err := ParseDates("2010-01:2010-04", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if grain != Monthly {
		t.Fatalf("grain = %v, want Monthly", grain)
	}
	if len(dates) != 4 {
		t.Fatalf("len(dates) = %d, want 4", len(dates))
	}
	want := []string{"2010-01", "2010-02", "2010-03", "2010-04"}
	for i, w := range want {
		if dates[i].String() != w {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i].String(), w)
		}
	}
}

func TestParseDatesRoundTripEndpointsPresent(t *testing.T) {
	// parse("YYYY-MM:YYYY-MM") should yield exactly months_between(start,
	// end) + 1 dates, with both endpoints present.
	dates, _, err := ParseDates("2010-06:2011-02", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 9 {
		t.Fatalf("len(dates) = %d, want 9", len(dates))
	}
	if dates[0].String() != "2010-06" {
		t.Errorf("first date = %s, want 2010-06", dates[0].String())
	}
	if dates[len(dates)-1].String() != "2011-02" {
		t.Errorf("last date = %s, want 2011-02", dates[len(dates)-1].String())
	}
}

func TestParseDatesMixedGrainRejected(t *testing.T) {
	_, _, err := ParseDates("2010,2010-01", "", "", "")
	if !IsKind(err, ErrMixedGrain) {
		t.Fatalf("err = %v, want ErrMixedGrain", err)
	}
}

func TestParseDatesEndBeforeStart(t *testing.T) {
	_, _, err := ParseDates("2015:2010", "", "", "")
	if !IsKind(err, ErrEndBeforeStart) {
		t.Fatalf("err = %v, want ErrEndBeforeStart", err)
	}
}

func TestParseDatesDeduplicatesAndSorts(t *testing.T) {
	dates, _, err := ParseDates("2012,2010,2011,2010", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2010", "2011", "2012"}
	if len(dates) != len(want) {
		t.Fatalf("len(dates) = %d, want %d", len(dates), len(want))
	}
	for i, w := range want {
		if dates[i].String() != w {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i].String(), w)
		}
	}
}

func TestParseDatesEmpty(t *testing.T) {
	dates, grain, err := ParseDates("", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if dates != nil || grain != NoGrain {
		t.Fatalf("dates=%v grain=%v, want nil/NoGrain", dates, grain)
	}
}

func TestParseDatesDailyLeapYear(t *testing.T) {
	dates, grain, err := ParseDates("2016-02-28:2016-03-01", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if grain != Daily {
		t.Fatalf("grain = %v, want Daily", grain)
	}
	want := []string{"2016-02-28", "2016-02-29", "2016-03-01"}
	if len(dates) != len(want) {
		t.Fatalf("len(dates) = %d, want %d", len(dates), len(want))
	}
	for i, w := range want {
		if dates[i].String() != w {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i].String(), w)
		}
	}
}

func TestParseDatesInvalidMonth(t *testing.T) {
	_, _, err := ParseDates("2010-13", "", "", "")
	if !IsKind(err, ErrInvalidMonth) {
		t.Fatalf("err = %v, want ErrInvalidMonth", err)
	}
}

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

// Package output writes the data retrieved for a request to disk in the
// requested output format, and assembles the resulting files into the
// archive returned to the caller.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ctessum/unit"
)

// PointRow is one point-in-time observation destined for a CSV or
// shapefile point layer. Class and Color are populated only for a
// categorical variable, resolving Value against the source dataset's
// RAT/colormap.
type PointRow struct {
	X, Y  float64
	Time  string
	Value float64
	Class string
	Color string
}

// hasCategoricalLabels reports whether any row carries a resolved class
// name, meaning the categorical columns should be written out.
func hasCategoricalLabels(rows []PointRow) bool {
	for _, r := range rows {
		if r.Class != "" {
			return true
		}
	}
	return false
}

// WritePointsCSV writes rows to path as "x,y,time,<varname>[,class,color]",
// one row per requested date/point, adding the class/color columns only
// when rows carry resolved categorical labels. It collects every date's
// rows first and writes the file in a single pass: csv.Writer has no
// convenient reopen-and-append mode, and buffering a dataset/variable's
// rows in memory is cheap at GeoCDL's point-request scale.
func WritePointsCSV(path, varname string, rows []PointRow, dims unit.Dimensions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: creating CSV file %s: %w", path, err)
	}
	defer f.Close()

	categorical := hasCategoricalLabels(rows)
	w := csv.NewWriter(f)
	header := []string{"x", "y", "time", varColumnLabel(varname, dims)}
	if categorical {
		header = append(header, "class", "color")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("output: writing CSV header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatFloat(r.X, 'f', -1, 64),
			strconv.FormatFloat(r.Y, 'f', -1, 64),
			r.Time,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
		}
		if categorical {
			rec = append(rec, r.Class, r.Color)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("output: writing CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// varColumnLabel appends a variable's unit symbol, as rendered by
// unit.Dimensions.String, to its name ("pm25_kg m^-3"). A variable with
// no registered dimensions is left unlabeled.
func varColumnLabel(varname string, dims unit.Dimensions) string {
	if len(dims) == 0 {
		return varname
	}
	return fmt.Sprintf("%s_%s", varname, dims.String())
}

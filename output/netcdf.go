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

package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/stuckyb/geocdl"
)

// WriteNetCDF writes r to path as a classic-model NetCDF file with "lat"
// and "lon" dimension variables and a single two-dimensional data
// variable named varname. CRS and nodata metadata are carried as global
// and variable attributes since classic NetCDF has no native CRS type.
func WriteNetCDF(r *geocdl.Raster, varname string, path string) error {
	if varname == "" {
		varname = "value"
	}
	rows, cols := r.Rows(), r.Cols()

	lats := make([]float64, rows)
	lons := make([]float64, cols)
	py := (r.Bounds[3] - r.Bounds[1]) / float64(rows)
	px := (r.Bounds[2] - r.Bounds[0]) / float64(cols)
	for i := range lats {
		lats[i] = r.Bounds[3] - py*(float64(i)+0.5)
	}
	for i := range lons {
		lons[i] = r.Bounds[0] + px*(float64(i)+0.5)
	}

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{rows, cols})
	h.AddVariable("lat", []string{"lat"}, lats)
	h.AddVariable("lon", []string{"lon"}, lons)
	h.AddVariable(varname, []string{"lat", "lon"}, r.Data.Elements)
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute(varname, "_FillValue", []float64{r.NoDataValue})
	h.AddAttribute(varname, "grid_mapping", "crs")
	h.AddAttribute("", "crs_proj4", r.CRS.Proj4)
	if r.IsCategorical && len(r.RAT) > 0 {
		addFlagAttributes(h, varname, r.RAT, r.ColorMap)
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: creating NetCDF file %s: %w", path, err)
	}
	defer f.Close()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("output: writing NetCDF header for %s: %w", path, err)
	}

	if _, err := cf.Writer("lat", nil, nil).Write(lats); err != nil {
		return fmt.Errorf("output: writing lat variable: %w", err)
	}
	if _, err := cf.Writer("lon", nil, nil).Write(lons); err != nil {
		return fmt.Errorf("output: writing lon variable: %w", err)
	}
	if _, err := cf.Writer(varname, nil, nil).Write(r.Data.Elements); err != nil {
		return fmt.Errorf("output: writing %s variable: %w", varname, err)
	}
	return nil
}

// WriteNetCDFPoints writes rows to path as a classic-model NetCDF file
// with a single "point" dimension and x/y/varname variables, the
// point-request analogue of WriteNetCDF's gridded layout. The rows' Time
// labels are not written. When rows carry
// resolved categorical labels, the distinct value/class/color tuples are
// attached to varname as flag_values/flag_meanings/flag_colors, the same
// convention WriteNetCDF uses for gridded output.
func WriteNetCDFPoints(path, varname string, rows []PointRow) error {
	n := len(rows)
	xs := make([]float64, n)
	ys := make([]float64, n)
	vals := make([]float64, n)
	rat := map[int]string{}
	colors := map[int][3]uint8{}
	for i, r := range rows {
		xs[i], ys[i], vals[i] = r.X, r.Y, r.Value
		if r.Class != "" {
			class := int(r.Value)
			rat[class] = r.Class
			if rgb, ok := parseHexColor(r.Color); ok {
				colors[class] = rgb
			}
		}
	}

	h := cdf.NewHeader([]string{"point"}, []int{n})
	h.AddVariable("x", []string{"point"}, xs)
	h.AddVariable("y", []string{"point"}, ys)
	h.AddVariable(varname, []string{"point"}, vals)
	if len(rat) > 0 {
		addFlagAttributes(h, varname, rat, colors)
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: creating NetCDF file %s: %w", path, err)
	}
	defer f.Close()

	cf, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("output: writing NetCDF header for %s: %w", path, err)
	}
	if _, err := cf.Writer("x", nil, nil).Write(xs); err != nil {
		return fmt.Errorf("output: writing x variable: %w", err)
	}
	if _, err := cf.Writer("y", nil, nil).Write(ys); err != nil {
		return fmt.Errorf("output: writing y variable: %w", err)
	}
	if _, err := cf.Writer(varname, nil, nil).Write(vals); err != nil {
		return fmt.Errorf("output: writing %s variable: %w", varname, err)
	}
	return nil
}

// addFlagAttributes attaches the CF discrete-sampling "flag" convention to
// varname: flag_values lists each class's raw integer value, flag_meanings
// gives the corresponding space-separated labels, and flag_colors (when
// every class has a registered color) gives matching "#RRGGBB" values in
// the same order. Classes are sorted by value for deterministic output.
func addFlagAttributes(h *cdf.Header, varname string, rat map[int]string, colorMap map[int][3]uint8) {
	classes := make([]int, 0, len(rat))
	for c := range rat {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	flagValues := make([]float64, len(classes))
	meanings := make([]string, len(classes))
	colors := make([]string, len(classes))
	haveAllColors := true
	for i, c := range classes {
		flagValues[i] = float64(c)
		meanings[i] = rat[c]
		if rgb, ok := colorMap[c]; ok {
			colors[i] = fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2])
		} else {
			haveAllColors = false
		}
	}

	h.AddAttribute(varname, "flag_values", flagValues)
	h.AddAttribute(varname, "flag_meanings", strings.Join(meanings, " "))
	if haveAllColors {
		h.AddAttribute(varname, "flag_colors", strings.Join(colors, " "))
	}
}

// parseHexColor parses a "#RRGGBB" string back into its RGB components,
// the inverse of the formatting request/handler.go uses when resolving a
// point's categorical color.
func parseHexColor(s string) ([3]uint8, bool) {
	var rgb [3]uint8
	if len(s) != 7 || s[0] != '#' {
		return rgb, false
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02X%02X%02X", &r, &g, &b); err != nil {
		return rgb, false
	}
	return [3]uint8{r, g, b}, true
}

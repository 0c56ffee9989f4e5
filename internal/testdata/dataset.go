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

// Package testdata provides an in-memory geocdl.Dataset implementation
// for use as a test double, so that catalog/grain/validation/request
// tests don't need a real raster or point data source on disk.
package testdata

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	"github.com/stuckyb/geocdl"
)

// cacheEntries bounds the in-memory LRU cache every Dataset keeps of its
// last-computed tiles, mirroring the small fixed-size memory cache
// sr.Reader.sourceCache keeps in front of its own on-demand tile loads.
const cacheEntries = 64

// tileResult is the payload GetData's requestcache.Cache caches: at most
// one of Raster or Points is set, matching GetData's own return shape.
type tileResult struct {
	Raster *geocdl.Raster
	Points *geocdl.PointData
}

// tileRequest is the cache key material for one GetData call.
type tileRequest struct {
	varname      string
	grain        geocdl.Grain
	rdate        geocdl.RequestDate
	interpMethod string
	subsetGeom   *geocdl.SubsetGeom
}

// Dataset is a synthetic, deterministic geocdl.Dataset. GetData never
// touches disk or network: raster cells and point values are derived
// directly from the requested coordinates and date, which makes
// assertions in tests exact rather than approximate.
type Dataset struct {
	Caps geocdl.Capabilities

	// Rows and Cols size every raster GetData returns. Both default to 4
	// if left zero.
	Rows, Cols int

	// SparseDates, when set, restricts GetData to returning data only for
	// the named dates (formatted via RequestDate.String), modeling a
	// dataset with intermittent real-world coverage (e.g. satellite
	// revisit gaps). A nil map means every requested date returns data.
	SparseDates map[string]bool

	// Point, when true, makes GetData return PointData (one value per
	// coordinate in subsetGeom.MultiPoint) instead of a Raster for any
	// subsetGeom. A MultiPoint subsetGeom yields PointData whether or not
	// Point is set.
	Point bool

	// Categorical, RAT, and ColorMap, when set via WithCategorical, make
	// GetData return class indices drawn from RAT instead of continuous
	// values, with IsCategorical/RAT/ColorMap populated on the result.
	Categorical bool
	RAT         map[int]string
	ColorMap    map[int][3]uint8

	cache *requestcache.Cache
}

// New returns a Dataset with the given ID/CRS/grid metadata and sensible
// defaults for everything else, ready to have its DateRanges and Vars
// filled in by the caller.
func New(id string, crs *geocdl.CRS, gridSize float64, gridUnit string) *Dataset {
	return &Dataset{
		Caps: geocdl.Capabilities{
			ID:         id,
			Name:       id,
			CRS:        crs,
			GridSize:   gridSize,
			GridUnit:   gridUnit,
			Vars:       map[string]string{},
			DateRanges: map[geocdl.Grain]geocdl.DateRange{},
		},
		Rows: 4,
		Cols: 4,
	}
}

// WithVar registers varname (with a human-readable description) on d and
// returns d, for chained construction.
func (d *Dataset) WithVar(varname, description string) *Dataset {
	d.Caps.Vars[varname] = description
	return d
}

// WithUnits registers varname's physical dimensions on d and returns d,
// for chained construction. Call after WithVar.
func (d *Dataset) WithUnits(varname string, dims unit.Dimensions) *Dataset {
	if d.Caps.VarUnits == nil {
		d.Caps.VarUnits = map[string]unit.Dimensions{}
	}
	d.Caps.VarUnits[varname] = dims
	return d
}

// WithDateRange registers availability for grain spanning [start, end]
// and returns d, for chained construction.
func (d *Dataset) WithDateRange(grain geocdl.Grain, start, end geocdl.RequestDate) *Dataset {
	d.Caps.DateRanges[grain] = geocdl.DateRange{Start: &start, End: &end}
	return d
}

// WithCategorical marks d as a categorical dataset (land cover, soil
// type) and returns d, for chained construction. GetData's usual
// position/date-derived value is reduced into a valid rat key, so output
// stays deterministic while only ever emitting classes rat defines.
func (d *Dataset) WithCategorical(rat map[int]string, colorMap map[int][3]uint8) *Dataset {
	d.Categorical = true
	d.RAT = rat
	d.ColorMap = colorMap
	return d
}

// classFor reduces a continuous synthetic value into one of d.RAT's keys.
func (d *Dataset) classFor(raw float64) float64 {
	keys := make([]int, 0, len(d.RAT))
	for k := range d.RAT {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return 0
	}
	sort.Ints(keys)
	idx := int(math.Round(raw)) % len(keys)
	if idx < 0 {
		idx += len(keys)
	}
	return float64(keys[idx])
}

// Capabilities implements geocdl.Dataset.
func (d *Dataset) Capabilities() geocdl.Capabilities {
	return d.Caps
}

// GetData implements geocdl.Dataset. For a point request it returns one
// value per coordinate in subsetGeom.MultiPoint; for a raster request it
// returns a Rows x Cols grid covering subsetGeom's bounds. Every returned
// value is derived from its cell's position and the request date, so a
// test can predict the exact value a given call should produce.
//
// Repeated calls with the same (varname, grain, rdate, interpMethod,
// subsetGeom bounds) are served from an in-memory LRU rather than
// recomputed, the same last-tile cache sr.Reader keeps in front of its
// own on-demand grid loads.
func (d *Dataset) GetData(ctx context.Context, varname string, grain geocdl.Grain, rdate geocdl.RequestDate, interpMethod string, subsetGeom *geocdl.SubsetGeom) (*geocdl.Raster, *geocdl.PointData, error) {
	if _, ok := d.Caps.Vars[varname]; !ok {
		return nil, nil, fmt.Errorf("testdata: unknown variable %q", varname)
	}
	if d.SparseDates != nil && grain != geocdl.NoGrain {
		if !d.SparseDates[rdate.String()] {
			return nil, nil, nil
		}
	}
	if subsetGeom == nil {
		return nil, nil, fmt.Errorf("testdata: GetData requires a subset geometry")
	}

	d.ensureCache()
	key := fmt.Sprintf("%s|%s|%s|%s|%v", d.Caps.ID, varname, rdate.String(), interpMethod, subsetGeom.BBoxString())
	req := d.cache.NewRequest(ctx, tileRequest{
		varname:      varname,
		grain:        grain,
		rdate:        rdate,
		interpMethod: interpMethod,
		subsetGeom:   subsetGeom,
	}, key)
	result, err := req.Result()
	if err != nil {
		return nil, nil, err
	}
	tr := result.(tileResult)
	return tr.Raster, tr.Points, nil
}

// ensureCache lazily builds d's requestcache.Cache on first use: a
// Dataset constructed via New has no goroutines running until something
// actually calls GetData.
func (d *Dataset) ensureCache() {
	if d.cache != nil {
		return
	}
	d.cache = requestcache.NewCache(d.compute, 1, requestcache.Memory(cacheEntries))
}

// compute is requestcache's ProcessFunc: the actual synthetic-data
// generation GetData used to do directly, now run only on a cache miss.
func (d *Dataset) compute(ctx context.Context, payload interface{}) (interface{}, error) {
	tr := payload.(tileRequest)
	subsetGeom := tr.subsetGeom
	dateWeight := float64(tr.rdate.Year)

	if d.Point || subsetGeom.Kind == geocdl.GeomMultiPoint {
		n := len(subsetGeom.MultiPoint)
		values := make([]float64, n)
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i, p := range subsetGeom.MultiPoint {
			xs[i], ys[i] = p.X, p.Y
			raw := p.X + p.Y + dateWeight
			if d.Categorical {
				raw = d.classFor(raw)
			}
			values[i] = raw
		}
		return tileResult{Points: &geocdl.PointData{
			X: xs, Y: ys, Values: values, CRS: d.Caps.CRS, NoDataValue: -9999,
			IsCategorical: d.Categorical, RAT: d.RAT, ColorMap: d.ColorMap,
		}}, nil
	}

	rows, cols := d.Rows, d.Cols
	if rows == 0 {
		rows = 4
	}
	if cols == 0 {
		cols = 4
	}
	b := subsetGeom.Bounds()
	arr := sparse.ZerosDense(rows, cols)
	dx := (b.Max.X - b.Min.X) / float64(cols)
	dy := (b.Max.Y - b.Min.Y) / float64(rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := b.Min.X + dx*(float64(c)+0.5)
			y := b.Max.Y - dy*(float64(r)+0.5)
			raw := x + y + dateWeight
			if d.Categorical {
				raw = d.classFor(raw)
			}
			arr.Set(raw, r, c)
		}
	}

	return tileResult{Raster: &geocdl.Raster{
		Data:          arr,
		CRS:           d.Caps.CRS,
		Bounds:        [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
		NoDataValue:   -9999,
		IsCategorical: d.Categorical,
		RAT:           d.RAT,
		ColorMap:      d.ColorMap,
	}}, nil
}

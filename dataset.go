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
	"context"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// DateRange is an inclusive [Start, End] span of RequestDates at a single
// grain. A dataset with no coverage at a grain leaves Start and End nil.
type DateRange struct {
	Start *RequestDate
	End   *RequestDate
}

// Covers reports whether d falls within r, inclusive.
func (r DateRange) Covers(d RequestDate) bool {
	if r.Start == nil || r.End == nil {
		return false
	}
	return !d.Before(*r.Start) && !d.AsTime().After(r.End.AsTime())
}

// Capabilities describes the static, queryable properties of a dataset:
// its variables, native CRS, grid resolution, and temporal coverage per
// grain. It is the Go analogue of GSDataSet's instance attributes.
type Capabilities struct {
	ID             string
	Name           string
	URL            string
	Description    string
	ProviderName   string
	ProviderURL    string
	CRS            *CRS
	GridSize       float64
	GridUnit       string
	Vars           map[string]string
	// VarUnits optionally carries each variable's physical dimensions,
	// the same unit.Dimensions bookkeeping atmospheric-chemistry variables
	// (PM2.5 components, deposition fluxes) carry on their concentration
	// fields. A variable absent from this map is treated as dimensionless
	// for output labeling purposes.
	VarUnits       map[string]unit.Dimensions
	DateRanges     map[Grain]DateRange
}

// VarUnit returns the physical dimensions registered for varname, or nil
// if none were given.
func (c Capabilities) VarUnit(varname string) unit.Dimensions {
	return c.VarUnits[varname]
}

// SupportedGrains lists the grains for which DateRanges has coverage,
// ordered Annual, Monthly, Daily. A dataset with no temporal axis at all
// (e.g. a static layer) returns nil.
func (c Capabilities) SupportedGrains() []Grain {
	var out []Grain
	for _, g := range []Grain{Annual, Monthly, Daily} {
		if r, ok := c.DateRanges[g]; ok && r.Start != nil {
			out = append(out, g)
		}
	}
	return out
}

// Raster is gridded data returned by a Dataset, backed by a dense array
// whose Shape is [rows, cols]. Categorical datasets (land cover classes,
// soil types) populate RAT with the class-value -> label mapping so that
// output writers can carry it through as a raster attribute table.
type Raster struct {
	Data         *sparse.DenseArray
	CRS          *CRS
	// Bounds gives the [minx, miny, maxx, maxy] extent of the grid in CRS
	// units.
	Bounds       [4]float64
	NoDataValue  float64
	IsCategorical bool
	RAT          map[int]string
	ColorMap     map[int][3]uint8
}

// Rows and Cols read the raster's grid dimensions out of its Shape.
func (r *Raster) Rows() int { return r.Data.Shape[0] }
func (r *Raster) Cols() int { return r.Data.Shape[1] }

// PointData is data interpolated to a fixed set of (x, y) locations,
// returned when a request's subset geometry is a set of points rather
// than a polygon. A categorical variable populates RAT/ColorMap the same
// way Raster does, so point output can resolve each interpolated value
// to a class name and color rather than a raw number.
type PointData struct {
	X, Y          []float64
	Values        []float64
	CRS           *CRS
	NoDataValue   float64
	IsCategorical bool
	RAT           map[int]string
	ColorMap      map[int][3]uint8
}

// Dataset is the contract every catalog entry implements: given a
// variable, a date at a supported grain, an interpolation method, and an
// optional subset geometry, it returns either gridded or point data.
// Implementations are responsible for reprojecting subsetGeom into their
// own native CRS if it isn't already.
type Dataset interface {
	Capabilities() Capabilities
	GetData(ctx context.Context, varname string, grain Grain, rdate RequestDate, interpMethod string, subsetGeom *SubsetGeom) (*Raster, *PointData, error)
}

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
	"strconv"

	"github.com/ctessum/geom"
)

// GeomKind distinguishes the two shapes a subset request may carry.
type GeomKind int

const (
	GeomPolygon GeomKind = iota
	GeomMultiPoint
)

func (k GeomKind) String() string {
	if k == GeomMultiPoint {
		return "multipoint"
	}
	return "polygon"
}

// SubsetGeom is a CRS-tagged geometry used to describe the area or set of
// points a request should be clipped to. Exactly one of Polygon or
// MultiPoint is populated, selected by Kind: a polygon-or-points union
// rather than two separate request types, because every downstream
// consumer (buffering, reprojection, clipping) needs to treat both
// uniformly.
type SubsetGeom struct {
	Kind      GeomKind
	Polygon   geom.Polygon
	MultiPoint geom.MultiPoint
	CRS       *CRS
}

// NewPolygonSubsetGeom builds a polygon SubsetGeom.
func NewPolygonSubsetGeom(p geom.Polygon, crs *CRS) *SubsetGeom {
	return &SubsetGeom{Kind: GeomPolygon, Polygon: p, CRS: crs}
}

// NewMultiPointSubsetGeom builds a multipoint SubsetGeom.
func NewMultiPointSubsetGeom(mp geom.MultiPoint, crs *CRS) *SubsetGeom {
	return &SubsetGeom{Kind: GeomMultiPoint, MultiPoint: mp, CRS: crs}
}

// Geometry returns the underlying geom.Geom regardless of Kind.
func (s *SubsetGeom) Geometry() geom.Geom {
	if s.Kind == GeomMultiPoint {
		return s.MultiPoint
	}
	return s.Polygon
}

// Bounds returns the bounding box of the underlying geometry.
func (s *SubsetGeom) Bounds() *geom.Bounds {
	return s.Geometry().Bounds()
}

// Reproject returns a copy of s transformed into targetCRS. When s is
// already in targetCRS it returns s itself, not a copy.
func (s *SubsetGeom) Reproject(targetCRS *CRS) (*SubsetGeom, error) {
	if s.CRS.Equal(targetCRS) {
		return s, nil
	}
	t, err := s.CRS.SR.NewTransform(targetCRS.SR)
	if err != nil {
		return nil, newErr(ErrCRSMismatch, "building transform from %s to %s: %v", s.CRS.Proj4, targetCRS.Proj4, err)
	}
	g, err := s.Geometry().Transform(t)
	if err != nil {
		return nil, newErr(ErrCRSMismatch, "reprojecting geometry: %v", err)
	}
	out := &SubsetGeom{Kind: s.Kind, CRS: targetCRS}
	switch v := g.(type) {
	case geom.Polygon:
		out.Polygon = v
	case geom.MultiPoint:
		out.MultiPoint = v
	default:
		return nil, newErr(ErrGeomKindMismatch, "transform returned unexpected geometry type %T", g)
	}
	return out, nil
}

// Buffer dilates the subset geometry's bounding box outward by width on
// every side, in the geometry's own CRS units, and returns a new polygon
// SubsetGeom covering that expanded box.
//
// The underlying geom library has no polygon-offsetting primitive, and
// the buffer's only purpose in this pipeline is to overfetch a safety
// margin before a later clip against the original, unbuffered geometry.
// A conservative bounding-box dilation is a strict superset of a true
// geometric buffer and is sufficient here.
func (s *SubsetGeom) Buffer(width float64) *SubsetGeom {
	b := s.Bounds()
	poly := geom.Polygon{{
		{X: b.Min.X - width, Y: b.Min.Y - width},
		{X: b.Max.X + width, Y: b.Min.Y - width},
		{X: b.Max.X + width, Y: b.Max.Y + width},
		{X: b.Min.X - width, Y: b.Max.Y + width},
		{X: b.Min.X - width, Y: b.Min.Y - width},
	}}
	return &SubsetGeom{Kind: GeomPolygon, Polygon: poly, CRS: s.CRS}
}

// BBoxString formats the bounding box as "minx,miny,maxx,maxy", the form
// used by raster-clipping helpers that accept an extent rather than a
// polygon mask.
func (s *SubsetGeom) BBoxString() string {
	b := s.Bounds()
	return formatBBox(b)
}

func formatBBox(b *geom.Bounds) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.Min.X) + "," + f(b.Min.Y) + "," + f(b.Max.X) + "," + f(b.Max.Y)
}

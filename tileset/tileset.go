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

// Package tileset indexes a dataset stored on disk as a collection of
// spatially contiguous tile files, and finds which tiles intersect a
// requested subset geometry.
package tileset

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/stuckyb/geocdl"
)

// Tile is one file in a TileSet, together with the ground footprint it
// covers.
type Tile struct {
	Path   string
	Bounds *geom.Bounds
}

// TileSet is a spatial index over a fixed collection of on-disk tile
// files, sufficient to answer "which tiles cover this geometry" without
// opening every file on every request.
//
// The vendored geom package here ships without the Rtree package's
// tree-construction API (github.com/ctessum/geom/index/rtree), so this
// builds an intersects-against-every-tile predicate directly against
// geom.Bounds rather than through a spatial tree. A dataset with
// thousands of tiles would want a real index; GeoCDL's datasets are tens
// to low hundreds of tiles per dataset, where a linear scan is not a
// bottleneck.
type TileSet struct {
	CRS   *geocdl.CRS
	Tiles []Tile
}

// New builds a TileSet from a set of file paths and matching bounds,
// typically gathered by opening each tile's header once at catalog
// registration time.
func New(crs *geocdl.CRS, paths []string, bounds []*geom.Bounds) (*TileSet, error) {
	if len(paths) != len(bounds) {
		return nil, fmt.Errorf("tileset: %d paths but %d bounds", len(paths), len(bounds))
	}
	ts := &TileSet{CRS: crs}
	for i, p := range paths {
		ts.Tiles = append(ts.Tiles, Tile{Path: p, Bounds: bounds[i]})
	}
	return ts, nil
}

// Bounds returns the bounding box of the entire tile set.
func (t *TileSet) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, tile := range t.Tiles {
		b.Extend(tile.Bounds)
	}
	return b
}

// TilePaths returns the paths of every tile whose bounds intersect the
// given subset geometry's bounds. subsetGeom must already be in the tile
// set's CRS.
func (t *TileSet) TilePaths(subsetGeom *geocdl.SubsetGeom) ([]string, error) {
	if !t.CRS.Equal(subsetGeom.CRS) {
		return nil, fmt.Errorf("tileset: CRS of the subset geometry does not match the CRS of the data tiles")
	}

	sb := subsetGeom.Bounds()
	var paths []string
	for _, tile := range t.Tiles {
		if boundsIntersect(tile.Bounds, sb) {
			paths = append(paths, tile.Path)
		}
	}
	if len(paths) == 0 {
		return nil, &geocdl.Error{Kind: geocdl.ErrNoTiles, Msg: "no tiles intersect the requested subset geometry"}
	}
	return paths, nil
}

func boundsIntersect(a, b *geom.Bounds) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X && a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y
}

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
	"strconv"

	"github.com/airbusgeo/godal"
	"github.com/ctessum/sparse"
	"github.com/stuckyb/geocdl"
)

func init() {
	godal.RegisterAll()
}

// WriteGeoTIFF writes r to path as a single-band GeoTIFF. Categorical
// rasters get their RAT/colormap written as a GDAL raster attribute
// table and color table so that downstream GIS tools show class labels
// and colors rather than raw values.
func WriteGeoTIFF(r *geocdl.Raster, path string) error {
	rows, cols := r.Rows(), r.Cols()

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, cols, rows,
		godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("output: creating GeoTIFF %s: %w", path, err)
	}
	defer ds.Close()

	px := (r.Bounds[2] - r.Bounds[0]) / float64(cols)
	py := (r.Bounds[3] - r.Bounds[1]) / float64(rows)
	gt := [6]float64{r.Bounds[0], px, 0, r.Bounds[3], 0, -py}
	if err := ds.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("output: setting geotransform: %w", err)
	}
	if err := ds.SetProjection(r.CRS.Proj4); err != nil {
		return fmt.Errorf("output: setting projection: %w", err)
	}

	bands := ds.Bands()
	if len(bands) != 1 {
		return fmt.Errorf("output: expected 1 band, got %d", len(bands))
	}
	band := bands[0]

	if err := band.Write(0, 0, r.Data.Elements, cols, rows); err != nil {
		return fmt.Errorf("output: writing raster data: %w", err)
	}
	if err := band.SetNoData(r.NoDataValue); err != nil {
		return fmt.Errorf("output: setting nodata value: %w", err)
	}

	if r.IsCategorical && len(r.RAT) > 0 {
		if err := writeRAT(band, r.RAT); err != nil {
			return fmt.Errorf("output: writing raster attribute table: %w", err)
		}
	}
	if r.IsCategorical && len(r.ColorMap) > 0 {
		if err := writeColorTable(band, r.ColorMap); err != nil {
			return fmt.Errorf("output: writing color table: %w", err)
		}
	}

	return nil
}

// writeRAT attaches a GDAL raster attribute table mapping each class
// value to its label, so GIS viewers can show "cropland" instead of "5".
func writeRAT(band godal.Band, rat map[int]string) error {
	rt := godal.RasterAttributeTable{
		Fields: []godal.RATField{
			{Name: "Value", Type: godal.RAT_Integer, Usage: godal.RAT_MinMax},
			{Name: "Label", Type: godal.RAT_String, Usage: godal.RAT_Name},
		},
	}
	rows := make([][2]interface{}, 0, len(rat))
	for val, label := range rat {
		rows = append(rows, [2]interface{}{val, label})
	}
	rt.Rows = rows
	return band.SetRasterAttributeTable(rt)
}

// writeColorTable attaches an RGB color table keyed by class value.
func writeColorTable(band godal.Band, colors map[int][3]uint8) error {
	ct := godal.ColorTable{Entries: make(map[int][4]int16, len(colors))}
	for val, rgb := range colors {
		ct.Entries[val] = [4]int16{int16(rgb[0]), int16(rgb[1]), int16(rgb[2]), 255}
	}
	return band.SetColorTable(ct)
}

// ReadGeoTIFF opens the single-band GeoTIFF at path and reads it back
// into a Raster, so a warped/reproject-matched file written by
// WarpRaster or ReprojectMatch can be handed to a writer that doesn't
// itself go through GDAL, such as WriteNetCDF. Categorical metadata
// (IsCategorical/RAT/ColorMap) isn't round-tripped through the GDAL RAT
// or color table; callers that need it carried through should copy it
// from the pre-warp Raster onto the result.
func ReadGeoTIFF(path string) (*geocdl.Raster, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("output: opening GeoTIFF %s: %w", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	cols, rows := structure.SizeX, structure.SizeY

	bands := ds.Bands()
	if len(bands) != 1 {
		return nil, fmt.Errorf("output: expected 1 band in %s, got %d", path, len(bands))
	}
	band := bands[0]

	data := make([]float64, cols*rows)
	if err := band.Read(0, 0, data, cols, rows); err != nil {
		return nil, fmt.Errorf("output: reading raster data from %s: %w", path, err)
	}
	noData, _ := band.NoData()

	wkt, err := ds.SpatialRef().WKT()
	if err != nil {
		return nil, fmt.Errorf("output: reading projection from %s: %w", path, err)
	}
	crs, err := geocdl.ParseCRS(wkt)
	if err != nil {
		return nil, fmt.Errorf("output: parsing projection from %s: %w", path, err)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("output: reading geotransform from %s: %w", path, err)
	}
	minx, maxy := gt[0], gt[3]
	maxx := minx + gt[1]*float64(cols)
	miny := maxy + gt[5]*float64(rows)

	arr := sparse.ZerosDense(rows, cols)
	copy(arr.Elements, data)

	return &geocdl.Raster{
		Data:        arr,
		CRS:         crs,
		Bounds:      [4]float64{minx, miny, maxx, maxy},
		NoDataValue: noData,
	}, nil
}

// ReprojectMatch reprojects src to exactly match target's grid (CRS,
// resolution, and extent), the harmonization-anchor step that keeps a
// request's later datasets aligned to whichever dataset was written
// first.
func ReprojectMatch(src *geocdl.Raster, targetPath, outPath, resampleMethod string) (string, error) {
	srcPath, err := writeTempGeoTIFF(src)
	if err != nil {
		return "", err
	}
	defer godal.VSIUnlink(srcPath)

	target, err := godal.Open(targetPath)
	if err != nil {
		return "", fmt.Errorf("output: opening harmonization target %s: %w", targetPath, err)
	}
	defer target.Close()

	gt, err := target.GeoTransform()
	if err != nil {
		return "", fmt.Errorf("output: reading harmonization target geotransform: %w", err)
	}
	structure := target.Structure()
	minx := gt[0]
	maxy := gt[3]
	maxx := minx + gt[1]*float64(structure.SizeX)
	miny := maxy + gt[5]*float64(structure.SizeY)
	targetSRS, err := target.SpatialRef().WKT()
	if err != nil {
		return "", fmt.Errorf("output: reading harmonization target SRS: %w", err)
	}

	srcDS, err := godal.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("output: opening source raster for reprojection: %w", err)
	}
	defer srcDS.Close()

	switches := []string{
		"-t_srs", targetSRS,
		"-te", fstr(minx), fstr(miny), fstr(maxx), fstr(maxy),
		"-ts", fmt.Sprintf("%d", structure.SizeX), fmt.Sprintf("%d", structure.SizeY),
		"-r", resampleAlgName(resampleMethod),
	}
	if _, err := srcDS.Warp(outPath, nil, switches); err != nil {
		return "", fmt.Errorf("output: reproject-matching raster: %w", err)
	}
	return outPath, nil
}

// WarpRaster reprojects src into targetCRS, optionally resampling to
// targetResolution (in targetCRS units) and cropping to bounds
// ([minx, miny, maxx, maxy], also in targetCRS units), writing the result
// to outPath. bounds may be nil to skip cropping; targetResolution may be
// nil to let GDAL choose a resolution consistent with src's native pixel
// size.
func WarpRaster(src *geocdl.Raster, targetCRS *geocdl.CRS, targetResolution *float64, bounds *[4]float64, resampleMethod, outPath string) (string, error) {
	srcPath, err := writeTempGeoTIFF(src)
	if err != nil {
		return "", err
	}
	defer godal.VSIUnlink(srcPath)

	srcDS, err := godal.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("output: opening source raster for reprojection: %w", err)
	}
	defer srcDS.Close()

	switches := []string{"-t_srs", targetCRS.Proj4, "-r", resampleAlgName(resampleMethod)}
	if targetResolution != nil {
		switches = append(switches, "-tr", fstr(*targetResolution), fstr(*targetResolution))
	}
	if bounds != nil {
		switches = append(switches, "-te", fstr(bounds[0]), fstr(bounds[1]), fstr(bounds[2]), fstr(bounds[3]))
	}

	if _, err := srcDS.Warp(outPath, nil, switches); err != nil {
		return "", fmt.Errorf("output: reprojecting raster: %w", err)
	}
	return outPath, nil
}

func writeTempGeoTIFF(r *geocdl.Raster) (string, error) {
	path := fmt.Sprintf("/vsimem/geocdl_%p.tif", r)
	if err := WriteGeoTIFF(r, path); err != nil {
		return "", err
	}
	return path, nil
}

func fstr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func resampleAlgName(method string) string {
	switch method {
	case "bilinear", "cubic", "lanczos", "average", "mode":
		return method
	case "cubic-spline":
		return "cubicspline"
	default:
		return "near"
	}
}

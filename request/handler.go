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

// Package request orchestrates fulfilling a validated DataRequest: it
// walks every requested dataset/variable/date, retrieves the data,
// harmonizes and reprojects it as needed, writes it in the requested
// output format, and packages the results into a single archive.
package request

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/unit"
	"github.com/gonum/floats"
	"github.com/google/uuid"
	"github.com/stuckyb/geocdl"
	"github.com/stuckyb/geocdl/catalog"
	"github.com/stuckyb/geocdl/output"
)

// metresPerDegree approximates the length of a degree of longitude at the
// equator, used to convert a dataset's grid size between metres and
// degrees when a request's subset geometry and the dataset's native grid
// aren't in the same kind of unit.
const metresPerDegree = 111000.0

// Handler fulfills DataRequests against a Catalog, writing intermediate
// and output files under a scratch directory beneath OutputDir.
type Handler struct {
	Catalog   *catalog.Catalog
	OutputDir string
}

// NewHandler returns a Handler that looks up datasets in cat and stages
// its work under outputDir.
func NewHandler(cat *catalog.Catalog, outputDir string) *Handler {
	return &Handler{Catalog: cat, OutputDir: outputDir}
}

// Fulfill retrieves every dataset/variable/date combination req names,
// harmonizes and packages the results, and returns the path to the
// resulting ZIP archive. This mirrors fulfillRequestSynchronous: a single
// blocking call that returns a ready-to-download file.
func (h *Handler) Fulfill(ctx context.Context, req *geocdl.DataRequest) (string, error) {
	caps := h.Catalog.Capabilities()
	nontemporal := h.Catalog.NonTemporalSet()

	dsSubsetGeoms, err := h.bufferedSubsetGeoms(req, caps)
	if err != nil {
		return "", err
	}

	scratch := filepath.Join(h.OutputDir, "geocdl_subset_"+randSuffix())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return "", fmt.Errorf("request: creating scratch directory: %w", err)
	}

	var outFiles []string
	var harmonizeTarget string
	pointRows := map[string]*pointAccumulator{}
	var pointKeyOrder []string

	for _, dsid := range req.DatasetOrder {
		ds, err := h.Catalog.Get(dsid)
		if err != nil {
			return "", err
		}
		dsGrain := req.DatasetGrains[dsid]

		var dates []geocdl.RequestDate
		temporal := !nontemporal[dsid]
		if temporal {
			dates = req.DatasetDates[dsid]
		}

		// req.DatasetVars[dsid] already preserves the caller's
		// variable-declaration order (ParseDatasetsString splits on "," in
		// order), so archive entries follow dataset order, then variable
		// order, then date ascending.
		varnames := req.DatasetVars[dsid]
		for _, varname := range varnames {
			if !temporal {
				path, auxPath, rows, err := h.retrieveOne(ctx, req, ds, dsid, varname, geocdl.NoGrain, geocdl.RequestDate{}, false, dsSubsetGeoms[dsid], scratch, &harmonizeTarget)
				if err != nil {
					return "", err
				}
				if path != "" {
					outFiles = append(outFiles, path)
				}
				if auxPath != "" {
					outFiles = append(outFiles, auxPath)
				}
				if rows != nil {
					key := dsid + "_" + varname
					acc := pointRows[key]
					if acc == nil {
						acc = &pointAccumulator{Varname: varname, Dims: caps[dsid].VarUnit(varname)}
						pointRows[key] = acc
						pointKeyOrder = append(pointKeyOrder, key)
					}
					acc.Rows = append(acc.Rows, rows...)
				}
				continue
			}
			for _, rdate := range dates {
				path, auxPath, rows, err := h.retrieveOne(ctx, req, ds, dsid, varname, dsGrain, rdate, true, dsSubsetGeoms[dsid], scratch, &harmonizeTarget)
				if err != nil {
					return "", err
				}
				if path != "" {
					outFiles = append(outFiles, path)
				}
				if auxPath != "" {
					outFiles = append(outFiles, auxPath)
				}
				if rows != nil {
					key := dsid + "_" + varname
					acc := pointRows[key]
					if acc == nil {
						acc = &pointAccumulator{Varname: varname, Dims: caps[dsid].VarUnit(varname)}
						pointRows[key] = acc
						pointKeyOrder = append(pointKeyOrder, key)
					}
					acc.Rows = append(acc.Rows, rows...)
				}
			}
		}
	}

	for _, key := range pointKeyOrder {
		paths, err := h.writePointLayer(scratch, key, pointRows[key], req)
		if err != nil {
			return "", err
		}
		outFiles = append(outFiles, paths...)
	}

	metadata := req.Metadata(caps)
	zipPath, err := output.PackageArchive(scratch, outFiles, metadata)
	if err != nil {
		return "", err
	}
	return zipPath, nil
}

// retrieveOne retrieves a single dataset/variable/date combination and
// writes it to disk, returning either a raster output file path or a
// slice of point rows to be accumulated for later writing, matching
// _getRasterLayer/_getPointLayer's "no data for this date" semantics: a
// nil Raster/PointData from GetData means this combination is skipped,
// not an error (sparse daily coverage).
func (h *Handler) retrieveOne(
	ctx context.Context,
	req *geocdl.DataRequest,
	ds geocdl.Dataset,
	dsid, varname string,
	grain geocdl.Grain,
	rdate geocdl.RequestDate,
	hasDate bool,
	subsetGeom *geocdl.SubsetGeom,
	scratch string,
	harmonizeTarget *string,
) (string, string, []output.PointRow, error) {
	raster, points, err := ds.GetData(ctx, varname, grain, rdate, req.RIMethod, subsetGeom)
	if err != nil {
		return "", "", nil, fmt.Errorf("request: retrieving %s/%s: %w", dsid, varname, err)
	}

	switch {
	case raster != nil && req.RequestType == geocdl.RequestRaster:
		name := singleLayerFileName(dsid, varname, grain, hasDate, rdate)
		path, auxPath, err := h.writeRasterLayer(req, raster, name, scratch, harmonizeTarget)
		return path, auxPath, nil, err
	case points != nil && req.RequestType == geocdl.RequestPoint:
		label := ""
		if hasDate {
			label = rdate.String()
		}
		rows := make([]output.PointRow, len(points.Values))
		for i := range points.Values {
			row := output.PointRow{X: points.X[i], Y: points.Y[i], Time: label, Value: points.Values[i]}
			if points.IsCategorical {
				class := int(points.Values[i])
				row.Class = points.RAT[class]
				if rgb, ok := points.ColorMap[class]; ok {
					row.Color = fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2])
				}
			}
			rows[i] = row
		}
		return "", "", rows, nil
	default:
		return "", "", nil, nil
	}
}

// writeRasterLayer reprojects and/or harmonizes raster to the request's
// target CRS/resolution when the CRS differs or a resolution is set,
// clipping to the request's original (unbuffered) subset geometry's extent
// in that same step, and writes it in the request's output format. A
// raster that needs no reprojection is written as GetData returned it,
// without that clip. The second return value is a GDAL PAM .aux.xml sidecar path
// when a categorical GeoTIFF output produced one, empty otherwise.
func (h *Handler) writeRasterLayer(req *geocdl.DataRequest, raster *geocdl.Raster, name, scratch string, harmonizeTarget *string) (string, string, error) {
	ext := req.FileExtension
	outPath := filepath.Join(scratch, name+ext)

	needsReproject := !req.TargetCRS.Equal(raster.CRS) || req.TargetResolution != nil
	final := raster
	finalPath := ""

	if needsReproject {
		warpPath := filepath.Join(scratch, name+"_warped.tif")
		var bounds *[4]float64
		if req.SubsetGeom != nil {
			b := req.SubsetGeom.Bounds()
			bb := [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
			bounds = &bb
		}

		var warped string
		var err error
		if req.Harmonize && *harmonizeTarget != "" {
			warped, err = output.ReprojectMatch(raster, *harmonizeTarget, warpPath, req.RIMethod)
		} else {
			warped, err = output.WarpRaster(raster, req.TargetCRS, req.TargetResolution, bounds, req.RIMethod, warpPath)
		}
		if err != nil {
			return "", "", err
		}
		finalPath = warped

		reread, err := output.ReadGeoTIFF(finalPath)
		if err != nil {
			return "", "", fmt.Errorf("request: reading back reprojected raster: %w", err)
		}
		reread.IsCategorical = raster.IsCategorical
		reread.RAT = raster.RAT
		reread.ColorMap = raster.ColorMap
		final = reread
	}

	var auxPath string
	if req.OutputFormat == geocdl.FormatGeoTIFF {
		if finalPath != "" {
			// Already a GeoTIFF from the warp step; just place it at the
			// requested output name.
			if err := os.Rename(finalPath, outPath); err != nil {
				return "", "", fmt.Errorf("request: finalizing raster output: %w", err)
			}
		} else if err := output.WriteGeoTIFF(final, outPath); err != nil {
			return "", "", err
		}
		// A categorical raster's attribute table and color table don't fit
		// GeoTIFF's native tags, so GDAL persists them to a PAM .aux.xml
		// sidecar on Close; thread it into the archive alongside the .tif.
		if final.IsCategorical {
			sidecar := outPath + ".aux.xml"
			if _, err := os.Stat(sidecar); err == nil {
				auxPath = sidecar
			}
		}
	} else {
		// NetCDF output: final already holds the reprojected/harmonized
		// grid (read back from the warp step above when one ran), so this
		// always writes the same data the GeoTIFF branch would have.
		if err := output.WriteNetCDF(final, name, outPath); err != nil {
			return "", "", err
		}
	}

	if req.Harmonize && *harmonizeTarget == "" {
		if req.OutputFormat == geocdl.FormatGeoTIFF {
			*harmonizeTarget = outPath
		} else {
			// ReprojectMatch anchors off a GDAL-readable GeoTIFF regardless
			// of the request's own output format, so non-GeoTIFF requests
			// still get harmonization across datasets.
			anchorPath := filepath.Join(scratch, name+"_harmonize_anchor.tif")
			if err := output.WriteGeoTIFF(final, anchorPath); err != nil {
				return "", "", fmt.Errorf("request: writing harmonization anchor: %w", err)
			}
			*harmonizeTarget = anchorPath
		}
	}

	return outPath, auxPath, nil
}

// pointAccumulator buffers one dataset/variable's point rows across every
// requested date, since go-shp and csv.Writer have no convenient
// reopen-and-append mode (see WritePointsCSV).
type pointAccumulator struct {
	Varname string
	Dims    unit.Dimensions
	Rows    []output.PointRow
}

func (h *Handler) writePointLayer(scratch, key string, acc *pointAccumulator, req *geocdl.DataRequest) ([]string, error) {
	varname, rows := acc.Varname, acc.Rows
	path := filepath.Join(scratch, key+req.FileExtension)
	switch req.OutputFormat {
	case geocdl.FormatCSV:
		if err := output.WritePointsCSV(path, varname, rows, acc.Dims); err != nil {
			return nil, err
		}
		return []string{path}, nil
	case geocdl.FormatShapefile:
		prj := ""
		if req.TargetCRS != nil {
			prj = req.TargetCRS.Proj4
		}
		return output.WritePointsShapefile(path, varname, rows, prj)
	case geocdl.FormatNetCDF:
		if err := output.WriteNetCDFPoints(path, varname, rows); err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("request: unsupported point output format %q", req.OutputFormat)
	}
}

// bufferedSubsetGeoms builds, for every dataset a request draws from, a
// version of the request's subset geometry (for a raster request, first
// buffered by the coarsest relevant grid size; a point request's geometry
// is not buffered) reprojected into the dataset's native CRS,
// precomputed once per dataset to avoid redundant reprojections.
func (h *Handler) bufferedSubsetGeoms(req *geocdl.DataRequest, caps map[string]geocdl.Capabilities) (map[string]*geocdl.SubsetGeom, error) {
	out := make(map[string]*geocdl.SubsetGeom, len(req.DatasetVars))
	if req.SubsetGeom == nil {
		return out, nil
	}

	rsg := req.SubsetGeom
	if req.RequestType == geocdl.RequestRaster {
		metric := req.SubsetGeom.CRS.IsMetric()
		sizes := make([]float64, 0, len(req.DatasetVars))
		for dsid := range req.DatasetVars {
			c := caps[dsid]
			size := c.GridSize
			switch {
			case metric && c.GridUnit != "meters":
				size *= metresPerDegree
			case !metric && c.GridUnit == "meters":
				size /= metresPerDegree
			}
			sizes = append(sizes, size)
		}
		maxGrid := 0.0
		if len(sizes) > 0 {
			maxGrid = floats.Max(sizes)
		}
		rsg = req.SubsetGeom.Buffer(maxGrid)
	}

	for dsid := range req.DatasetVars {
		dsCRS := caps[dsid].CRS
		if req.SubsetGeom.CRS.Equal(dsCRS) {
			out[dsid] = rsg
			continue
		}
		reprojected, err := rsg.Reproject(dsCRS)
		if err != nil {
			return nil, err
		}
		out[dsid] = reprojected
	}
	return out, nil
}

// singleLayerFileName builds a raster output's base file name (without
// extension), matching _getSingleLayerOutputFileName's dsid_varname[_date]
// pattern.
func singleLayerFileName(dsid, varname string, grain geocdl.Grain, hasDate bool, rdate geocdl.RequestDate) string {
	if grain == geocdl.NoGrain || !hasDate {
		return dsid + "_" + varname
	}
	return dsid + "_" + varname + "_" + rdate.String()
}

func randSuffix() string {
	return uuid.NewString()[:8]
}

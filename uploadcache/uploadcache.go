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

// Package uploadcache implements an on-disk cache for user-uploaded
// geometry data (CSV points, GeoJSON, or a zipped shapefile), addressed
// by a GUID that the caller embeds in a later subset request.
package uploadcache

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	gjson "github.com/ctessum/geom/encoding/geojson"
	gshp "github.com/ctessum/geom/encoding/shp"
	"github.com/google/uuid"
	"github.com/stuckyb/geocdl"
)

var xColNames = map[string]bool{"x": true, "long": true, "longitude": true}
var yColNames = map[string]bool{"y": true, "lat": true, "latitude": true}

// Cache is an on-disk, GUID-addressed store for uploaded geometry files.
type Cache struct {
	Dir          string
	MaxFileSize  int64
	RetentionAge time.Duration
	ChunkSize    int
}

// New returns a Cache rooted at dir. retentionAge defaults to 4 hours and
// chunkSize to 1 KiB when zero.
func New(dir string, maxFileSize int64, retentionAge time.Duration, chunkSize int) *Cache {
	if retentionAge == 0 {
		retentionAge = 4 * time.Hour
	}
	if chunkSize == 0 {
		chunkSize = 1024
	}
	return &Cache{Dir: dir, MaxFileSize: maxFileSize, RetentionAge: retentionAge, ChunkSize: chunkSize}
}

// AddFile reads r in Cache.ChunkSize chunks, up to MaxFileSize bytes, and
// stores it under a new GUID with the original file's extension
// preserved (used later to guess the file format). It returns
// ERR_UPLOAD_TOO_LARGE if the data doesn't fit.
func (c *Cache) AddFile(r io.Reader, origName string) (string, error) {
	guid := uuid.NewString()
	ext := filepath.Ext(origName)
	fpath := filepath.Join(c.Dir, guid+ext)

	fout, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("uploadcache: creating cache file: %w", err)
	}
	defer fout.Close()

	var total int64
	buf := make([]byte, c.ChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > c.MaxFileSize {
				fout.Close()
				os.Remove(fpath)
				return "", &geocdl.Error{Kind: geocdl.ErrUploadTooLarge, Msg: "uploaded file size exceeded maximum file size"}
			}
			if _, werr := fout.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("uploadcache: writing cache file: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", fmt.Errorf("uploadcache: reading upload: %w", rerr)
		}
	}

	return guid, nil
}

// cacheFile resolves guid to the single on-disk file it names.
func (c *Cache) cacheFile(guid string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.Dir, guid+"*"))
	if err != nil {
		return "", fmt.Errorf("uploadcache: %w", err)
	}
	if len(matches) == 0 {
		return "", &geocdl.Error{Kind: geocdl.ErrUploadNotFound, Msg: fmt.Sprintf("no cached uploaded data found with GUID %s", guid)}
	}
	if len(matches) > 1 {
		return "", &geocdl.Error{Kind: geocdl.ErrUploadNotUnique, Msg: fmt.Sprintf("the provided upload cache GUID %s does not appear to be unique", guid)}
	}
	return matches[0], nil
}

// Contains reports whether guid names exactly one cached file.
func (c *Cache) Contains(guid string) bool {
	_, err := c.cacheFile(guid)
	return err == nil
}

// GetMultiPoint returns the cached geometry named by guid as a
// SubsetGeom of points. crsStr, if non-empty, takes precedence over any
// CRS embedded in the uploaded file (only a shapefile's .prj carries
// one); otherwise the embedded CRS is used, and it is an error if
// neither is available.
func (c *Cache) GetMultiPoint(guid, crsStr string) (*geocdl.SubsetGeom, error) {
	fpath, err := c.cacheFile(guid)
	if err != nil {
		return nil, err
	}

	points, dataCRS, err := readPointsWithFallback(fpath)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, &geocdl.Error{Kind: geocdl.ErrUploadNotParseable, Msg: fmt.Sprintf("no uploaded point data found for GUID %s", guid)}
	}

	crs, err := resolveCRS(crsStr, dataCRS, "multi-point")
	if err != nil {
		return nil, err
	}

	mp := make(geom.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = geom.Point{X: p[0], Y: p[1]}
	}
	return geocdl.NewMultiPointSubsetGeom(mp, crs), nil
}

// GetPolygon returns the cached geometry named by guid as a polygon
// SubsetGeom, following the same extension-then-sniff and CRS precedence
// rules as GetMultiPoint.
func (c *Cache) GetPolygon(guid, crsStr string) (*geocdl.SubsetGeom, error) {
	fpath, err := c.cacheFile(guid)
	if err != nil {
		return nil, err
	}

	poly, dataCRS, err := readPolygonWithFallback(fpath)
	if err != nil {
		return nil, err
	}
	if poly == nil {
		return nil, &geocdl.Error{Kind: geocdl.ErrUploadNotParseable, Msg: fmt.Sprintf("no uploaded polygon data found for GUID %s", guid)}
	}

	crs, err := resolveCRS(crsStr, dataCRS, "polygon")
	if err != nil {
		return nil, err
	}

	return geocdl.NewPolygonSubsetGeom(poly, crs), nil
}

func resolveCRS(crsStr, dataCRS, kind string) (*geocdl.CRS, error) {
	if crsStr == "" {
		crsStr = dataCRS
	}
	if crsStr == "" {
		return nil, &geocdl.Error{Kind: geocdl.ErrCRSMismatch, Msg: fmt.Sprintf("no CRS string provided for %s data", kind)}
	}
	return geocdl.ParseCRS(crsStr)
}

// readPointsWithFallback tries the format implied by fpath's extension
// first, then falls back to trying every supported format in turn: trust
// but verify the uploaded file's extension, since browsers and API
// clients alike sometimes send the wrong one.
func readPointsWithFallback(fpath string) ([][2]float64, string, error) {
	ext := strings.ToLower(filepath.Ext(fpath))
	switch ext {
	case ".csv":
		if pts, err := readCSVPoints(fpath); err == nil && len(pts) > 0 {
			return pts, "", nil
		}
	case ".json", ".geojson":
		if pts, err := readGeoJSONPoints(fpath); err == nil && len(pts) > 0 {
			return pts, "", nil
		}
	case ".zip":
		if pts, crs, err := readShapefilePoints(fpath); err == nil && len(pts) > 0 {
			return pts, crs, nil
		}
	}

	if pts, err := readCSVPoints(fpath); err == nil && len(pts) > 0 {
		return pts, "", nil
	}
	if pts, err := readGeoJSONPoints(fpath); err == nil && len(pts) > 0 {
		return pts, "", nil
	}
	if pts, crs, err := readShapefilePoints(fpath); err == nil && len(pts) > 0 {
		return pts, crs, nil
	}

	return nil, "", nil
}

func readPolygonWithFallback(fpath string) (geom.Polygon, string, error) {
	ext := strings.ToLower(filepath.Ext(fpath))
	switch ext {
	case ".json", ".geojson":
		if poly, err := readGeoJSONPolygon(fpath); err == nil && poly != nil {
			return poly, "", nil
		}
	case ".zip":
		if poly, crs, err := readShapefilePolygon(fpath); err == nil && poly != nil {
			return poly, crs, nil
		}
	}

	if poly, err := readGeoJSONPolygon(fpath); err == nil && poly != nil {
		return poly, "", nil
	}
	if poly, crs, err := readShapefilePolygon(fpath); err == nil && poly != nil {
		return poly, crs, nil
	}

	return nil, "", nil
}

// readCSVPoints reads (x, y) pairs from a CSV file with an x-like column
// ("x", "long", "longitude") and a y-like column ("y", "lat",
// "latitude"), matched case-insensitively.
func readCSVPoints(fpath string) ([][2]float64, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	xCol, yCol := -1, -1
	for i, name := range header {
		if xColNames[strings.ToLower(name)] {
			xCol = i
		}
		if yColNames[strings.ToLower(name)] {
			yCol = i
		}
	}
	if xCol == -1 || yCol == -1 {
		return nil, fmt.Errorf("uploadcache: could not find x and y columns in CSV file")
	}

	var points [][2]float64
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		x, err1 := strconv.ParseFloat(row[xCol], 64)
		y, err2 := strconv.ParseFloat(row[yCol], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("uploadcache: invalid coordinate in CSV row %v", row)
		}
		points = append(points, [2]float64{x, y})
	}
	return points, nil
}

func readGeoJSONPoints(fpath string) ([][2]float64, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	g, err := gjson.Decode(b)
	if err != nil {
		return nil, err
	}
	return extractPoints(g)
}

// extractPoints recursively collects coordinates from Point and
// MultiPoint geometries, including those nested in a GeometryCollection.
func extractPoints(g geom.Geom) ([][2]float64, error) {
	switch v := g.(type) {
	case geom.Point:
		return [][2]float64{{v.X, v.Y}}, nil
	case geom.MultiPoint:
		out := make([][2]float64, len(v))
		for i, p := range v {
			out[i] = [2]float64{p.X, p.Y}
		}
		return out, nil
	case geom.GeometryCollection:
		var out [][2]float64
		for _, sub := range v {
			pts, err := extractPoints(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, pts...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("uploadcache: unsupported geometry type for point data: %T", g)
	}
}

func readGeoJSONPolygon(fpath string) (geom.Polygon, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	g, err := gjson.Decode(b)
	if err != nil {
		return nil, err
	}
	return extractPolygon(g)
}

// extractPolygon extracts a single polygon's outer ring from Polygon and
// single-member MultiPolygon geometries, including those nested in a
// GeometryCollection. Multiple polygons are unsupported: there is no
// reasonable way to guess which one the caller meant.
func extractPolygon(g geom.Geom) (geom.Polygon, error) {
	switch v := g.(type) {
	case geom.Polygon:
		return v, nil
	case geom.MultiPolygon:
		if len(v) > 1 {
			return nil, fmt.Errorf("uploadcache: multiple polygons are not supported")
		}
		return v[0], nil
	case geom.GeometryCollection:
		if len(v) > 1 {
			return nil, fmt.Errorf("uploadcache: multiple polygons are not supported")
		}
		return extractPolygon(v[0])
	default:
		return nil, fmt.Errorf("uploadcache: unsupported geometry type for polygon data: %T", g)
	}
}

// readShapefilePoints and readShapefilePolygon extract a zipped
// shapefile into a scratch directory (the vendored shapefile reader
// operates on real filesystem paths rather than zip members) and decode
// every record's geometry.
func readShapefilePoints(fpath string) ([][2]float64, string, error) {
	dir, shpPath, prj, err := extractZippedShapefile(fpath)
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)

	dec, err := gshp.NewDecoder(shpPath)
	if err != nil {
		return nil, "", err
	}
	defer dec.Close()

	var rec struct {
		Geom geom.Geom
	}
	var points [][2]float64
	for dec.DecodeRow(&rec) {
		pts, err := extractPoints(rec.Geom)
		if err != nil {
			return nil, "", err
		}
		points = append(points, pts...)
	}
	return points, prj, nil
}

func readShapefilePolygon(fpath string) (geom.Polygon, string, error) {
	dir, shpPath, prj, err := extractZippedShapefile(fpath)
	if err != nil {
		return nil, "", err
	}
	defer os.RemoveAll(dir)

	dec, err := gshp.NewDecoder(shpPath)
	if err != nil {
		return nil, "", err
	}
	defer dec.Close()

	var rec struct {
		Geom geom.Geom
	}
	if !dec.DecodeRow(&rec) {
		return nil, "", fmt.Errorf("uploadcache: shapefile contains no records")
	}
	poly, err := extractPolygon(rec.Geom)
	return poly, prj, err
}

// extractZippedShapefile unpacks the single shapefile contained in the
// ZIP archive at fpath into a fresh scratch directory and returns that
// directory, the path (without extension) to the extracted .shp/.dbf/
// .shx set, and the contents of the .prj file, if present.
func extractZippedShapefile(fpath string) (dir, shpBase, prj string, err error) {
	zr, err := zip.OpenReader(fpath)
	if err != nil {
		return "", "", "", err
	}
	defer zr.Close()

	dir, err = os.MkdirTemp("", "geocdl_upload_shp_")
	if err != nil {
		return "", "", "", err
	}

	var shpName string
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".shp") {
			if shpName != "" {
				os.RemoveAll(dir)
				return "", "", "", fmt.Errorf("uploadcache: uploaded ZIP archives cannot include more than one shapefile")
			}
			shpName = f.Name
		}
	}
	if shpName == "" {
		os.RemoveAll(dir)
		return "", "", "", fmt.Errorf("uploadcache: uploaded ZIP archive contains no shapefile")
	}
	base := strings.TrimSuffix(shpName, filepath.Ext(shpName))

	hasDBF := false
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, base+".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".dbf") {
			hasDBF = true
		}
		if err := extractZipMember(f, filepath.Join(dir, filepath.Base(name))); err != nil {
			os.RemoveAll(dir)
			return "", "", "", err
		}
		if strings.EqualFold(filepath.Ext(name), ".prj") {
			b, rerr := os.ReadFile(filepath.Join(dir, filepath.Base(name)))
			if rerr == nil {
				prj = string(b)
			}
		}
	}
	if !hasDBF {
		os.RemoveAll(dir)
		return "", "", "", fmt.Errorf("uploadcache: uploaded shapefile ZIP archive is missing .dbf file")
	}

	return dir, filepath.Join(dir, filepath.Base(base)), prj, nil
}

func extractZipMember(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// Clean deletes cached files whose modification time (when AddFile wrote
// them) is older than RetentionAge. Access time is not consulted, so a
// file that is read again is still removed RetentionAge after upload.
func (c *Cache) Clean() error {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return fmt.Errorf("uploadcache: %w", err)
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// os.FileInfo exposes ModTime portably but not atime; since this
		// cache never rewrites a file after AddFile creates it, mtime is
		// an acceptable proxy for "last touched" here.
		if now.Sub(info.ModTime()) > c.RetentionAge {
			os.Remove(filepath.Join(c.Dir, e.Name()))
		}
	}
	return nil
}

// Stats returns the number of files currently cached and their combined
// size in bytes.
func (c *Cache) Stats() (fileCount int, totalBytes int64, err error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return 0, 0, fmt.Errorf("uploadcache: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fileCount++
		totalBytes += info.Size()
	}
	return fileCount, totalBytes, nil
}

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

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ctessum/geom"
	"github.com/stuckyb/geocdl"
	"github.com/stuckyb/geocdl/catalog"
	"github.com/stuckyb/geocdl/request"
	"github.com/stuckyb/geocdl/uploadcache"
)

// api bundles the collaborators every HTTP handler needs, the same
// plain-struct-of-handlers shape webserver.go builds its mux around.
type api struct {
	catalog *catalog.Catalog
	handler *request.Handler
	cache   *uploadcache.Cache
	log     *log.Logger
}

// Serve starts the GeoCDL HTTP API at addr, loading datasetCatalogPath as
// the dataset catalog and staging request output under outputDir and
// uploads under uploadCacheDir. It blocks until the listener errors out.
func Serve(addr, datasetCatalogPath, outputDir, uploadCacheDir string, uploadMaxBytes int64, uploadTTL time.Duration) error {
	cat, err := loadCatalog(datasetCatalogPath)
	if err != nil {
		return fmt.Errorf("geocdlserver: loading catalog: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("geocdlserver: preparing output directory: %w", err)
	}
	if err := os.MkdirAll(uploadCacheDir, 0755); err != nil {
		return fmt.Errorf("geocdlserver: preparing upload cache directory: %w", err)
	}

	a := &api{
		catalog: cat,
		handler: request.NewHandler(cat, outputDir),
		cache:   uploadcache.New(uploadCacheDir, uploadMaxBytes, uploadTTL, 0),
		log:     log.Default(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/list_datasets", a.handleListDatasets)
	mux.HandleFunc("/subset_polygon", a.handleSubset(geocdl.RequestRaster))
	mux.HandleFunc("/subset_points", a.handleSubset(geocdl.RequestPoint))
	mux.HandleFunc("/upload_geom", a.handleUpload)

	a.log.Printf("geocdlserver listening on %s (catalog: %s)", addr, datasetCatalogPath)
	return http.ListenAndServe(addr, mux)
}

func (a *api) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	entries := a.catalog.Listing(true)
	writeJSON(w, http.StatusOK, entries)
}

// handleSubset returns a handler for one of /subset_polygon or
// /subset_points, differing only in the RequestType they build; both
// routes share the same request-fulfillment path underneath.
func (a *api) handleSubset(reqType geocdl.RequestType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		caps := a.catalog.Capabilities()

		datasetVars, datasetOrder, err := geocdl.ParseDatasetsString(q.Get("datasets"), caps)
		if err != nil {
			a.writeError(w, err)
			return
		}

		subsetGeom, err := a.resolveSubsetGeom(q, reqType, caps, datasetVars)
		if err != nil {
			a.writeError(w, err)
			return
		}

		targetCRS, err := geocdl.GetTargetCRS(q.Get("crs"), subsetGeom)
		if err != nil {
			a.writeError(w, err)
			return
		}

		var targetRes *float64
		if v := q.Get("resolution"); v != "" {
			res, perr := parseFloat(v)
			if perr != nil {
				a.writeError(w, geocdl.NewError(geocdl.ErrBadDateSpec, "invalid resolution: %q", v))
				return
			}
			targetRes = &res
		}

		params := geocdl.RequestParams{
			Dates:            q.Get("dates"),
			Years:            q.Get("years"),
			Months:           q.Get("months"),
			Days:             q.Get("days"),
			GrainMethod:      geocdl.GrainMethod(q.Get("grain_method")),
			ValidateMethod:   geocdl.ValidateMethod(q.Get("validate_method")),
			SubsetGeom:       subsetGeom,
			TargetCRS:        targetCRS,
			TargetResolution: targetRes,
			RIMethod:         q.Get("ri_method"),
			RequestType:      reqType,
			OutputFormat:     geocdl.OutputFormat(q.Get("output_format")),
		}

		nontemporal := a.catalog.NonTemporalSet()
		req, err := geocdl.NewDataRequest(datasetVars, datasetOrder, caps, nontemporal, params)
		if err != nil {
			a.writeError(w, err)
			return
		}

		zipPath, err := a.handler.Fulfill(r.Context(), req)
		if err != nil {
			a.log.Printf("request failed: %v", err)
			http.Error(w, "internal error fulfilling request", http.StatusInternalServerError)
			return
		}
		defer os.Remove(zipPath)

		w.Header().Set("Content-Type", "application/zip")
		http.ServeFile(w, r, zipPath)
	}
}

// resolveSubsetGeom builds a SubsetGeom from either a previously uploaded
// GUID or inline coords/bounds query parameters. A non-empty guid takes
// precedence and the inline parameters are then ignored; with neither
// present it returns a nil SubsetGeom and no error.
func (a *api) resolveSubsetGeom(q map[string][]string, reqType geocdl.RequestType, caps map[string]geocdl.Capabilities, datasetVars map[string][]string) (*geocdl.SubsetGeom, error) {
	get := func(k string) string {
		if v, ok := q[k]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	if guid := get("guid"); guid != "" {
		assumedCRS, err := geocdl.AssumeCRS(caps, datasetVars, get("crs"))
		if err != nil {
			return nil, err
		}
		if reqType == geocdl.RequestPoint {
			return a.cache.GetMultiPoint(guid, assumedCRS.Proj4)
		}
		return a.cache.GetPolygon(guid, assumedCRS.Proj4)
	}

	if reqType == geocdl.RequestPoint {
		coordsStr := get("points")
		if coordsStr == "" {
			return nil, nil
		}
		coords, err := geocdl.ParseCoords(coordsStr)
		if err != nil {
			return nil, err
		}
		assumedCRS, err := geocdl.AssumeCRS(caps, datasetVars, get("crs"))
		if err != nil {
			return nil, err
		}
		return geocdl.NewMultiPointSubsetGeom(toMultiPoint(coords), assumedCRS), nil
	}

	clipStr := get("clip")
	if clipStr == "" {
		return nil, nil
	}
	ring, err := geocdl.ParseClipBounds(clipStr)
	if err != nil {
		return nil, err
	}
	assumedCRS, err := geocdl.AssumeCRS(caps, datasetVars, get("crs"))
	if err != nil {
		return nil, err
	}
	return geocdl.NewPolygonSubsetGeom(toPolygon(ring), assumedCRS), nil
}

func (a *api) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing upload file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	guid, err := a.cache.AddFile(file, header.Filename)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"guid": guid})
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if geocdl.IsKind(err, geocdl.ErrUnknownDataset) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}

// toMultiPoint and toPolygon adapt the plain [2]float64 coordinate lists
// ParseCoords/ParseClipBounds produce into the geom package's types, the
// same conversion uploadcache.GetMultiPoint does for its own decoded
// points.
func toMultiPoint(coords [][2]float64) geom.MultiPoint {
	mp := make(geom.MultiPoint, len(coords))
	for i, c := range coords {
		mp[i] = geom.Point{X: c[0], Y: c[1]}
	}
	return mp
}

func toPolygon(ring [][2]float64) geom.Polygon {
	path := make([]geom.Point, len(ring))
	for i, c := range ring {
		path[i] = geom.Point{X: c[0], Y: c[1]}
	}
	return geom.Polygon{path}
}

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
	"strings"
)

// RequestType distinguishes a gridded-raster request from a point
// request, which changes which interpolation methods and output formats
// are valid.
type RequestType int

const (
	RequestRaster RequestType = iota
	RequestPoint
)

var resampleMethods = map[string]bool{
	"nearest": true, "bilinear": true, "cubic": true, "cubic-spline": true,
	"lanczos": true, "average": true, "mode": true,
}

var pointMethods = map[string]bool{"nearest": true, "linear": true}

// OutputFormat identifies the archive member format written for a
// request.
type OutputFormat string

const (
	FormatGeoTIFF   OutputFormat = "geotiff"
	FormatNetCDF    OutputFormat = "netcdf"
	FormatCSV       OutputFormat = "csv"
	FormatShapefile OutputFormat = "shapefile"
)

var fileExtensions = map[OutputFormat]string{
	FormatGeoTIFF:   ".tif",
	FormatNetCDF:    ".nc",
	FormatCSV:       ".csv",
	FormatShapefile: ".shp",
}

var gridOutputFormats = map[OutputFormat]bool{FormatGeoTIFF: true, FormatNetCDF: true}
var pointOutputFormats = map[OutputFormat]bool{FormatCSV: true, FormatShapefile: true, FormatNetCDF: true}

// RequestParams bundles every raw, unvalidated input to NewDataRequest, in
// the same shape the web handler receives them in.
type RequestParams struct {
	DatasetsStr      string
	Dates            string
	Years            string
	Months           string
	Days             string
	GrainMethod      GrainMethod
	ValidateMethod   ValidateMethod
	SubsetGeom       *SubsetGeom
	TargetCRS        *CRS
	TargetResolution *float64
	RIMethod         string
	RequestType      RequestType
	OutputFormat     OutputFormat
}

// DataRequest is the fully validated result of parsing and cross-checking
// a RequestParams against a dataset catalog. Every field has already
// passed every invariant NewDataRequest enforces; the fields are exported
// and nothing prevents a caller from changing them afterwards.
type DataRequest struct {
	DatasetVars      map[string][]string
	// DatasetOrder lists DatasetVars' keys in the order the caller
	// declared them, so archive output can follow declaration order
	// rather than map iteration order.
	DatasetOrder     []string
	InferredGrain    Grain
	DatasetGrains    map[string]Grain
	DatasetDates     map[string][]RequestDate
	GrainMethod      GrainMethod
	ValidateMethod   ValidateMethod
	SubsetGeom       *SubsetGeom
	TargetCRS        *CRS
	TargetResolution *float64
	Harmonize        bool
	RIMethod         string
	RequestType      RequestType
	OutputFormat     OutputFormat
	FileExtension    string
}

// Metadata assembles the JSON-serializable metadata document written
// alongside an output archive: the resolved request parameters plus a
// capabilities summary for every dataset the request drew from.
func (r *DataRequest) Metadata(caps map[string]Capabilities) map[string]interface{} {
	reqMD := map[string]interface{}{
		"target_dates":    r.DatasetDates,
		"target_crs":      r.TargetCRS.Metadata(),
		"grain_method":    r.GrainMethod,
		"validate_method": r.ValidateMethod,
	}
	if r.RequestType == RequestRaster {
		reqMD["request_type"] = "raster"
		reqMD["target_resolution"] = r.TargetResolution
		reqMD["resample_method"] = r.RIMethod
	} else {
		reqMD["request_type"] = "points"
		reqMD["interpolation_method"] = r.RIMethod
	}

	dsMD := make([]map[string]interface{}, 0, len(r.DatasetVars))
	for dsid, vars := range r.DatasetVars {
		c := caps[dsid]
		dsMD = append(dsMD, map[string]interface{}{
			"id":              c.ID,
			"name":            c.Name,
			"url":             c.URL,
			"description":     c.Description,
			"provider_name":   c.ProviderName,
			"provider_url":    c.ProviderURL,
			"requested_vars":  vars,
			"negotiated_grain": r.DatasetGrains[dsid],
		})
	}

	return map[string]interface{}{
		"request":  reqMD,
		"datasets": dsMD,
	}
}

// ParseDatasetsString parses "dsid1:var1,var2;dsid2:var3" into a
// per-dataset variable list, validating every dataset ID against caps. The
// returned order slice preserves the dataset IDs in the order they were
// declared in datasetsStr, since the returned map cannot.
func ParseDatasetsString(datasetsStr string, caps map[string]Capabilities) (map[string][]string, []string, error) {
	out := map[string][]string{}
	var order []string
	for _, spec := range strings.Split(datasetsStr, ";") {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return nil, nil, newErr(ErrUnknownDataset, "incorrect dataset specification: %q", spec)
		}
		varnames := strings.Split(parts[1], ",")
		if len(varnames) == 0 || varnames[0] == "" {
			return nil, nil, newErr(ErrUnknownDataset, "incorrect dataset specification: %q", spec)
		}
		if _, ok := caps[parts[0]]; !ok {
			return nil, nil, newErr(ErrUnknownDataset, "invalid dataset ID: %q", parts[0])
		}
		if _, dup := out[parts[0]]; !dup {
			order = append(order, parts[0])
		}
		out[parts[0]] = varnames
	}
	return out, order, nil
}

// ParseCoords parses a coordinate list given either as
// "(x1,y1),(x2,y2)..." or "x1,y1;x2,y2...".
func ParseCoords(coordsStr string) ([][2]float64, error) {
	if coordsStr == "" {
		return nil, newErr(ErrBadDateSpec, "empty coordinate specification")
	}

	var coordStrs []string
	if coordsStr[0] == '(' {
		parts := strings.Split(coordsStr, "),")
		for i, p := range parts {
			if len(p) > 0 && p[0] == '(' {
				p = p[1:]
			}
			if i == len(parts)-1 {
				if len(p) == 0 || p[len(p)-1] != ')' {
					return nil, newErr(ErrBadDateSpec, "incorrect coordinate specification: %q", coordsStr)
				}
				p = p[:len(p)-1]
			}
			coordStrs = append(coordStrs, p)
		}
	} else {
		coordStrs = strings.Split(coordsStr, ";")
	}

	coords := make([][2]float64, 0, len(coordStrs))
	for _, cs := range coordStrs {
		parts := strings.Split(cs, ",")
		if len(parts) != 2 {
			return nil, newErr(ErrBadDateSpec, "incorrect coordinate specification: %q", cs)
		}
		x, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return nil, newErr(ErrBadDateSpec, "incorrect coordinate specification: %q", cs)
		}
		coords = append(coords, [2]float64{x, y})
	}
	return coords, nil
}

// ParseClipBounds parses a clip specification into a closed polygon ring:
// two coordinates are treated as the upper-left/lower-right corners of a
// bounding box, and three or more are treated as explicit polygon
// vertices (closed automatically if not already closed).
func ParseClipBounds(clipStr string) ([][2]float64, error) {
	if clipStr == "" {
		return nil, nil
	}
	coords, err := ParseCoords(clipStr)
	if err != nil {
		return nil, err
	}
	if len(coords) < 2 {
		return nil, newErr(ErrBadDateSpec, "invalid clip geometry specification")
	}
	if len(coords) == 2 {
		ul, lr := coords[0], coords[1]
		return [][2]float64{
			{ul[0], ul[1]},
			{lr[0], ul[1]},
			{lr[0], lr[1]},
			{ul[0], lr[1]},
			{ul[0], ul[1]},
		}, nil
	}
	if coords[0] != coords[len(coords)-1] {
		coords = append(coords, coords[0])
	}
	return coords, nil
}

// AssumeCRS determines the CRS to apply to user-supplied geometry that
// doesn't carry its own: the explicit crs parameter if given, else the
// native CRS of a dataset named in datasetVars. datasetVars is a map, so
// when it names several datasets, which one's CRS is used is not defined.
func AssumeCRS(caps map[string]Capabilities, datasetVars map[string][]string, inputCRS string) (*CRS, error) {
	if inputCRS != "" {
		return ParseCRS(inputCRS)
	}
	for dsid := range datasetVars {
		return caps[dsid].CRS, nil
	}
	return nil, newErr(ErrUnknownDataset, "no datasets given to assume a CRS from")
}

// GetTargetCRS determines the CRS output data should be reprojected to:
// the explicit crs parameter if given, else the CRS already assigned to
// the user's subset geometry.
func GetTargetCRS(inputCRS string, userGeom *SubsetGeom) (*CRS, error) {
	if inputCRS != "" {
		return ParseCRS(inputCRS)
	}
	if userGeom == nil {
		return nil, newErr(ErrCRSMismatch, "cannot determine target CRS without a crs parameter or subset geometry")
	}
	return userGeom.CRS, nil
}

// NewDataRequest validates p against caps and assembles a DataRequest:
// dates are parsed and grains negotiated before date ranges are
// validated, and the result is fully self-consistent or an error is
// returned. There is no partially constructed DataRequest.
func NewDataRequest(datasetVars map[string][]string, datasetOrder []string, caps map[string]Capabilities, nontemporal map[string]bool, p RequestParams) (*DataRequest, error) {
	if len(datasetOrder) == 0 {
		for dsid := range datasetVars {
			datasetOrder = append(datasetOrder, dsid)
		}
	}
	requestedDates, inferredGrain, err := ParseDates(p.Dates, p.Years, p.Months, p.Days)
	if err != nil {
		return nil, err
	}
	datesByGrain := map[Grain][]RequestDate{inferredGrain: requestedDates}

	grainMethod := p.GrainMethod
	if grainMethod == "" {
		grainMethod = GrainStrict
	}
	if !validGrainMethods[grainMethod] {
		return nil, newErr(ErrUnsupportedGrain, "invalid date grain matching method: %q", grainMethod)
	}

	dsGrains, err := negotiateGrains(caps, datasetVars, inferredGrain, grainMethod, nontemporal)
	if err != nil {
		return nil, err
	}

	extra, err := populateDates(inferredGrain, dsGrains, p.Dates, p.Years, p.Months, p.Days)
	if err != nil {
		return nil, err
	}
	for g, d := range extra {
		datesByGrain[g] = d
	}

	validateMethod := p.ValidateMethod
	if validateMethod == "" {
		validateMethod = ValidateStrict
	}
	if !validValidateMethods[validateMethod] {
		return nil, newErr(ErrUnsupportedGrain, "invalid date range validation method: %q", validateMethod)
	}

	dsDates, err := validateDateRange(validateMethod, dsGrains, datesByGrain, caps)
	if err != nil {
		return nil, err
	}

	harmonize := p.TargetResolution != nil && p.SubsetGeom != nil

	if p.RequestType != RequestRaster && p.RequestType != RequestPoint {
		return nil, newErr(ErrInvalidMethod, "invalid request type")
	}

	riMethod := p.RIMethod
	if riMethod == "" {
		riMethod = "nearest"
	}
	if p.RequestType == RequestRaster && !resampleMethods[riMethod] {
		return nil, newErr(ErrInvalidMethod, "invalid resampling method: %q", riMethod)
	}
	if p.RequestType == RequestPoint && !pointMethods[riMethod] {
		return nil, newErr(ErrInvalidMethod, "invalid point interpolation method: %q", riMethod)
	}
	if p.RequestType == RequestPoint && (p.SubsetGeom == nil || p.SubsetGeom.Kind != GeomMultiPoint) {
		return nil, newErr(ErrGeomKindMismatch, "no points provided for output")
	}

	outputFormat := p.OutputFormat
	if outputFormat == "" {
		if p.RequestType == RequestRaster {
			outputFormat = FormatGeoTIFF
		} else {
			outputFormat = FormatCSV
		}
	}
	if p.RequestType == RequestRaster && !gridOutputFormats[outputFormat] {
		return nil, newErr(ErrInvalidOutputFormat, "invalid output format: %q", outputFormat)
	}
	if p.RequestType == RequestPoint && !pointOutputFormats[outputFormat] {
		return nil, newErr(ErrInvalidOutputFormat, "invalid output format: %q", outputFormat)
	}

	return &DataRequest{
		DatasetVars:      datasetVars,
		DatasetOrder:     datasetOrder,
		InferredGrain:    inferredGrain,
		DatasetGrains:    dsGrains,
		DatasetDates:     dsDates,
		GrainMethod:      grainMethod,
		ValidateMethod:   validateMethod,
		SubsetGeom:       p.SubsetGeom,
		TargetCRS:        p.TargetCRS,
		TargetResolution: p.TargetResolution,
		Harmonize:        harmonize,
		RIMethod:         riMethod,
		RequestType:      p.RequestType,
		OutputFormat:     outputFormat,
		FileExtension:    fileExtensions[outputFormat],
	}, nil
}

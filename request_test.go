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
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func annualCaps(id string) Capabilities {
	start, end := NewAnnualDate(2000), NewAnnualDate(2020)
	return Capabilities{
		ID:         id,
		Vars:       map[string]string{"temp": "temperature"},
		DateRanges: map[Grain]DateRange{Annual: {Start: &start, End: &end}},
	}
}

func TestParseDatasetsString(t *testing.T) {
	caps := map[string]Capabilities{"a": annualCaps("a"), "b": annualCaps("b")}
	got, order, err := ParseDatasetsString("a:temp;b:temp", caps)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{"a": {"temp"}, "b": {"temp"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
	wantOrder := []string{"a", "b"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("order = %v, want %v", order, wantOrder)
	}
}

func TestParseDatasetsStringPreservesDeclarationOrder(t *testing.T) {
	caps := map[string]Capabilities{"a": annualCaps("a"), "z": annualCaps("z")}
	_, order, err := ParseDatasetsString("z:temp;a:temp", caps)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z", "a"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v (declaration order, not alphabetical)", order, want)
	}
}

func TestParseDatasetsStringUnknownDataset(t *testing.T) {
	caps := map[string]Capabilities{"a": annualCaps("a")}
	_, _, err := ParseDatasetsString("missing:temp", caps)
	if !IsKind(err, ErrUnknownDataset) {
		t.Fatalf("err = %v, want ErrUnknownDataset", err)
	}
}

func TestParseCoordsParenForm(t *testing.T) {
	got, err := ParseCoords("(1,2),(3,4)")
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{1, 2}, {3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
}

func TestParseCoordsSemicolonForm(t *testing.T) {
	got, err := ParseCoords("1,2;3,4")
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{1, 2}, {3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
}

func TestParseClipBoundsTwoCornersMakesBox(t *testing.T) {
	ring, err := ParseClipBounds("0,10;10,0")
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{0, 10}, {10, 10}, {10, 0}, {0, 0}, {0, 10}}
	if !reflect.DeepEqual(ring, want) {
		t.Fatalf("ring = %v, want %v", ring, want)
	}
}

func TestParseClipBoundsClosesOpenRing(t *testing.T) {
	ring, err := ParseClipBounds("0,0;0,5;5,5")
	if err != nil {
		t.Fatal(err)
	}
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("ring not closed: %v", ring)
	}
}

func TestAssumeCRSExplicit(t *testing.T) {
	caps := map[string]Capabilities{}
	crs, err := AssumeCRS(caps, nil, "EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	if crs == nil {
		t.Fatal("expected non-nil CRS")
	}
}

func TestAssumeCRSFromDataset(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"a": {ID: "a", CRS: crs}}
	got, err := AssumeCRS(caps, map[string][]string{"a": {"temp"}}, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != crs {
		t.Fatalf("got = %v, want %v", got, crs)
	}
}

func TestGetTargetCRSFromSubsetGeom(t *testing.T) {
	crs := testCRS(t)
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)
	got, err := GetTargetCRS("", sg)
	if err != nil {
		t.Fatal(err)
	}
	if got != crs {
		t.Fatalf("got = %v, want %v", got, crs)
	}
}

func TestGetTargetCRSNoInputs(t *testing.T) {
	_, err := GetTargetCRS("", nil)
	if !IsKind(err, ErrCRSMismatch) {
		t.Fatalf("err = %v, want ErrCRSMismatch", err)
	}
}

func TestNewDataRequestRasterDefaults(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"a": annualCaps("a")}
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)

	p := RequestParams{
		Dates:       "2010",
		SubsetGeom:  sg,
		TargetCRS:   crs,
		RequestType: RequestRaster,
	}
	req, err := NewDataRequest(map[string][]string{"a": {"temp"}}, []string{"a"}, caps, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	if req.InferredGrain != Annual {
		t.Fatalf("InferredGrain = %v, want Annual", req.InferredGrain)
	}
	if req.OutputFormat != FormatGeoTIFF {
		t.Fatalf("OutputFormat = %v, want FormatGeoTIFF", req.OutputFormat)
	}
	if req.RIMethod != "nearest" {
		t.Fatalf("RIMethod = %q, want nearest", req.RIMethod)
	}
	if req.GrainMethod != GrainStrict {
		t.Fatalf("GrainMethod = %v, want GrainStrict", req.GrainMethod)
	}
}

func TestNewDataRequestPointRequiresMultiPoint(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"a": annualCaps("a")}
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)

	p := RequestParams{
		Dates:       "2010",
		SubsetGeom:  sg,
		TargetCRS:   crs,
		RequestType: RequestPoint,
	}
	_, err := NewDataRequest(map[string][]string{"a": {"temp"}}, []string{"a"}, caps, nil, p)
	if !IsKind(err, ErrGeomKindMismatch) {
		t.Fatalf("err = %v, want ErrGeomKindMismatch", err)
	}
}

func TestNewDataRequestInvalidResampleMethod(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"a": annualCaps("a")}
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)

	p := RequestParams{
		Dates:       "2010",
		SubsetGeom:  sg,
		TargetCRS:   crs,
		RequestType: RequestRaster,
		RIMethod:    "bogus",
	}
	_, err := NewDataRequest(map[string][]string{"a": {"temp"}}, []string{"a"}, caps, nil, p)
	if !IsKind(err, ErrInvalidMethod) {
		t.Fatalf("err = %v, want ErrInvalidMethod", err)
	}
}

func TestNewDataRequestPreservesDatasetOrder(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"z": annualCaps("z"), "a": annualCaps("a")}
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)

	datasetVars, order, err := ParseDatasetsString("z:temp;a:temp", caps)
	if err != nil {
		t.Fatal(err)
	}
	p := RequestParams{
		Dates:       "2010",
		SubsetGeom:  sg,
		TargetCRS:   crs,
		RequestType: RequestRaster,
	}
	req, err := NewDataRequest(datasetVars, order, caps, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"z", "a"}
	if !reflect.DeepEqual(req.DatasetOrder, want) {
		t.Fatalf("DatasetOrder = %v, want %v (declaration order, not alphabetical)", req.DatasetOrder, want)
	}
}

func TestNewDataRequestRangeUnavailable(t *testing.T) {
	crs := testCRS(t)
	caps := map[string]Capabilities{"a": annualCaps("a")}
	sg := NewPolygonSubsetGeom(geom.Polygon{{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}}, crs)

	p := RequestParams{
		Dates:       "2050",
		SubsetGeom:  sg,
		TargetCRS:   crs,
		RequestType: RequestRaster,
	}
	_, err := NewDataRequest(map[string][]string{"a": {"temp"}}, []string{"a"}, caps, nil, p)
	if !IsKind(err, ErrRangeUnavailable) {
		t.Fatalf("err = %v, want ErrRangeUnavailable", err)
	}
}

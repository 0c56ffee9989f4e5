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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/stuckyb/geocdl"
)

func TestWriteNetCDFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nc")

	crs, err := geocdl.ParseCRS("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	data := sparse.ZerosDense(2, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	raster := &geocdl.Raster{
		Data:        data,
		CRS:         crs,
		Bounds:      [4]float64{-100, 30, -97, 32},
		NoDataValue: -9999,
	}

	if err := WriteNetCDF(raster, "temp", path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}

	got := make([]float64, 6)
	if _, err := nc.Reader("temp", nil, nil).Read(got); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != float64(i) {
			t.Errorf("temp[%d] = %v, want %v", i, v, i)
		}
	}

	lats := make([]float64, 2)
	if _, err := nc.Reader("lat", nil, nil).Read(lats); err != nil {
		t.Fatal(err)
	}
	if lats[0] <= lats[1] {
		t.Fatalf("lats = %v, want descending (north to south)", lats)
	}
}

func TestWriteNetCDFPointsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.nc")

	rows := []PointRow{
		{X: -97.1, Y: 35.5, Time: "2010-01-01", Value: 1.5},
		{X: -96.2, Y: 36.1, Time: "2010-01-02", Value: 2.5},
	}
	if err := WriteNetCDFPoints(path, "temp", rows); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}

	xs := make([]float64, 2)
	if _, err := nc.Reader("x", nil, nil).Read(xs); err != nil {
		t.Fatal(err)
	}
	if xs[0] != -97.1 || xs[1] != -96.2 {
		t.Fatalf("xs = %v", xs)
	}

	vals := make([]float64, 2)
	if _, err := nc.Reader("temp", nil, nil).Read(vals); err != nil {
		t.Fatal(err)
	}
	if vals[0] != 1.5 || vals[1] != 2.5 {
		t.Fatalf("vals = %v", vals)
	}
}

func TestWriteNetCDFCategoricalFlagAttributes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cdl.nc")

	crs, err := geocdl.ParseCRS("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	data := sparse.ZerosDense(1, 2)
	data.Elements[0] = 1
	data.Elements[1] = 5
	raster := &geocdl.Raster{
		Data:          data,
		CRS:           crs,
		Bounds:        [4]float64{-100, 30, -97, 32},
		NoDataValue:   -9999,
		IsCategorical: true,
		RAT:           map[int]string{1: "corn", 5: "soybeans"},
		ColorMap:      map[int][3]uint8{1: {255, 211, 0}, 5: {38, 115, 0}},
	}

	if err := WriteNetCDF(raster, "cdl", path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}

	meanings, ok := nc.Header.GetAttribute("cdl", "flag_meanings").(string)
	if !ok || meanings != "corn soybeans" {
		t.Fatalf("flag_meanings = %v, want %q", nc.Header.GetAttribute("cdl", "flag_meanings"), "corn soybeans")
	}
	values, ok := nc.Header.GetAttribute("cdl", "flag_values").([]float64)
	if !ok || len(values) != 2 || values[0] != 1 || values[1] != 5 {
		t.Fatalf("flag_values = %v, want [1 5]", nc.Header.GetAttribute("cdl", "flag_values"))
	}
	colors, ok := nc.Header.GetAttribute("cdl", "flag_colors").(string)
	if !ok || colors != "#FFD300 #267300" {
		t.Fatalf("flag_colors = %v, want %q", nc.Header.GetAttribute("cdl", "flag_colors"), "#FFD300 #267300")
	}
}

func TestWriteNetCDFPointsCategoricalFlagAttributes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.nc")

	rows := []PointRow{
		{X: -97.1, Y: 35.5, Time: "2010-01-01", Value: 1, Class: "corn", Color: "#FFD300"},
		{X: -96.2, Y: 36.1, Time: "2010-01-02", Value: 5, Class: "soybeans", Color: "#267300"},
	}
	if err := WriteNetCDFPoints(path, "cdl", rows); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}

	meanings, ok := nc.Header.GetAttribute("cdl", "flag_meanings").(string)
	if !ok || meanings != "corn soybeans" {
		t.Fatalf("flag_meanings = %v, want %q", nc.Header.GetAttribute("cdl", "flag_meanings"), "corn soybeans")
	}
}

func TestWriteNetCDFDefaultVarName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.nc")

	crs, err := geocdl.ParseCRS("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	data := sparse.ZerosDense(1, 1)
	raster := &geocdl.Raster{Data: data, CRS: crs, Bounds: [4]float64{0, 0, 1, 1}}

	if err := WriteNetCDF(raster, "", path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, v := range nc.Header.Variables() {
		if v == "value" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a variable named %q, vars = %v", "value", nc.Header.Variables())
	}
}

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
	"os"
	"path/filepath"
	"testing"

	"github.com/stuckyb/geocdl"
)

func TestParseGrainName(t *testing.T) {
	cases := map[string]geocdl.Grain{
		"annual":  geocdl.Annual,
		"monthly": geocdl.Monthly,
		"daily":   geocdl.Daily,
		"none":    geocdl.NoGrain,
		"":        geocdl.NoGrain,
	}
	for in, want := range cases {
		got, err := parseGrainName(in)
		if err != nil {
			t.Errorf("parseGrainName(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseGrainName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseGrainNameInvalid(t *testing.T) {
	if _, err := parseGrainName("weekly"); err == nil {
		t.Fatal("expected an error for an unrecognized grain name")
	}
}

func TestParseSingleDate(t *testing.T) {
	d, err := parseSingleDate("2010-03")
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "2010-03" {
		t.Fatalf("d.String() = %q, want %q", d.String(), "2010-03")
	}
}

func TestParseSingleDateEmpty(t *testing.T) {
	if _, err := parseSingleDate(""); err == nil {
		t.Fatal("expected an error for an empty date string")
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	contents := `[
		{
			"id": "test_temp",
			"name": "Test Temperature",
			"crs": "EPSG:4326",
			"grid_size": 0.5,
			"grid_unit": "degrees",
			"rows": 3,
			"cols": 4,
			"vars": [{"name": "temp", "description": "air temperature"}],
			"grains": [{"grain": "annual", "start": "2000", "end": "2020"}],
			"nontemporal": false,
			"publish": true
		},
		{
			"id": "test_landcover",
			"name": "Test Land Cover",
			"crs": "EPSG:5070",
			"grid_size": 30,
			"grid_unit": "meters",
			"vars": [{"name": "class", "description": "land cover class"}],
			"nontemporal": true,
			"publish": false
		}
	]`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	cat, err := loadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	if !cat.Contains("test_temp") || !cat.Contains("test_landcover") {
		t.Fatal("expected both catalog entries to be registered")
	}
	if !cat.NonTemporal("test_landcover") {
		t.Fatal("expected test_landcover to be registered as nontemporal")
	}

	listing := cat.Listing(true)
	if len(listing) != 1 || listing[0].ID != "test_temp" {
		t.Fatalf("published listing = %v, want only test_temp", listing)
	}

	caps := cat.Capabilities()
	tempCaps, ok := caps["test_temp"]
	if !ok {
		t.Fatal("expected capabilities for test_temp")
	}
	if tempCaps.GridSize != 0.5 || tempCaps.GridUnit != "degrees" {
		t.Fatalf("tempCaps = %+v", tempCaps)
	}
	if _, ok := tempCaps.Vars["temp"]; !ok {
		t.Fatalf("tempCaps.Vars = %v, want a temp entry", tempCaps.Vars)
	}
	grains := tempCaps.SupportedGrains()
	if len(grains) != 1 || grains[0] != geocdl.Annual {
		t.Fatalf("tempCaps.SupportedGrains() = %v, want [Annual]", grains)
	}
}

func TestLoadCatalogInvalidCRS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	contents := `[{"id": "bad", "name": "Bad", "crs": "not a crs at all"}]`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadCatalog(path); err == nil {
		t.Fatal("expected an error for an unparseable CRS")
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := loadCatalog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}

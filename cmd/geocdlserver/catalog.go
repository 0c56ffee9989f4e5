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
	"os"
	"time"

	"github.com/stuckyb/geocdl"
	"github.com/stuckyb/geocdl/catalog"
	"github.com/stuckyb/geocdl/internal/testdata"
	"github.com/stuckyb/geocdl/uploadcache"
)

// catalogVar names a registered variable and its human-readable
// description.
type catalogVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// catalogGrain names one grain's date-range coverage as "YYYY",
// "YYYY-MM", or "YYYY-MM-DD" strings, the same format the date parser
// already understands.
type catalogGrain struct {
	Grain string `json:"grain"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// catalogEntry is one dataset's on-disk configuration. Real dataset
// backends (reading NetCDF/raster/point sources off disk or a remote
// URL) are an external collaborator's job; geocdlserver registers each
// entry as a testdata.Dataset so the HTTP surface and request pipeline
// can be exercised end to end without a real data source wired in.
type catalogEntry struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	Description  string         `json:"description"`
	ProviderName string         `json:"provider_name"`
	ProviderURL  string         `json:"provider_url"`
	CRS          string         `json:"crs"`
	GridSize     float64        `json:"grid_size"`
	GridUnit     string         `json:"grid_unit"`
	Rows         int            `json:"rows"`
	Cols         int            `json:"cols"`
	Vars         []catalogVar   `json:"vars"`
	Grains       []catalogGrain `json:"grains"`
	NonTemporal  bool           `json:"nontemporal"`
	Publish      bool           `json:"publish"`
}

// loadCatalog reads path as a JSON array of catalogEntry and registers
// each as a testdata-backed Dataset.
func loadCatalog(path string) (*catalog.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var entries []catalogEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cat := catalog.New()
	for _, e := range entries {
		crs, err := geocdl.ParseCRS(e.CRS)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", e.ID, err)
		}
		ds := testdata.New(e.ID, crs, e.GridSize, e.GridUnit)
		ds.Caps.Name = e.Name
		ds.Caps.URL = e.URL
		ds.Caps.Description = e.Description
		ds.Caps.ProviderName = e.ProviderName
		ds.Caps.ProviderURL = e.ProviderURL
		if e.Rows > 0 {
			ds.Rows = e.Rows
		}
		if e.Cols > 0 {
			ds.Cols = e.Cols
		}
		for _, v := range e.Vars {
			ds.WithVar(v.Name, v.Description)
		}
		for _, g := range e.Grains {
			grain, err := parseGrainName(g.Grain)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", e.ID, err)
			}
			start, err := parseSingleDate(g.Start)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", e.ID, err)
			}
			end, err := parseSingleDate(g.End)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", e.ID, err)
			}
			ds.WithDateRange(grain, start, end)
		}
		cat.Add(ds, e.NonTemporal, e.Publish)
	}
	return cat, nil
}

// parseSingleDate parses a single "YYYY"/"YYYY-MM"/"YYYY-MM-DD" string
// into a RequestDate, reusing ParseDates' grammar rather than
// duplicating it.
func parseSingleDate(s string) (geocdl.RequestDate, error) {
	dates, _, err := geocdl.ParseDates(s, "", "", "")
	if err != nil {
		return geocdl.RequestDate{}, err
	}
	if len(dates) == 0 {
		return geocdl.RequestDate{}, fmt.Errorf("empty date %q", s)
	}
	return dates[0], nil
}

func parseGrainName(s string) (geocdl.Grain, error) {
	switch s {
	case "annual":
		return geocdl.Annual, nil
	case "monthly":
		return geocdl.Monthly, nil
	case "daily":
		return geocdl.Daily, nil
	case "none", "":
		return geocdl.NoGrain, nil
	default:
		return geocdl.NoGrain, fmt.Errorf("unrecognized grain %q", s)
	}
}

// CleanCache runs a single UploadCache.Clean pass over dir, for use from
// a cron wrapper or an operator's shell.
func CleanCache(dir string, retentionAge time.Duration) error {
	cache := uploadcache.New(dir, 0, retentionAge, 0)
	return cache.Clean()
}

// ListDatasets prints every registered dataset's ID and name, including
// unpublished ones, for operator inspection.
func ListDatasets(catalogPath string) error {
	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}
	for _, e := range cat.Listing(false) {
		fmt.Printf("%s\t%s\n", e.ID, e.Name)
	}
	return nil
}

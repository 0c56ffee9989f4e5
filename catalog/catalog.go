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

// Package catalog indexes the datasets a GeoCDL server knows how to serve.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stuckyb/geocdl"
)

// Entry pairs a registered dataset with the flags that control how the
// grain negotiator and the public listing treat it.
type Entry struct {
	Dataset     geocdl.Dataset
	NonTemporal bool
	Publish     bool
}

// Catalog is a concurrency-safe registry of datasets keyed by dataset ID.
// Datasets are normally all registered once at startup, but the lock
// protects against a concurrent clean-cache or list-datasets CLI command
// racing a reload.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Add registers ds under its capabilities' ID.
func (c *Catalog) Add(ds geocdl.Dataset, nonTemporal, publish bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ds.Capabilities().ID] = Entry{Dataset: ds, NonTemporal: nonTemporal, Publish: publish}
}

// Get returns the dataset registered under id.
func (c *Catalog) Get(id string) (geocdl.Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("invalid dataset ID: %q", id)
	}
	return e.Dataset, nil
}

// Contains reports whether id names a registered dataset.
func (c *Catalog) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// NonTemporal reports whether id was registered as having no temporal
// axis, exempting it from grain negotiation.
func (c *Catalog) NonTemporal(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id].NonTemporal
}

// Capabilities returns every registered dataset's Capabilities, keyed by
// ID, for use by the grain negotiator and date validator.
func (c *Catalog) Capabilities() map[string]geocdl.Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]geocdl.Capabilities, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.Dataset.Capabilities()
	}
	return out
}

// NonTemporalSet returns the nontemporal flag for every registered
// dataset, in the form negotiateGrains expects.
func (c *Catalog) NonTemporalSet() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.NonTemporal
	}
	return out
}

// ListingEntry is a single row in the public dataset listing.
type ListingEntry struct {
	ID   string
	Name string
}

// Listing returns id/name pairs for every registered dataset, sorted by
// name. When publishedOnly is true, datasets registered with publish=false
// are omitted, hiding internal or work-in-progress datasets from the
// public catalog listing while still letting an operator query them
// directly by ID.
func (c *Catalog) Listing(publishedOnly bool) []ListingEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []ListingEntry
	for id, e := range c.entries {
		if publishedOnly && !e.Publish {
			continue
		}
		out = append(out, ListingEntry{ID: id, Name: e.Dataset.Capabilities().Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

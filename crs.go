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
	"fmt"
	"strings"

	"github.com/ctessum/geom/proj"
)

// CRS wraps a parsed spatial reference together with the string it was
// parsed from, so that metadata reporting can echo back a proj4/WKT
// representation without re-deriving it from the library's internal
// SR fields. ParseCRS maps the EPSG codes listed in epsgAliases to proj4
// itself; any other input is handed to proj.Parse as given.
type CRS struct {
	SR    *proj.SR
	Proj4 string
}

// epsgAliases maps the small set of EPSG codes this package needs to
// recognize by number (for CRSMetadata.EPSG) to the proj4 strings that
// proj.Parse understands. This is intentionally tiny: a full EPSG
// registry is dataset-specific CRS bookkeeping outside this package's
// scope.
var epsgAliases = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +wktext +no_defs",
}

// ParseCRS parses a proj4 string, a WKT string, or an "EPSG:NNNN" alias
// into a CRS.
func ParseCRS(code string) (*CRS, error) {
	lookup := code
	if strings.HasPrefix(strings.ToUpper(code), "EPSG:") {
		var n int
		if _, err := fmt.Sscanf(strings.ToUpper(code), "EPSG:%d", &n); err == nil {
			if p4, ok := epsgAliases[n]; ok {
				lookup = p4
			}
		}
	}
	sr, err := proj.Parse(lookup)
	if err != nil {
		return nil, fmt.Errorf("geocdl: parsing CRS %q: %w", code, err)
	}
	return &CRS{SR: sr, Proj4: lookup}, nil
}

// Equal reports whether c and o describe the same spatial reference.
func (c *CRS) Equal(o *CRS) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.SR.Equal(o.SR, 3)
}

// IsMetric reports whether this CRS's coordinates are in metres rather
// than degrees, used by the buffer-width unit normalization.
func (c *CRS) IsMetric() bool {
	if c.SR.Name == "longlat" {
		return false
	}
	return true
}

// CRSMetadata is the JSON-serializable CRS description embedded in the
// output metadata manifest.
type CRSMetadata struct {
	Name         string `json:"name"`
	EPSG         *int   `json:"epsg"`
	Proj4        string `json:"proj4"`
	WKT          string `json:"wkt"`
	Datum        string `json:"datum"`
	IsGeographic bool   `json:"is_geographic"`
	IsProjected  bool   `json:"is_projected"`
}

// Metadata builds the CRSMetadata record for c.
func (c *CRS) Metadata() CRSMetadata {
	isGeo := c.SR.Name == "longlat"
	md := CRSMetadata{
		Name:         c.SR.Name,
		Proj4:        c.Proj4,
		WKT:          c.Proj4,
		Datum:        c.SR.DatumName,
		IsGeographic: isGeo,
		IsProjected:  !isGeo,
	}
	for epsg, p4 := range epsgAliases {
		if p4 == c.Proj4 {
			e := epsg
			md.EPSG = &e
			break
		}
	}
	return md
}

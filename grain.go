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

import "encoding/json"

// Grain is a temporal granularity. NONE is reserved for non-temporal
// datasets or a request with no date specification at all.
type Grain int

const (
	NoGrain Grain = iota
	Annual
	Monthly
	Daily
)

func (g Grain) String() string {
	switch g {
	case NoGrain:
		return "none"
	case Annual:
		return "annual"
	case Monthly:
		return "monthly"
	case Daily:
		return "daily"
	}
	return "invalid"
}

// MarshalJSON renders a Grain as its lowercase name rather than its
// underlying integer value, so metadata documents stay human-readable.
func (g Grain) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

// coarserOrder and finerOrder list, for each grain, the coarser and the
// finer grains nearest-first (ANNUAL is coarsest, DAILY is finest). No
// other code in the package reads them.
var coarserOrder = map[Grain][]Grain{
	Daily:   {Monthly, Annual},
	Monthly: {Annual},
}

var finerOrder = map[Grain][]Grain{
	Annual:  {Monthly, Daily},
	Monthly: {Daily},
}

// anyOrder lists every other grain in coarser-to-finer order, per the
// "any" grain method: [Annual, Monthly, Daily] with the current grain
// removed. It deliberately does not special-case which grain is
// "current" beyond excluding it.
func anyOrder(current Grain) []Grain {
	all := []Grain{Annual, Monthly, Daily}
	out := make([]Grain, 0, len(all)-1)
	for _, g := range all {
		if g != current {
			out = append(out, g)
		}
	}
	return out
}

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

// GrainMethod selects how a dataset whose supported grains don't include
// the request's inferred grain should be handled.
type GrainMethod string

const (
	GrainStrict  GrainMethod = "strict"
	GrainSkip    GrainMethod = "skip"
	GrainCoarser GrainMethod = "coarser"
	GrainFiner   GrainMethod = "finer"
	GrainAny     GrainMethod = "any"
)

var validGrainMethods = map[GrainMethod]bool{
	GrainStrict: true, GrainSkip: true, GrainCoarser: true, GrainFiner: true, GrainAny: true,
}

// listAllowedGrains returns, in preference order, the grains a dataset may
// be negotiated to when it lacks native support for grain under method.
func listAllowedGrains(grain Grain, method GrainMethod) []Grain {
	switch method {
	case GrainFiner:
		switch grain {
		case Annual:
			return []Grain{Monthly, Daily}
		case Monthly:
			return []Grain{Daily}
		}
	case GrainCoarser:
		switch grain {
		case Daily:
			return []Grain{Monthly, Annual}
		case Monthly:
			return []Grain{Annual}
		}
	case GrainAny:
		if grain != NoGrain {
			return anyOrder(grain)
		}
	}
	return nil
}

// negotiateGrains decides, for every temporal dataset in dsvars, which
// grain its portion of the request should actually be fetched at. A
// dataset entry is absent from the result when grainMethod is "skip" and
// negotiation gives up on it. nontemporal reports, for a dataset ID,
// whether that dataset has no temporal axis at all (and so is exempt from
// grain negotiation entirely).
func negotiateGrains(caps map[string]Capabilities, dsvars map[string][]string, inferredGrain Grain, grainMethod GrainMethod, nontemporal map[string]bool) (map[string]Grain, error) {
	if !validGrainMethods[grainMethod] {
		return nil, newErr(ErrUnsupportedGrain, "invalid date grain matching method: %q", grainMethod)
	}

	allowed := listAllowedGrains(inferredGrain, grainMethod)
	dsGrains := make(map[string]Grain)

	for dsid := range dsvars {
		if nontemporal[dsid] {
			continue
		}
		cap, ok := caps[dsid]
		if !ok {
			return nil, newErr(ErrUnknownDataset, "unrecognized dataset identifier: %q", dsid)
		}
		supported := map[Grain]bool{}
		for _, g := range cap.SupportedGrains() {
			supported[g] = true
		}

		if supported[inferredGrain] {
			dsGrains[dsid] = inferredGrain
			continue
		}

		switch grainMethod {
		case GrainStrict:
			return nil, newErr(ErrUnsupportedGrain, "%s does not have requested date granularity", dsid)
		case GrainSkip:
			// Deliberately absent from dsGrains: the caller skips this
			// dataset entirely.
		default:
			found := false
			for _, ag := range allowed {
				if supported[ag] {
					dsGrains[dsid] = ag
					found = true
					break
				}
			}
			if !found {
				return nil, newErr(ErrUnsupportedGrain, "%s has no supported date granularity", dsid)
			}
		}
	}

	return dsGrains, nil
}

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

import "testing"

// WriteGeoTIFF, ReprojectMatch, and WarpRaster all require a working
// libgdal to open or create datasets, so they aren't exercised here; the
// pure name/format helpers they share are.

func TestResampleAlgName(t *testing.T) {
	cases := map[string]string{
		"bilinear":     "bilinear",
		"cubic":        "cubic",
		"lanczos":      "lanczos",
		"average":      "average",
		"mode":         "mode",
		"cubic-spline": "cubicspline",
		"nearest":      "near",
		"":             "near",
		"bogus":        "near",
	}
	for in, want := range cases {
		if got := resampleAlgName(in); got != want {
			t.Errorf("resampleAlgName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFstr(t *testing.T) {
	cases := map[float64]string{
		0:       "0",
		1.5:     "1.5",
		-97.125: "-97.125",
		100:     "100",
	}
	for in, want := range cases {
		if got := fstr(in); got != want {
			t.Errorf("fstr(%v) = %q, want %q", in, got, want)
		}
	}
}

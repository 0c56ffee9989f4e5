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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	gshp "github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// WritePointsShapefile writes rows as a point shapefile at path, with a
// "time" text field and a float field named varname, plus "class" and
// "color" text fields when rows carry resolved categorical labels. It
// returns the paths of the .shp, .shx and .dbf files, plus the .prj when
// prj is non-empty, rather than just the .shp member, since a shapefile
// is unusable without its sidecar files.
func WritePointsShapefile(path, varname string, rows []PointRow, prj string) ([]string, error) {
	categorical := hasCategoricalLabels(rows)
	fields := []goshp.Field{
		goshp.StringField("time", 24),
		goshp.FloatField(varname, 24, 10),
	}
	if categorical {
		fields = append(fields, goshp.StringField("class", 64), goshp.StringField("color", 7))
	}

	enc, err := gshp.NewEncoderFromFields(path, goshp.POINT, fields...)
	if err != nil {
		return nil, fmt.Errorf("output: creating shapefile %s: %w", path, err)
	}
	for _, r := range rows {
		pt := geom.Point{X: r.X, Y: r.Y}
		var err error
		if categorical {
			err = enc.EncodeFields(pt, r.Time, r.Value, r.Class, r.Color)
		} else {
			err = enc.EncodeFields(pt, r.Time, r.Value)
		}
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("output: writing shapefile row: %w", err)
		}
	}
	enc.Close()

	base := strings.TrimSuffix(path, filepath.Ext(path))
	if prj != "" {
		if err := os.WriteFile(base+".prj", []byte(prj), 0644); err != nil {
			return nil, fmt.Errorf("output: writing .prj file: %w", err)
		}
	}

	paths := []string{base + ".shp", base + ".shx", base + ".dbf"}
	if prj != "" {
		paths = append(paths, base+".prj")
	}
	return paths, nil
}

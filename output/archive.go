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
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// PackageArchive assembles a request's output files and a metadata
// document into a single DEFLATE-compressed ZIP archive under dir,
// mirroring fulfillRequestSynchronous's final packaging step: a
// metadata.json entry written first, followed by every retrieved data
// file under its base name.
func PackageArchive(dir string, files []string, metadata map[string]interface{}) (string, error) {
	zipPath := filepath.Join(dir, "geocdl_subset_"+randSuffix()+".zip")

	zf, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("output: creating archive %s: %w", zipPath, err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)

	mdBytes, err := json.MarshalIndent(metadata, "", "    ")
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("output: encoding request metadata: %w", err)
	}
	mdw, err := zw.CreateHeader(&zip.FileHeader{Name: "metadata.json", Method: zip.Deflate})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("output: adding metadata.json to archive: %w", err)
	}
	if _, err := mdw.Write(mdBytes); err != nil {
		zw.Close()
		return "", fmt.Errorf("output: writing metadata.json: %w", err)
	}

	for _, fp := range files {
		if err := addFileToArchive(zw, fp); err != nil {
			zw.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("output: finalizing archive %s: %w", zipPath, err)
	}
	return zipPath, nil
}

func addFileToArchive(zw *zip.Writer, fp string) error {
	src, err := os.Open(fp)
	if err != nil {
		return fmt.Errorf("output: opening %s for archiving: %w", fp, err)
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: filepath.Base(fp), Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("output: adding %s to archive: %w", fp, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("output: writing %s to archive: %w", fp, err)
	}
	return nil
}

// randSuffix returns an 8-character identifier suitable for a scratch
// directory or archive name, reusing the module's existing UUID
// dependency rather than introducing math/rand for a second random-name
// scheme alongside uploadcache's GUIDs.
func randSuffix() string {
	return uuid.NewString()[:8]
}

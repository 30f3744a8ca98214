package packaging

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chr1sbest/pipegate/internal/model"
)

// writeZip archives the manifest and artifacts of dir in a fixed order with a
// fixed timestamp, then writes the archive atomically.
func (p *Packager) writeZip(dir, zipPath string, artifacts []model.Artifact, modified time.Time) error {
	names := make([]string, 0, len(artifacts)+1)
	names = append(names, ManifestFileName)
	for _, a := range artifacts {
		names = append(names, a.Path)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified}
		hdr.SetMode(0o644)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return p.writer.WriteFile(zipPath, buf.Bytes(), 0o644)
}

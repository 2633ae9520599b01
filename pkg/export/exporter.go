// Package export packs the result of one image into a downloadable archive.
package export

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/layout-viewer/internal/utils"
	"github.com/menta2k/layout-viewer/pkg/markdown"
	"github.com/menta2k/layout-viewer/pkg/processing"
	"github.com/menta2k/layout-viewer/pkg/types"
)

var (
	ErrNotDone   = errors.New("record is not done")
	ErrEmptyCrop = processing.ErrEmptyCrop
)

// File is one entry of a bundle
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Bundle holds the exported files of one record
type Bundle struct {
	// Base is the original file name without extension
	Base  string
	Files []File
}

// Name is the archive file name
func (b *Bundle) Name() string {
	return b.Base + ".zip"
}

// File returns the entry with the given name
func (b *Bundle) File(name string) (File, bool) {
	for _, f := range b.Files {
		if f.Name == name {
			return f, true
		}
	}

	return File{}, false
}

// WriteZip writes the bundle as a zip archive
func (b *Bundle) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)
	now := time.Now()

	for _, f := range b.Files {
		method := zip.Deflate

		// png is already compressed
		if f.ContentType == "image/png" {
			method = zip.Store
		}

		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: now,
		})

		if err != nil {
			return fmt.Errorf("failed to add %s: %w", f.Name, err)
		}

		if _, err := fw.Write(f.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	return zw.Close()
}

// SaveZip writes the archive into dir and returns its path
func (b *Bundle) SaveZip(dir string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, b.Name())

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := b.WriteZip(f); err != nil {
		f.Close()
		return "", err
	}

	return path, f.Close()
}

// Crop is the cut-out image of a picture region
type Crop struct {
	markdown.Picture

	Image image.Image
	PNG   []byte
}

// Exporter builds bundles from done records
type Exporter struct {
	processor *processing.Processor
}

// New creates a new exporter
func New() *Exporter {
	return &Exporter{
		processor: processing.NewProcessor(),
	}
}

// Export builds the bundle of r: the result as indented JSON, the Markdown
// document and one png per picture region, numbered like the document links.
// The record is not modified.
func (e *Exporter) Export(r types.Record) (*Bundle, error) {
	if r.Status != types.StatusDone || r.Result == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDone, r.Name, r.Status)
	}

	base := utils.SanitizeFilename(utils.BaseName(r.Name))

	payload, err := json.MarshalIndent(r.Result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	bundle := &Bundle{
		Base: base,

		Files: []File{
			{Name: base + ".json", ContentType: "application/json", Data: append(payload, '\n')},
			{Name: base + ".md", ContentType: "text/markdown; charset=utf-8", Data: []byte(markdown.Synthesize(r.Result))},
		},
	}

	crops, err := e.Pictures(r)
	if err != nil {
		return nil, err
	}

	for _, c := range crops {
		bundle.Files = append(bundle.Files, File{
			Name:        c.Name(),
			ContentType: "image/png",
			Data:        c.PNG,
		})
	}

	return bundle, nil
}

// Pictures crops every picture region out of the source image
func (e *Exporter) Pictures(r types.Record) ([]Crop, error) {
	if r.Result == nil {
		return nil, nil
	}

	pictures := markdown.Pictures(r.Result.Objects)

	if len(pictures) == 0 {
		return nil, nil
	}

	img, _, err := e.processor.DecodeImage(r.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Name, err)
	}

	crops := make([]Crop, 0, len(pictures))

	for _, p := range pictures {
		cropped, err := e.processor.CropRect(img, p.Region.Box.Normalize())
		if err != nil {
			return nil, fmt.Errorf("picture %d: %w", p.N, err)
		}

		data, err := e.processor.EncodePNG(cropped)
		if err != nil {
			return nil, fmt.Errorf("picture %d: %w", p.N, err)
		}

		crops = append(crops, Crop{
			Picture: p,

			Image: cropped,
			PNG:   data,
		})
	}

	return crops, nil
}

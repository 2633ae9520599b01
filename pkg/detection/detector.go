package detection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"
)

// DefaultPrompt asks a vision model for document layout regions
const DefaultPrompt = `You are a document layout analyzer.

Detect all distinct text blocks and key visual elements in the document image.
Group text lines that logically, semantically and visually belong together into a single element.

Return JSON only:
{
  "objects": [
    {
      "type": "section-header",
      "label": "heading",
      "bbox_2d": [x1, y1, x2, y2],
      "text": "string",
      "confidence": 0.0
    }
  ]
}

HARD RULES
- "type" is one of: page-header, section-header, text, list-item, table, picture, caption, footnote, page-footer.
- bbox_2d is in absolute pixel coordinates of the input image.
- "text" is the complete text content of the element, formatted as Markdown. Omit it for pictures.
- One list-item per bullet.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var (
	ErrEmpty       = errors.New("empty upload")
	ErrTooLarge    = errors.New("file too large")
	ErrUnsupported = errors.New("file type not allowed")
)

// Config controls which uploads are forwarded to the backend
type Config struct {
	MaxFileSize      int64
	SupportedFormats []string
}

// DefaultConfig mirrors the limits of the layout service
func DefaultConfig() Config {
	return Config{
		MaxFileSize:      25 << 20,
		SupportedFormats: []string{"jpg", "jpeg", "png", "gif", "webp"},
	}
}

// Detector validates uploads and cleans up results of a layout backend
type Detector struct {
	client client.LayoutClient
	config Config
}

var _ client.LayoutClient = &Detector{}

// NewDetector creates a new detector in front of a layout client
func NewDetector(client client.LayoutClient) *Detector {
	return NewDetectorWithConfig(client, DefaultConfig())
}

// NewDetectorWithConfig creates a detector with custom upload limits
func NewDetectorWithConfig(client client.LayoutClient, config Config) *Detector {
	return &Detector{
		client: client,
		config: config,
	}
}

// DetectLayout validates the upload and forwards it to the backend
func (d *Detector) DetectLayout(ctx context.Context, upload client.Upload) (*types.Result, error) {
	if err := d.Validate(upload); err != nil {
		return nil, err
	}

	if upload.ContentType == "" {
		upload.ContentType = http.DetectContentType(upload.Data)
	}

	result, err := d.client.DetectLayout(ctx, upload)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, errors.New("layout backend returned no result")
	}

	// a 2xx body carrying an error field is still a failed call
	if result.Failed() && result.Objects == nil {
		return nil, errors.New(result.Error)
	}

	return result, nil
}

// Validate checks size and file type of an upload
func (d *Detector) Validate(upload client.Upload) error {
	if len(upload.Data) == 0 {
		return ErrEmpty
	}

	if d.config.MaxFileSize > 0 && int64(len(upload.Data)) > d.config.MaxFileSize {
		return fmt.Errorf("%w: max size is %d MB", ErrTooLarge, d.config.MaxFileSize>>20)
	}

	if len(d.config.SupportedFormats) == 0 {
		return nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(upload.Name)), ".")
	if ext != "" {
		if !slices.Contains(d.config.SupportedFormats, ext) {
			return fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported, ext, strings.Join(d.config.SupportedFormats, ", "))
		}
		return nil
	}

	sniffed := http.DetectContentType(upload.Data)
	for _, format := range d.config.SupportedFormats {
		if sniffed == mimeType(format) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnsupported, sniffed)
}

func mimeType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + format
	}
}

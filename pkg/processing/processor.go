package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/layout-viewer/pkg/types"
)

var (
	ErrUnknownFormat = errors.New("image: unknown or unsupported format")
	ErrEmptyCrop     = errors.New("empty crop rectangle")
)

// Processor handles image decoding, cropping and encoding
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Source is raw image data together with its origin
type Source struct {
	Name        string
	ContentType string
	Data        []byte
}

// LoadSource reads image bytes from a file path or an http(s) URL
func (p *Processor) LoadSource(source string) (*Source, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.loadURL(source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}

	return &Source{
		Name:        filepath.Base(source),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func (p *Processor) loadURL(imageURL string) (*Source, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Layout-Viewer/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	name := filepath.Base(parsedURL.Path)
	if name == "" || name == "/" || name == "." {
		name = "image"
	}

	return &Source{
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// DecodeImage decodes jpeg, png, gif and webp data and reports the format name
func (p *Processor) DecodeImage(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	// some encoder variants are only understood by libwebp
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", ErrUnknownFormat
}

// CropRect cuts a normalized pixel rectangle out of img. The rectangle is
// clipped to the image bounds; nothing left after clipping is ErrEmptyCrop.
func (p *Processor) CropRect(img image.Image, r types.Rect) (*image.NRGBA, error) {
	bounds := img.Bounds()

	x0 := int(math.Floor(r.Left)) + bounds.Min.X
	y0 := int(math.Floor(r.Top)) + bounds.Min.Y
	x1 := int(math.Ceil(r.Right())) + bounds.Min.X
	y1 := int(math.Ceil(r.Bottom())) + bounds.Min.Y

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() || r.Empty() {
		return nil, ErrEmptyCrop
	}

	return imaging.Crop(img, rect), nil
}

// PadToMultiple pads img on the right and bottom with white so that both
// sides are multiples of m (and at least m). Coordinates are unchanged, which
// keeps boxes returned for the padded image valid for the original.
func (p *Processor) PadToMultiple(img image.Image, m int) image.Image {
	if m <= 1 {
		return img
	}

	b := img.Bounds()
	w := max(m, (b.Dx()+m-1)/m*m)
	h := max(m, (b.Dy()+m-1)/m*m)

	if w == b.Dx() && h == b.Dy() {
		return img
	}

	canvas := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}

// PrepareImageForModel re-encodes data for a vision model, padding it to a
// multiple of pad pixels when pad > 1
func (p *Processor) PrepareImageForModel(data []byte, format string, pad int, quality int) ([]byte, error) {
	img, _, err := p.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	img = p.PadToMultiple(img, pad)

	var buf bytes.Buffer
	if err := p.Encode(&buf, img, format, quality, false); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Encode writes img in the given format: png, jpg/jpeg or webp
func (p *Processor) Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png", "":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// EncodePNG is a shortcut for lossless png output
func (p *Processor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return p.Encode(f, img, format, quality, lossless)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// ContentType returns the MIME type for an output format
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

package client

import (
	"context"

	"github.com/menta2k/layout-viewer/pkg/types"
)

// Upload is a single image submitted for layout detection
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// LayoutClient submits one image to a layout/OCR backend and returns the
// detected regions. Implementations must be safe for concurrent use.
type LayoutClient interface {
	DetectLayout(ctx context.Context, upload Upload) (*types.Result, error)
}

// LayoutClientFunc adapts a function to LayoutClient
type LayoutClientFunc func(ctx context.Context, upload Upload) (*types.Result, error)

func (f LayoutClientFunc) DetectLayout(ctx context.Context, upload Upload) (*types.Result, error) {
	return f(ctx, upload)
}

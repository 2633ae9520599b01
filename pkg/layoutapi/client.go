package layoutapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"
)

// DefaultURL is used when no endpoint is configured
const DefaultURL = "http://localhost:8000/api/objects"

var _ client.LayoutClient = &Client{}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("layout service returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("layout service returned %d: %s", e.Code, e.Body)
}

// Client posts one image per request as a multipart form to the layout service
type Client struct {
	client *http.Client

	url   string
	token string
	field string
}

func New(url string, options ...Option) (*Client, error) {
	if url == "" {
		url = DefaultURL
	}

	c := &Client{
		client: &http.Client{
			Timeout: 10 * time.Minute,
		},

		url:   url,
		field: "file",
	}

	for _, option := range options {
		option(c)
	}

	if c.field == "" {
		return nil, errors.New("invalid form field")
	}

	return c, nil
}

func (c *Client) DetectLayout(ctx context.Context, upload client.Upload) (*types.Result, error) {
	var data bytes.Buffer
	w := multipart.NewWriter(&data)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(upload.Data)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(c.field), quoteEscaper.Replace(upload.Name)))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(part, bytes.NewReader(upload.Data)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, convertError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result, err := types.DecodeResult(body)
	if err != nil {
		return nil, fmt.Errorf("invalid layout response: %w", err)
	}

	return result, nil
}

func convertError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return &StatusError{
		Code: resp.StatusCode,
		Body: string(bytes.TrimSpace(data)),
	}
}

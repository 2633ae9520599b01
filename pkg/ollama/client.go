package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/detection"
	"github.com/menta2k/layout-viewer/pkg/processing"
	"github.com/menta2k/layout-viewer/pkg/types"
)

// DefaultModel is used when no model is configured
const DefaultModel = "qwen2.5vl:7b"

// Client asks an Ollama vision model for the layout of an image
type Client struct {
	client *api.Client
	http   *http.Client

	model  string
	prompt string

	// sides of the image sent to the model are padded to a multiple of this
	padding int

	processor *processing.Processor
}

var _ client.LayoutClient = &Client{}

type Option func(*Client)

// WithPrompt replaces the layout prompt
func WithPrompt(prompt string) Option {
	return func(c *Client) {
		c.prompt = prompt
	}
}

// WithPadding sets the pixel multiple images are padded to, 0 disables it
func WithPadding(padding int) Option {
	return func(c *Client) {
		c.padding = padding
	}
}

// WithHTTPClient sets the transport used for the Ollama API
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, options ...Option) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// drop paths like /api/chat, the SDK adds its own
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	if model == "" {
		model = DefaultModel
	}

	c := &Client{
		http: http.DefaultClient,

		model:  model,
		prompt: detection.DefaultPrompt,

		padding: 28,

		processor: processing.NewProcessor(),
	}

	for _, option := range options {
		option(c)
	}

	c.client = api.NewClient(baseURL, c.http)

	return c, nil
}

// DetectLayout sends the image with the layout prompt and parses the regions
// from the model answer
func (c *Client) DetectLayout(ctx context.Context, upload client.Upload) (*types.Result, error) {
	// vision models on CPU are slow
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	img, err := c.processor.PrepareImageForModel(upload.Data, "png", c.padding, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	streamFalse := false

	options := map[string]any{
		"temperature": 0,
	}

	if strings.Contains(strings.ToLower(c.model), "qwen") {
		options["num_ctx"] = 8192
	}

	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: c.prompt,
				Images:  []api.ImageData{api.ImageData(img)},
			},
		},
		Stream:  &streamFalse,
		Format:  json.RawMessage(`"json"`),
		Options: options,
	}

	var content strings.Builder

	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	if content.Len() == 0 {
		return nil, fmt.Errorf("empty response from ollama")
	}

	return types.DecodeModelResult(content.String())
}

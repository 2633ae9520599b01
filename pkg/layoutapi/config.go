package layoutapi

import (
	"net/http"
)

type Option func(*Client)

func WithClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithField overrides the multipart field name ("file")
func WithField(name string) Option {
	return func(c *Client) {
		c.field = name
	}
}

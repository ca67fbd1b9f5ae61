// Package textextract extracts plaintext from uploaded program documents
// (PDF, Office formats) using an Apache Tika server. Plain text uploads
// pass through without a server round trip.
package textextract

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SupportedMimeTypes lists document formats accepted for program uploads.
var SupportedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/rtf",
	"text/plain",
	"text/rtf",
	"text/markdown",
}

// Config holds the text extraction configuration.
type Config struct {
	// TikaServerURL is the URL of the Tika server (e.g. http://localhost:9998).
	TikaServerURL string
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		TikaServerURL: "http://localhost:9998",
		Timeout:       30 * time.Second,
	}
}

// Client extracts text from documents.
type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// IsSupported reports whether the content type can be extracted.
func (c *Client) IsSupported(contentType string) bool {
	base := contentType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.ToLower(base))
	for _, supported := range SupportedMimeTypes {
		if base == supported {
			return true
		}
	}
	return false
}

// ExtractText returns the plaintext content of a document. text/* inputs
// skip the Tika round trip entirely.
func (c *Client) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if !c.IsSupported(contentType) {
		return "", errors.Errorf("unsupported content type: %s", contentType)
	}
	if strings.HasPrefix(contentType, "text/") {
		return string(data), nil
	}
	if c.config.TikaServerURL == "" {
		return "", errors.New("no Tika server configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.config.TikaServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "tika server request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("tika server returned status %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}
	return strings.TrimSpace(string(text)), nil
}

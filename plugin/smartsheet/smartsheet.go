// Package smartsheet appends question/answer rows to a Smartsheet sheet.
// The sink is best effort: callers fire-and-forget and failures are only
// logged.
package smartsheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.smartsheet.com/2.0"

// Config holds the Smartsheet sink configuration.
type Config struct {
	AccessToken string
	SheetID     string
	// Column IDs for the three recorded cells.
	TimestampColumnID int64
	QuestionColumnID  int64
	ResponseColumnID  int64

	BaseURL string
	Timeout time.Duration
}

// Client posts rows to the Smartsheet API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a Smartsheet client, or nil when the sink is not
// configured.
func NewClient(config *Config) *Client {
	if config == nil || config.AccessToken == "" || config.SheetID == "" {
		return nil
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type cell struct {
	ColumnID int64  `json:"columnId"`
	Value    string `json:"value"`
}

type row struct {
	ToTop bool   `json:"toTop"`
	Cells []cell `json:"cells"`
}

// Record appends one row with the current timestamp, the question and the
// reply. The row goes to the top of the sheet.
func (c *Client) Record(ctx context.Context, question, answer string) error {
	payload := []row{{
		ToTop: true,
		Cells: []cell{
			{ColumnID: c.config.TimestampColumnID, Value: time.Now().UTC().Format(time.RFC3339)},
			{ColumnID: c.config.QuestionColumnID, Value: question},
			{ColumnID: c.config.ResponseColumnID, Value: answer},
		},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal smartsheet row")
	}

	url := fmt.Sprintf("%s/sheets/%s/rows", c.config.BaseURL, c.config.SheetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build smartsheet request")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "smartsheet request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("smartsheet returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

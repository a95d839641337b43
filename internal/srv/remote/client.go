// Package remote talks to the image server: the app/screen topology published
// as info.json, and one PNG per screen.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrImageFetchFailed    = errors.New("image fetch failed")
)

const maxBodySize = 16 << 20

// StatusError reports a non success HTTP answer.
type StatusError struct {
	Url        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: got status %d", e.Url, e.StatusCode)
}

type Client struct {
	serverUrl  string
	httpClient *http.Client
}

// NewClient returns a client for serverUrl. Every request is bounded by
// timeout so a stalled server cannot hold a worker past its next cycle.
func NewClient(serverUrl string, timeout time.Duration) *Client {
	return &Client{
		serverUrl:  strings.TrimRight(serverUrl, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) InfoUrl() string {
	return c.serverUrl + "/info.json"
}

func (c *Client) ImageUrl(app int, screen int) string {
	return fmt.Sprintf("%s/app/%d/%d.png", c.serverUrl, app, screen)
}

// get returns the body of a 200 answer.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &StatusError{Url: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, maxBodySize)
	}
	return body, nil
}

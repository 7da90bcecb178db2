package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// Client is an HTTP client for the dataset server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new dataset client
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new dataset client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Datasets lists the registered dataset names
func (c *Client) Datasets(ctx context.Context) ([]string, error) {
	var list dataset.DatasetList
	if err := c.get(ctx, "/v1/datasets", &list); err != nil {
		return nil, err
	}
	return list.Datasets, nil
}

// Records fetches the records of a dataset
func (c *Client) Records(ctx context.Context, name string) ([]dataset.Record, error) {
	var records []dataset.Record
	if err := c.get(ctx, fmt.Sprintf("/v1/datasets/%s/records", url.PathEscape(name)), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Sample builds one sample on the server and returns its summary
func (c *Client) Sample(ctx context.Context, name string, index int, train bool) (*dataset.SampleSummary, error) {
	mode := "inference"
	if train {
		mode = "train"
	}
	path := fmt.Sprintf("/v1/datasets/%s/samples/%d?mode=%s", url.PathEscape(name), index, mode)

	var sum dataset.SampleSummary
	if err := c.get(ctx, path, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

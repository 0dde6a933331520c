package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFeatureRefresher calls the database gateway's stored procedure that
// rebuilds the ML feature tables from the raw landing tables.
type HTTPFeatureRefresher struct {
	BaseURL    string
	APIKey     string
	HttpClient *http.Client
}

// NewHTTPFeatureRefresher creates a client for the feature refresh endpoint.
func NewHTTPFeatureRefresher(baseURL, apiKey string) *HTTPFeatureRefresher {
	return &HTTPFeatureRefresher{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HttpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// RefreshFeatures makes a POST request to the refresh_ml_features procedure.
func (c *HTTPFeatureRefresher) RefreshFeatures(ctx context.Context) error {
	url := fmt.Sprintf("%s/rpc/refresh_ml_features", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create feature refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call feature refresh at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feature refresh returned non-OK status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes one file in the shared folder.
type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mimeType"`
}

// FileStore lists and downloads files from the shared external folder. Both
// calls cross a trust boundary and must honor the context deadline.
type FileStore interface {
	ListFiles(ctx context.Context, folderID string) ([]FileInfo, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// DriveClient talks to the Google Drive v3 REST surface.
type DriveClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewDriveClient creates a Drive client with a sane request timeout.
func NewDriveClient(baseURL, apiKey string) *DriveClient {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/drive/v3"
	}
	return &DriveClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type driveListResponse struct {
	Files []FileInfo `json:"files"`
}

// ListFiles returns the non-trashed files directly under the folder.
func (c *DriveClient) ListFiles(ctx context.Context, folderID string) ([]FileInfo, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	query.Set("fields", "files(id, name, mimeType)")
	if c.APIKey != "" {
		query.Set("key", c.APIKey)
	}

	reqURL := fmt.Sprintf("%s/files?%s", c.BaseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create folder listing request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive returned non-OK status %d listing folder %s", resp.StatusCode, folderID)
	}

	var listing driveListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode folder listing: %w", err)
	}
	return listing.Files, nil
}

// Download fetches the file content.
func (c *DriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	query := url.Values{}
	query.Set("alt", "media")
	if c.APIKey != "" {
		query.Set("key", c.APIKey)
	}

	reqURL := fmt.Sprintf("%s/files/%s?%s", c.BaseURL, url.PathEscape(fileID), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drive returned non-OK status %d downloading file %s", resp.StatusCode, fileID)
	}
	return io.ReadAll(resp.Body)
}

// LocalFolder serves files from a directory on disk, for on-prem file drops
// and tests. The folder handle is a subdirectory of Root; file IDs are
// absolute paths produced by ListFiles.
type LocalFolder struct {
	Root string
}

func NewLocalFolder(root string) *LocalFolder {
	return &LocalFolder{Root: root}
}

func (l *LocalFolder) ListFiles(_ context.Context, folderID string) ([]FileInfo, error) {
	dir := filepath.Join(l.Root, folderID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		files = append(files, FileInfo{
			ID:        filepath.Join(dir, name),
			Name:      name,
			MediaType: mediaTypeForName(name),
		})
	}
	return files, nil
}

func (l *LocalFolder) Download(_ context.Context, fileID string) ([]byte, error) {
	data, err := os.ReadFile(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	return data, nil
}

func mediaTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return spreadsheetMIME
	default:
		if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}

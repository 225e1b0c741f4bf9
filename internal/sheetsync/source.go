// Package sheetsync reconciles inventory against a stock spreadsheet.
package sheetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/version"
)

// Row is one spreadsheet row keyed by column header. Numbers keep their
// literal form as json.Number.
type Row map[string]any

// Source reads rows from the sheets endpoint.
type Source struct {
	baseURL    string
	sheetID    string
	httpClient *http.Client
}

// NewSource returns a Source for sheetID at baseURL. A nil client gets a
// 30 second timeout.
func NewSource(baseURL, sheetID string, httpClient *http.Client) (*Source, error) {
	if baseURL == "" || sheetID == "" {
		return nil, output.ErrConfig("Sync needs a sheet base URL and sheet ID (INVENTORY_API_BASE_URL, INVENTORY_SHEET_ID)")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		sheetID:    sheetID,
		httpClient: httpClient,
	}, nil
}

// URL is the endpoint Fetch reads.
func (s *Source) URL() string {
	return s.baseURL + "/api/sheets?" + url.Values{"sheet_id": {s.sheetID}}.Encode()
}

// Fetch downloads all rows.
func (s *Source) Fetch(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating sheet request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	if resp.StatusCode >= 400 {
		return nil, output.ErrAPIBody(resp.StatusCode,
			fmt.Sprintf("Failed to fetch inventory sheet (HTTP %d)", resp.StatusCode), string(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding sheet rows: %w", err)
	}
	return rows, nil
}

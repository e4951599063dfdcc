// Package source retrieves the raw JHU CSSE time-series tables.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
)

// HTTPSource fetches resources from a remote directory such as the JHU
// CSSE GitHub raw URL.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPSource creates a source reading <baseURL>/<file name>.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch downloads and parses one resource. Every failure is a *domain.FetchError.
func (s *HTTPSource) Fetch(ctx context.Context, r domain.Resource) (domain.RawTable, error) {
	if !r.Valid() {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: errUnknownResource}
	}
	u := fmt.Sprintf("%s/%s", s.baseURL, r.FileName())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: fmt.Errorf("create request: %w", err)}
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: fmt.Errorf("request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}

	table, err := readTable(resp.Body)
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: err}
	}

	s.logger.Debug("source fetched",
		"resource", r,
		"url", u,
		"records", len(table.Records),
		"columns", len(table.Header),
		"duration", time.Since(start),
	)
	return table, nil
}

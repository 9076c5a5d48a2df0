package ops

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"tabletask/internal/table"
	"tabletask/internal/task"
)

// HTTPFetch resolves a value per row from an HTTP endpoint. The row's id is
// query-escaped into URLTemplate (one %s verb) and the trimmed response body
// becomes the target column value.
//
// Transport errors and non-2xx responses are recoverable row failures: a
// flaky endpoint should cost single rows, not the run.
type HTTPFetch struct {
	httpClient *http.Client
	userAgent  string

	URLTemplate string
	IDColumn    string
	Target      string
}

// NewHTTPFetch builds a fetch operation using the default HTTP client.
func NewHTTPFetch(urlTemplate, idColumn, target string) *HTTPFetch {
	return &HTTPFetch{
		httpClient:  http.DefaultClient,
		userAgent:   "tabletask/1.0",
		URLTemplate: urlTemplate,
		IDColumn:    idColumn,
		Target:      target,
	}
}

func (f *HTTPFetch) Apply(row table.Row) (map[string]string, error) {
	id, err := row.Value(f.IDColumn)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf(f.URLTemplate, url.QueryEscape(id))
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for id %q: %w", id, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, task.Rowf("fetching id %q: %v", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, task.Rowf("fetching id %q: unexpected status %s", id, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, task.Rowf("reading response for id %q: %v", id, err)
	}
	return map[string]string{f.Target: strings.TrimSpace(string(body))}, nil
}

// HasPreviousResult treats a non-empty target column as already done.
func (f *HTTPFetch) HasPreviousResult(row table.Row) bool {
	return row[f.Target] != ""
}

package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Searcher is the document search surface the pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, term string, page int) ([]Document, error)
}

// Client queries the document search service over HTTP. Transient failures
// (transport errors and 5xx responses) are retried with linear backoff;
// client errors are returned immediately.
type Client struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, retries int, backoff time.Duration) *Client {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if retries <= 0 {
		retries = 3
	}
	if backoff == 0 {
		backoff = 2 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: backoff,
		logger:  log.New(log.Writer(), "[DOCS] ", log.LstdFlags),
	}
}

type searchResponse struct {
	Results []Document `json:"results"`
	Total   int        `json:"total"`
}

// Search returns one page of hits for term. Snippets are normalized and
// document ids resolved from titles when the id field is opaque.
func (c *Client) Search(ctx context.Context, term string, page int) ([]Document, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("page", strconv.Itoa(page))
	endpoint := c.baseURL + "/search?" + q.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("search %q page %d: %w", term, page, err)
	}
	out := make([]Document, 0, len(resp.Results))
	for _, d := range resp.Results {
		d.ID = ResolveID(d)
		d.Snippet = NormalizeSnippet(d.Snippet)
		out = append(out, d)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.logger.Printf("retrying (%d/%d): %v", attempt+1, c.retries, lastErr)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			lastErr = errors.New(resp.Status)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: %s", resp.Status, string(body[:min(len(body), 256)]))
		}
		if rerr != nil {
			lastErr = rerr
			continue
		}
		return json.Unmarshal(body, out)
	}
	return lastErr
}

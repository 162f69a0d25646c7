package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// Source fetches the current catalog listing. One call, one poll cycle.
type Source interface {
	FetchCatalog(ctx context.Context) ([]RawRecord, error)
}

// HTTPSourceConfig configures the catalog HTTP client.
type HTTPSourceConfig struct {
	URL     string
	Timeout time.Duration // per-fetch deadline; default 8s
}

// HTTPSource is the production Source: one GET against the catalog query
// endpoint, product list under the top-level "products" field.
type HTTPSource struct {
	cfg    HTTPSourceConfig
	client *http.Client
}

func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second

	c := retryClient.StandardClient()
	c.Timeout = cfg.Timeout

	return &HTTPSource{cfg: cfg, client: c}
}

func (s *HTTPSource) FetchCatalog(ctx context.Context) ([]RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("catalog fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("catalog fetch: malformed JSON body")
	}

	products := gjson.GetBytes(body, "products")
	if !products.Exists() || !products.IsArray() {
		return nil, fmt.Errorf("catalog fetch: response has no products list")
	}

	out := make([]RawRecord, 0, int(products.Get("#").Int()))
	products.ForEach(func(_, p gjson.Result) bool {
		out = append(out, RawRecord(p.Raw))
		return true
	})
	return out, nil
}

package realearth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// ErrNoTimestamps is returned when the API has no times for a product.
var ErrNoTimestamps = errors.New("no timestamps available for product")

// Referer is sent with image requests; the image API rejects keyed
// requests without it.
const Referer = "https://realearth.ssec.wisc.edu/"

// Client fetches product tile timestamps from the RealEarth times API and
// tiles from the image API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	imageURL   string
	apiKey     string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// TileRequest identifies one map tile of a product at a timestamp.
type TileRequest struct {
	Product string
	Time    string
	X, Y, Z string
}

// NewClient creates a RealEarth client limited to rps requests per second.
func NewClient(baseURL string, timeout time.Duration, rps float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// WithImageAPI enables FetchTile against imageURL, authenticating with apiKey.
func (c *Client) WithImageAPI(imageURL, apiKey string) *Client {
	c.imageURL = imageURL
	c.apiKey = apiKey
	return c
}

// FetchTile requests one tile image. Any upstream status is returned as a
// response; only transport failures are errors. The caller closes the body.
func (c *Client) FetchTile(ctx context.Context, tr TileRequest) (*http.Response, error) {
	if c.imageURL == "" {
		return nil, errors.New("realearth image API not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	q := url.Values{
		"products": {tr.Product},
		"time":     {tr.Time},
		"x":        {tr.X},
		"y":        {tr.Y},
		"z":        {tr.Z},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("RE-Access-Key", c.apiKey)
	req.Header.Set("Referer", Referer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.TileRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("image request: %w", err)
	}
	c.metrics.TileRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// FetchTimestamps returns every timestamp the API lists for product, in the
// "YYYYMMDD_HHMMSS" form the tile service expects.
func (c *Client) FetchTimestamps(ctx context.Context, product string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	u := c.baseURL + "?" + url.Values{"products": {product}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.TimestampAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("times request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("realearth API error: status %d: %s", resp.StatusCode, body)
	}

	var times map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&times); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(times[product]) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTimestamps, product)
	}

	c.logger.Debug("tile timestamps fetched", "product", product, "count", len(times[product]))
	return times[product], nil
}

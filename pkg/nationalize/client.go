// Package nationalize provides a client for the Nationalize.io name
// nationality prediction API.
package nationalize

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadsync/internal/resilience"
)

// DefaultBaseURL is the public Nationalize.io endpoint.
const DefaultBaseURL = "https://api.nationalize.io"

// Client defines the Nationalize.io operations.
type Client interface {
	// Predict returns the country candidates predicted for a single name.
	Predict(ctx context.Context, name string) (*Prediction, error)
}

// Candidate is one predicted country for a name.
type Candidate struct {
	CountryID   string  `json:"country_id"`
	Probability float64 `json:"probability"`
}

// Prediction is a validated API response: either a non-empty candidate list
// or empty when the service has no prediction for the name.
type Prediction struct {
	Name       string
	Count      int
	Candidates []Candidate
}

// Empty reports whether the service returned no usable candidate.
func (p *Prediction) Empty() bool {
	return p == nil || len(p.Candidates) == 0
}

// Best returns the candidate with the highest probability. The API sorts
// candidates already, but selection does not rely on it; ties keep the
// earlier candidate.
func (p *Prediction) Best() (Candidate, bool) {
	if p.Empty() {
		return Candidate{}, false
	}
	best := p.Candidates[0]
	for _, c := range p.Candidates[1:] {
		if c.Probability > best.Probability {
			best = c
		}
	}
	return best, true
}

// apiResponse mirrors the raw JSON body.
type apiResponse struct {
	Count   int         `json:"count"`
	Name    string      `json:"name"`
	Country []Candidate `json:"country"`
	Error   string      `json:"error"`
}

// toPrediction drops candidates with no country code or an out-of-range
// probability so callers only ever see well-formed values.
func (r apiResponse) toPrediction() *Prediction {
	p := &Prediction{Name: r.Name, Count: r.Count}
	for _, c := range r.Country {
		code := strings.TrimSpace(c.CountryID)
		if code == "" || c.Probability < 0 || c.Probability > 1 {
			continue
		}
		p.Candidates = append(p.Candidates, Candidate{CountryID: code, Probability: c.Probability})
	}
	return p
}

// Option configures the Nationalize client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithAPIKey sets the API key for paid plans.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new Nationalize.io client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("nationalize", "predict")
	}
	return c
}

func (c *httpClient) Predict(ctx context.Context, name string) (*Prediction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("nationalize: name is required")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Prediction, error) {
		return c.predictOnce(ctx, name)
	})
}

func (c *httpClient) predictOnce(ctx context.Context, name string) (*Prediction, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "nationalize: rate limit")
		}
	}

	q := url.Values{}
	q.Set("name", name)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nationalize: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nationalize: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "nationalize: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("nationalize: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "nationalize: decode response")
	}
	if raw.Error != "" {
		return nil, eris.Errorf("nationalize: %s", raw.Error)
	}

	return raw.toPrediction(), nil
}

package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/metrics"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/resilience"
	"github.com/sells-group/leadsync/pkg/nationalize"
)

// DefaultTimeout bounds a single lookup including retries.
const DefaultTimeout = 10 * time.Second

// Result is the enrichment outcome for one name. Country is either a
// country code or one of the model sentinels.
type Result struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Probability float64 `json:"probability"`
}

// NewLead converts the result into a creation request with its status
// classified.
func (r Result) NewLead() model.NewLead {
	return model.NewLeadFrom(r.Name, r.Country, r.Probability)
}

// Lookuper resolves a single name. Implementations never fail: problems
// degrade to sentinel results.
type Lookuper interface {
	Lookup(ctx context.Context, name string) Result
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTimeout sets the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Enricher) {
		e.breaker = cb
	}
}

// Enricher looks names up through the Nationalize client behind a timeout
// and a circuit breaker.
type Enricher struct {
	client  nationalize.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewEnricher creates an Enricher backed by client.
func NewEnricher(client nationalize.Client, opts ...Option) *Enricher {
	e := &Enricher{
		client:  client,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig()
		cfg.ShouldTrip = shouldTrip
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("enrich: circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		e.breaker = resilience.NewCircuitBreaker(cfg)
	}
	return e
}

// shouldTrip counts only upstream outages against the breaker. Rejections
// of a single name (4xx other than 429) leave it closed.
func shouldTrip(err error) bool {
	return resilience.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}

// Lookup returns the most probable country for name. No prediction yields
// CountryUnknown and any failure yields CountryError, both with
// probability 0.
func (e *Enricher) Lookup(ctx context.Context, name string) Result {
	name = strings.TrimSpace(name)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	pred, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*nationalize.Prediction, error) {
		return e.client.Predict(ctx, name)
	})
	if err != nil {
		zap.L().Warn("enrich: lookup failed",
			zap.String("name", name),
			zap.Error(err),
		)
		metrics.RecordLookup("error", time.Since(start))
		return Result{Name: name, Country: model.CountryError}
	}

	best, ok := pred.Best()
	if !ok {
		metrics.RecordLookup("unknown", time.Since(start))
		return Result{Name: name, Country: model.CountryUnknown}
	}

	metrics.RecordLookup("found", time.Since(start))
	return Result{Name: name, Country: best.CountryID, Probability: best.Probability}
}

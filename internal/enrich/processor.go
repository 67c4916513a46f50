package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsync/internal/model"
)

// Dedupe trims names, drops blanks and removes exact duplicates, keeping
// the first occurrence of each. Comparison is case-sensitive.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// Processor enriches a batch of names concurrently.
type Processor struct {
	lookup         Lookuper
	maxConcurrency int
}

// NewProcessor creates a Processor. maxConcurrency <= 0 runs every lookup
// at once.
func NewProcessor(lookup Lookuper, maxConcurrency int) *Processor {
	return &Processor{lookup: lookup, maxConcurrency: maxConcurrency}
}

// Process deduplicates names and looks each one up in parallel. Results
// follow the deduplicated input order. Lookup problems never fail the
// batch; only a fault in the fan-out itself returns a *model.BatchError.
func (p *Processor) Process(ctx context.Context, names []string) ([]Result, error) {
	unique := Dedupe(names)
	if len(unique) == 0 {
		return nil, &model.ValidationError{Field: "names", Message: "at least one non-blank name is required"}
	}

	results := make([]Result, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}

	for i, name := range unique {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = eris.Errorf("enrich: lookup of %q panicked: %v", name, r)
				}
			}()
			results[i] = p.lookup.Lookup(gctx, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, &model.BatchError{Err: err}
	}
	return results, nil
}

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// LeadFilter specifies criteria for listing leads. The zero value matches
// every lead.
type LeadFilter struct {
	Status model.Status `json:"status,omitempty"`
}

// ErrLeadNotFound is wrapped in a PersistenceError when an operation names
// a lead that does not exist.
var ErrLeadNotFound = errors.New("lead not found")

// Store defines the persistence interface for leads.
type Store interface {
	// CreateLead validates and inserts a lead, assigning its ID and
	// creation time. Synced starts false.
	CreateLead(ctx context.Context, lead model.NewLead) (*model.Lead, error)

	// ListLeads returns leads newest first.
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// FindUnsyncedVerified returns Verified leads not yet synced, oldest
	// first.
	FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error)

	// MarkSynced atomically flips synced from false to true. claimed is
	// false when the lead was already synced.
	MarkSynced(ctx context.Context, id string) (claimed bool, err error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// persistErr wraps err with the failed operation so callers can classify it.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &model.PersistenceError{Op: op, Err: err}
}

// prepareLead validates a creation request and fills the store-assigned
// fields. Timestamps are truncated to microseconds, the coarsest precision
// of any backend, so the returned value matches what is read back.
func prepareLead(n model.NewLead) (*model.Lead, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, eris.Wrap(err, "generate lead id")
	}
	return &model.Lead{
		ID:          id.String(),
		Name:        strings.TrimSpace(n.Name),
		Country:     n.Country,
		Probability: n.Probability,
		Status:      n.Status,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

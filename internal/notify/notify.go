// Package notify delivers synced leads to the sales team: a log line, a
// Salesforce Lead record or a RabbitMQ event.
package notify

import (
	"context"
	"time"

	"github.com/sells-group/leadsync/internal/model"
)

// Notifier sends one synced lead downstream.
type Notifier interface {
	Send(ctx context.Context, lead model.Lead) error
}

// Closer is implemented by notifiers that hold a connection.
type Closer interface {
	Close() error
}

// LeadSynced is the event payload published for a synced lead.
type LeadSynced struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	Probability float64   `json:"probability"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newLeadSynced(l model.Lead) LeadSynced {
	return LeadSynced{
		ID:          l.ID,
		Name:        l.Name,
		Country:     l.Country,
		Probability: l.Probability,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.UTC(),
	}
}

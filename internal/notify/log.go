package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
)

// LogNotifier stands in for a CRM by logging each lead.
type LogNotifier struct {
	log *zap.Logger
}

// NewLog creates a LogNotifier. A nil logger uses the global one.
func NewLog(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.L()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, lead model.Lead) error {
	n.log.Info("crm sync: sending verified lead to sales team",
		zap.String("lead_id", lead.ID),
		zap.String("name", lead.Name),
		zap.String("country", lead.Country),
		zap.Float64("probability", lead.Probability),
	)
	return nil
}

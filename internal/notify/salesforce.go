package notify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	sfpkg "github.com/sells-group/leadsync/pkg/salesforce"
)

// SalesforceNotifier creates a Salesforce Lead for each synced lead.
type SalesforceNotifier struct {
	client sfpkg.Client
}

// NewSalesforce creates a SalesforceNotifier.
func NewSalesforce(client sfpkg.Client) *SalesforceNotifier {
	return &SalesforceNotifier{client: client}
}

func (n *SalesforceNotifier) Send(ctx context.Context, lead model.Lead) error {
	id, err := sfpkg.CreateLead(ctx, n.client, leadRecord(lead))
	if err != nil {
		return eris.Wrapf(err, "notify: salesforce lead %s", lead.ID)
	}
	zap.L().Info("crm sync: created salesforce lead",
		zap.String("lead_id", lead.ID),
		zap.String("sf_id", id),
	)
	return nil
}

// leadRecord maps a lead onto Salesforce fields. There is no company data,
// so the name fills the required Company field too.
func leadRecord(l model.Lead) sfpkg.LeadRecord {
	r := sfpkg.LeadRecord{
		LastName:    l.Name,
		Company:     l.Name,
		Description: fmt.Sprintf("Nationality %s predicted with probability %.2f (lead %s)", l.Country, l.Probability, l.ID),
	}
	if l.Country != model.CountryUnknown && l.Country != model.CountryError {
		r.Country = l.Country
	}
	if l.Status == model.StatusVerified {
		r.Rating = "Hot"
	}
	return r
}

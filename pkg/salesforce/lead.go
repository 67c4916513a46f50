package salesforce

import (
	"context"

	"github.com/rotisserie/eris"
)

// LeadSource tags every Lead record created by this service.
const LeadSource = "Nationalize"

// LeadRecord holds the Lead fields the notifier sets.
type LeadRecord struct {
	LastName    string
	Company     string
	Country     string
	Rating      string
	Description string
}

// fields maps the record onto Salesforce Lead API names. LastName and
// Company are required by the Lead object.
func (r LeadRecord) fields() map[string]any {
	m := map[string]any{
		"LastName":   r.LastName,
		"Company":    r.Company,
		"LeadSource": LeadSource,
	}
	if r.Country != "" {
		m["Country"] = r.Country
	}
	if r.Rating != "" {
		m["Rating"] = r.Rating
	}
	if r.Description != "" {
		m["Description"] = r.Description
	}
	return m
}

// CreateLead inserts a Lead record and returns its Salesforce ID.
func CreateLead(ctx context.Context, c Client, r LeadRecord) (string, error) {
	if r.LastName == "" {
		return "", eris.New("sf: lead LastName is required")
	}
	if r.Company == "" {
		return "", eris.New("sf: lead Company is required")
	}
	id, err := c.InsertOne(ctx, "Lead", r.fields())
	if err != nil {
		return "", eris.Wrap(err, "sf: create lead")
	}
	return id, nil
}

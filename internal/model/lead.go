package model

import (
	"math"
	"strings"
	"time"
)

// Status is the review state of a lead, derived from its probability.
type Status string

const (
	StatusVerified Status = "Verified"
	StatusToCheck  Status = "To Check"
)

// VerifiedThreshold is the exclusive lower bound a probability must exceed
// for a lead to classify as Verified.
const VerifiedThreshold = 0.6

// Sentinel country codes recorded when no usable prediction exists.
const (
	CountryUnknown = "Unknown" // lookup succeeded with no candidates
	CountryError   = "Error"   // lookup failed
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusVerified || s == StatusToCheck
}

// ParseStatus converts a query value into a Status. An empty string is
// returned as the zero Status with ok=true so callers can treat it as
// "no filter".
func ParseStatus(s string) (Status, bool) {
	if s == "" {
		return "", true
	}
	st := Status(s)
	return st, st.Valid()
}

// Classify maps an enrichment probability to a lead status.
func Classify(probability float64) Status {
	if probability > VerifiedThreshold {
		return StatusVerified
	}
	return StatusToCheck
}

// Lead is a persisted, enriched name.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	Probability float64   `json:"probability"`
	Status      Status    `json:"status"`
	Synced      bool      `json:"synced"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewLead carries the fields supplied when creating a lead. ID, Synced and
// CreatedAt are assigned by the store.
type NewLead struct {
	Name        string
	Country     string
	Probability float64
	Status      Status
}

// NewLeadFrom builds a NewLead from an enrichment outcome, deriving the
// status from the probability.
func NewLeadFrom(name, country string, probability float64) NewLead {
	return NewLead{
		Name:        strings.TrimSpace(name),
		Country:     country,
		Probability: probability,
		Status:      Classify(probability),
	}
}

// Validate enforces the constraints every store applies before insert.
func (n NewLead) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if n.Country == "" {
		return &ValidationError{Field: "country", Message: "is required"}
	}
	if math.IsNaN(n.Probability) || n.Probability < 0 || n.Probability > 1 {
		return &ValidationError{Field: "probability", Message: "must be between 0 and 1"}
	}
	if !n.Status.Valid() {
		return &ValidationError{Field: "status", Message: "must be Verified or To Check"}
	}
	return nil
}

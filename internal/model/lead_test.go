package model

import (
	"errors"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    float64
		want Status
	}{
		{"zero", 0, StatusToCheck},
		{"low", 0.3, StatusToCheck},
		{"threshold is exclusive", 0.6, StatusToCheck},
		{"just above threshold", 0.6000001, StatusVerified},
		{"high", 0.75, StatusVerified},
		{"one", 1, StatusVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.p))
		})
	}
}

func TestClassify_MatchesThresholdEverywhere(t *testing.T) {
	t.Parallel()

	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		got := Classify(p)
		if p > VerifiedThreshold {
			assert.Equal(t, StatusVerified, got, "p=%v", p)
		} else {
			assert.Equal(t, StatusToCheck, got, "p=%v", p)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st, ok := ParseStatus("")
	assert.True(t, ok)
	assert.Equal(t, Status(""), st)

	st, ok = ParseStatus("Verified")
	assert.True(t, ok)
	assert.Equal(t, StatusVerified, st)

	st, ok = ParseStatus("To Check")
	assert.True(t, ok)
	assert.Equal(t, StatusToCheck, st)

	_, ok = ParseStatus("verified")
	assert.False(t, ok)
}

func TestNewLeadFrom(t *testing.T) {
	t.Parallel()

	n := NewLeadFrom("  Peter ", "DE", 0.75)
	assert.Equal(t, "Peter", n.Name)
	assert.Equal(t, "DE", n.Country)
	assert.Equal(t, StatusVerified, n.Status)
	require.NoError(t, n.Validate())

	n = NewLeadFrom("Aditi", CountryError, 0)
	assert.Equal(t, StatusToCheck, n.Status)
	require.NoError(t, n.Validate())
}

func TestNewLead_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lead  NewLead
		field string
	}{
		{"blank name", NewLead{Name: "  ", Country: "US", Probability: 0.5, Status: StatusToCheck}, "name"},
		{"missing country", NewLead{Name: "Alex", Probability: 0.5, Status: StatusToCheck}, "country"},
		{"negative probability", NewLead{Name: "Alex", Country: "US", Probability: -0.1, Status: StatusToCheck}, "probability"},
		{"probability above one", NewLead{Name: "Alex", Country: "US", Probability: 1.01, Status: StatusVerified}, "probability"},
		{"nan probability", NewLead{Name: "Alex", Country: "US", Probability: math.NaN(), Status: StatusToCheck}, "probability"},
		{"bad status", NewLead{Name: "Alex", Country: "US", Probability: 0.5, Status: "Maybe"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.lead.Validate()
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestErrorClassification_ThroughErisWrap(t *testing.T) {
	t.Parallel()

	pe := &PersistenceError{Op: "insert lead", Err: errors.New("connection refused")}
	wrapped := eris.Wrap(pe, "create leads")
	assert.True(t, IsPersistence(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")

	be := &BatchError{Err: errors.New("boom")}
	assert.True(t, IsBatch(eris.Wrap(be, "process")))
	assert.Contains(t, be.Error(), "failed to process names batch")

	ve := &ValidationError{Message: "Please provide an array of names"}
	assert.Equal(t, "Please provide an array of names", ve.Error())
	assert.True(t, IsValidation(ve))
}

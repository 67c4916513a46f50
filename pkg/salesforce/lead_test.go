package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func TestCreateLead(t *testing.T) {
	c := new(mockClient)
	c.On("InsertOne", mock.Anything, "Lead", map[string]any{
		"LastName":    "Aditi",
		"Company":     "Aditi",
		"LeadSource":  LeadSource,
		"Country":     "IN",
		"Rating":      "Hot",
		"Description": "probability 0.87",
	}).Return("00Qabc", nil)

	id, err := CreateLead(context.Background(), c, LeadRecord{
		LastName:    "Aditi",
		Company:     "Aditi",
		Country:     "IN",
		Rating:      "Hot",
		Description: "probability 0.87",
	})
	require.NoError(t, err)
	assert.Equal(t, "00Qabc", id)
	c.AssertExpectations(t)
}

func TestCreateLead_OmitsEmptyOptionalFields(t *testing.T) {
	c := new(mockClient)
	c.On("InsertOne", mock.Anything, "Lead", map[string]any{
		"LastName":   "Peter",
		"Company":    "Peter",
		"LeadSource": LeadSource,
	}).Return("00Qdef", nil)

	_, err := CreateLead(context.Background(), c, LeadRecord{LastName: "Peter", Company: "Peter"})
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestCreateLead_RequiredFields(t *testing.T) {
	c := new(mockClient)

	_, err := CreateLead(context.Background(), c, LeadRecord{Company: "Acme"})
	assert.ErrorContains(t, err, "LastName is required")

	_, err = CreateLead(context.Background(), c, LeadRecord{LastName: "Peter"})
	assert.ErrorContains(t, err, "Company is required")

	c.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLead_InsertError(t *testing.T) {
	c := new(mockClient)
	c.On("InsertOne", mock.Anything, "Lead", mock.Anything).Return("", errors.New("INVALID_SESSION_ID"))

	_, err := CreateLead(context.Background(), c, LeadRecord{LastName: "Peter", Company: "Peter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: create lead")
}

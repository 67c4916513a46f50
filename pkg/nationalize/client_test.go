package nationalize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestPredict_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Peter", r.URL.Query().Get("name"))
		assert.Empty(t, r.URL.Query().Get("apikey"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1000,"name":"Peter","country":[{"country_id":"DK","probability":0.21},{"country_id":"AT","probability":0.13}]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Predict(context.Background(), "  Peter ")

	require.NoError(t, err)
	assert.Equal(t, "Peter", got.Name)
	assert.Equal(t, 1000, got.Count)
	require.Len(t, got.Candidates, 2)

	best, ok := got.Best()
	require.True(t, ok)
	assert.Equal(t, "DK", best.CountryID)
	assert.InDelta(t, 0.21, best.Probability, 1e-9)
}

func TestPredict_SendsAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`{"count":0,"name":"Zyx","country":[]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithAPIKey("secret-key"))
	got, err := client.Predict(context.Background(), "Zyx")

	require.NoError(t, err)
	assert.True(t, got.Empty())
	_, ok := got.Best()
	assert.False(t, ok)
}

func TestPredict_DropsInvalidCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Aditi","country":[{"country_id":"","probability":0.9},{"country_id":"XX","probability":1.7},{"country_id":"IN","probability":0.8}]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.Predict(context.Background(), "Aditi")

	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "IN", got.Candidates[0].CountryID)
}

func TestPredict_EmptyName(t *testing.T) {
	t.Parallel()

	client := NewClient(WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Predict(context.Background(), "   ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestPredict_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Request limit reached"}`))
			return
		}
		w.Write([]byte(`{"name":"Peter","country":[{"country_id":"DK","probability":0.4}]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	got, err := client.Predict(context.Background(), "Peter")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	best, ok := got.Best()
	require.True(t, ok)
	assert.Equal(t, "DK", best.CountryID)
}

func TestPredict_PermanentStatusNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"Invalid 'name' parameter"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.Predict(context.Background(), "Peter")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPredict_ServerErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.Predict(context.Background(), "Peter")

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPredict_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Predict(context.Background(), "Peter")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestPredict_ErrorField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Missing 'name' parameter"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Predict(context.Background(), "Peter")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing 'name' parameter")
}

func TestPredict_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.Predict(ctx, "Peter")

	require.Error(t, err)
}

func TestPredict_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Peter","country":[]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	for range 3 {
		_, err := client.Predict(context.Background(), "Peter")
		require.NoError(t, err)
	}
}

func TestBest_PicksHighestRegardlessOfOrder(t *testing.T) {
	p := &Prediction{Candidates: []Candidate{
		{CountryID: "AT", Probability: 0.1},
		{CountryID: "DK", Probability: 0.5},
		{CountryID: "NO", Probability: 0.5},
		{CountryID: "SE", Probability: 0.2},
	}}

	best, ok := p.Best()
	require.True(t, ok)
	assert.Equal(t, "DK", best.CountryID)
}

func TestBest_NilPrediction(t *testing.T) {
	var p *Prediction
	assert.True(t, p.Empty())
	_, ok := p.Best()
	assert.False(t, ok)
}

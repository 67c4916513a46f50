package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func mustCreate(t *testing.T, st Store, name, country string, p float64) *model.Lead {
	t.Helper()
	lead, err := st.CreateLead(context.Background(), model.NewLeadFrom(name, country, p))
	require.NoError(t, err)
	return lead
}

func TestSQLite_CreateAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created := mustCreate(t, st, "  Peter ", "DK", 0.75)
	assert.Equal(t, "Peter", created.Name)
	assert.Equal(t, model.StatusVerified, created.Status)

	leads, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, *created, leads[0])
}

func TestSQLite_ListLeads_FilterNewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := mustCreate(t, st, "A", "DK", 0.9)
	mustCreate(t, st, "B", "IN", 0.3)
	third := mustCreate(t, st, "C", "JP", 0.7)

	verified, err := st.ListLeads(ctx, LeadFilter{Status: model.StatusVerified})
	require.NoError(t, err)
	require.Len(t, verified, 2)
	assert.Equal(t, third.ID, verified[0].ID)
	assert.Equal(t, first.ID, verified[1].ID)

	toCheck, err := st.ListLeads(ctx, LeadFilter{Status: model.StatusToCheck})
	require.NoError(t, err)
	require.Len(t, toCheck, 1)
	assert.Equal(t, "B", toCheck[0].Name)

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestSQLite_ListLeads_EmptyIsNotNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	leads, err := st.ListLeads(context.Background(), LeadFilter{})
	require.NoError(t, err)
	assert.NotNil(t, leads)
	assert.Empty(t, leads)
}

func TestSQLite_DuplicateNamesAllowed(t *testing.T) {
	st := newTestSQLiteStore(t)

	a := mustCreate(t, st, "Peter", "DK", 0.2)
	b := mustCreate(t, st, "Peter", "DK", 0.2)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSQLite_CreateLead_RejectsInvalid(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.CreateLead(context.Background(), model.NewLead{Name: " ", Country: "DK", Probability: 0.5, Status: model.StatusToCheck})
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.True(t, model.IsValidation(err))
}

func TestSQLite_FindUnsyncedVerified_OldestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := mustCreate(t, st, "A", "DK", 0.9)
	mustCreate(t, st, "B", "IN", 0.6)
	c := mustCreate(t, st, "C", "JP", 0.61)

	leads, err := st.FindUnsyncedVerified(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, a.ID, leads[0].ID)
	assert.Equal(t, c.ID, leads[1].ID)
}

func TestSQLite_MarkSynced_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := mustCreate(t, st, "Peter", "DK", 0.75)

	claimed, err := st.MarkSynced(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = st.MarkSynced(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	leads, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].Synced)

	pending, err := st.FindUnsyncedVerified(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLite_MarkSynced_UnknownID(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.MarkSynced(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestSQLite_MarkSynced_ConcurrentClaimsOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	lead := mustCreate(t, st, "Peter", "DK", 0.75)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := st.MarkSynced(context.Background(), lead.ID)
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSQLite_CreatedAtRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	before := time.Now().UTC().Add(-time.Second)

	lead := mustCreate(t, st, "Yuki", "JP", 0.95)

	leads, err := st.ListLeads(context.Background(), LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].CreatedAt.Equal(lead.CreatedAt))
	assert.True(t, leads[0].CreatedAt.After(before))
	assert.Equal(t, time.UTC, leads[0].CreatedAt.Location())
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "leads.db?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", sqliteDSN("leads.db"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", sqliteDSN("file:x.db?mode=rwc"))
}

func TestSQLiteStore_BusyTimeoutOnEveryConnection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Hold two connections at once so the pool must open a second one.
	c1, err := st.db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close() //nolint:errcheck
	c2, err := st.db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close() //nolint:errcheck

	for _, c := range []*sql.Conn{c1, c2} {
		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout)
	}
}

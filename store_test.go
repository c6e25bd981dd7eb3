package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPersistence struct {
	records []ChurnRecord
	history []UploadHistoryEntry
	loadErr error
	saveErr error
	saves   int
}

func (p *memoryPersistence) Load() ([]ChurnRecord, []UploadHistoryEntry, error) {
	return p.records, p.history, p.loadErr
}

func (p *memoryPersistence) Save(records []ChurnRecord, history []UploadHistoryEntry) error {
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.records = records
	p.history = history
	return nil
}

func TestStoreMergeAppendsAndPersists(t *testing.T) {
	persist := &memoryPersistence{}
	store := NewDataStore(persist)
	store.Load()

	outcome := store.Merge([]ChurnRecord{
		{StripeUserID: "cus_1", Email: "a@x.com"},
		{StripeUserID: "cus_2", Email: "b@x.com"},
	}, 1, false)

	assert.True(t, outcome.Committed)
	assert.Equal(t, 2, outcome.NewRecords)
	assert.Equal(t, 0, outcome.Duplicates)
	assert.Equal(t, 1, outcome.Errors)
	assert.Len(t, store.Records(), 2)
	assert.Equal(t, 1, persist.saves)

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].RecordsAdded)
	assert.Equal(t, 2, history[0].TotalRecords)
	assert.NotEmpty(t, history[0].ID)
}

func TestStoreMergeSameBatchTwice(t *testing.T) {
	store := NewDataStore(&memoryPersistence{})
	batch := []ChurnRecord{
		{StripeUserID: "cus_1", Email: "a@x.com"},
		{StripeUserID: "cus_2", Email: "b@x.com"},
	}

	first := store.Merge(batch, 0, false)
	require.Equal(t, 2, first.NewRecords)

	second := store.Merge(batch, 0, true)
	assert.Equal(t, 0, second.NewRecords)
	assert.Equal(t, 2, second.Duplicates)
	assert.Len(t, store.Records(), 2)
}

func TestStoreMergeDuplicateScenario(t *testing.T) {
	store := NewDataStore(&memoryPersistence{})
	row := rawRow{
		"stripeUserId":     "A",
		"email":            "a@x.com",
		"mrrCancelled":     "-10",
		"monthsSubscribed": "5",
		"country":          "US",
	}
	first, err := normalizeRow(row)
	require.NoError(t, err)
	second, err := normalizeRow(row)
	require.NoError(t, err)

	outcome := store.Merge([]ChurnRecord{first, second}, 0, true)

	assert.Equal(t, 1, outcome.NewRecords)
	assert.Equal(t, 1, outcome.Duplicates)
	require.Len(t, store.Records(), 1)
	assert.Equal(t, 10.0, store.Records()[0].MRRCancelled)
}

func TestStoreMergeRequiresForceWithDuplicates(t *testing.T) {
	persist := &memoryPersistence{}
	store := NewDataStore(persist)
	store.Merge([]ChurnRecord{{StripeUserID: "cus_1", Email: "a@x.com"}}, 0, false)

	outcome := store.Merge([]ChurnRecord{
		{StripeUserID: "cus_1", Email: "a@x.com"},
		{StripeUserID: "cus_2", Email: "b@x.com"},
	}, 0, false)

	assert.False(t, outcome.Committed)
	assert.Equal(t, 1, outcome.NewRecords)
	assert.Equal(t, 1, outcome.Duplicates)
	assert.Len(t, store.Records(), 1)
	assert.Len(t, store.History(), 1)
}

func TestStoreMergeUniqueIdentifiers(t *testing.T) {
	store := NewDataStore(&memoryPersistence{})
	store.Merge([]ChurnRecord{
		{StripeUserID: "cus_1", Email: "a@x.com"},
		{StripeUserID: "cus_2", Email: "b@x.com"},
	}, 0, false)
	store.Merge([]ChurnRecord{
		{StripeUserID: "cus_2", Email: "b@x.com"},
		{StripeUserID: "cus_3", Email: "c@x.com"},
	}, 0, true)

	seen := map[string]int{}
	for _, record := range store.Records() {
		seen[record.StripeUserID]++
	}
	assert.Len(t, store.Records(), 3)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
}

func TestStoreClear(t *testing.T) {
	persist := &memoryPersistence{}
	store := NewDataStore(persist)
	store.Merge([]ChurnRecord{{StripeUserID: "cus_1", Email: "a@x.com"}}, 0, false)

	store.Clear()

	assert.Empty(t, store.Records())
	assert.Empty(t, store.History())
	assert.Empty(t, persist.records)
	assert.Equal(t, 2, persist.saves)
}

func TestStoreLoadFailureStartsEmpty(t *testing.T) {
	store := NewDataStore(&memoryPersistence{loadErr: errors.New("backend down")})
	store.Load()
	assert.Empty(t, store.Records())
}

func TestStoreSaveFailureKeepsMemoryState(t *testing.T) {
	store := NewDataStore(&memoryPersistence{saveErr: errors.New("disk full")})
	outcome := store.Merge([]ChurnRecord{{StripeUserID: "cus_1", Email: "a@x.com"}}, 0, false)

	assert.True(t, outcome.Committed)
	assert.Len(t, store.Records(), 1)
}

func TestFilePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	persist := newFilePersistence(path)

	records := []ChurnRecord{{StripeUserID: "cus_1", Email: "a@x.com", MRRCancelled: 10.5, Seats: 2}}
	history := []UploadHistoryEntry{{ID: "id-1", Timestamp: "2024-01-01T00:00:00Z", RecordsAdded: 1, TotalRecords: 1}}
	require.NoError(t, persist.Save(records, history))

	gotRecords, gotHistory, err := persist.Load()
	require.NoError(t, err)
	assert.Equal(t, records, gotRecords)
	assert.Equal(t, history, gotHistory)
}

func TestFilePersistenceMissingFile(t *testing.T) {
	persist := newFilePersistence(filepath.Join(t.TempDir(), "missing.json"))
	records, history, err := persist.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, history)
}

func TestMirrorPersistencePrefersMirrorData(t *testing.T) {
	primary := &memoryPersistence{records: []ChurnRecord{{StripeUserID: "local"}}}
	mirror := &memoryPersistence{records: []ChurnRecord{{StripeUserID: "remote"}}}

	records, _, err := newMirrorPersistence(primary, mirror).Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "remote", records[0].StripeUserID)
}

func TestMirrorPersistenceFallsBackOnMirrorError(t *testing.T) {
	primary := &memoryPersistence{records: []ChurnRecord{{StripeUserID: "local"}}}
	mirror := &memoryPersistence{loadErr: errors.New("network")}

	records, _, err := newMirrorPersistence(primary, mirror).Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "local", records[0].StripeUserID)
}

func TestMirrorPersistenceSaveToleratesMirrorFailure(t *testing.T) {
	primary := &memoryPersistence{}
	mirror := &memoryPersistence{saveErr: errors.New("network")}

	err := newMirrorPersistence(primary, mirror).Save([]ChurnRecord{{StripeUserID: "cus_1"}}, nil)
	require.NoError(t, err)
	assert.Len(t, primary.records, 1)
}

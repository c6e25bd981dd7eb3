package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// UploadHistoryEntry records one committed merge.
type UploadHistoryEntry struct {
	ID                string `json:"id"`
	Timestamp         string `json:"timestamp"`
	RecordsAdded      int    `json:"recordsAdded"`
	DuplicatesSkipped int    `json:"duplicatesSkipped"`
	TotalRecords      int    `json:"totalRecords"`
}

// Persistence is the pluggable durable backend behind the store. Load runs
// once at startup, Save after every successful merge or clear. Failures are
// reported to the caller but never block the in-memory pipeline.
type Persistence interface {
	Load() ([]ChurnRecord, []UploadHistoryEntry, error)
	Save(records []ChurnRecord, history []UploadHistoryEntry) error
}

// DataStore owns the canonical record set and the upload history. The set
// only grows by whole batches or is fully cleared; there is no per-record
// update path.
type DataStore struct {
	persist Persistence
	records []ChurnRecord
	history []UploadHistoryEntry
}

func NewDataStore(persist Persistence) *DataStore {
	return &DataStore{persist: persist}
}

// Load pulls persisted state into memory. A load failure leaves the store
// empty and is logged, not returned: the session proceeds from scratch.
func (s *DataStore) Load() {
	records, history, err := s.persist.Load()
	if err != nil {
		log.WithError(err).Warn("load failed, starting with empty dataset")
		return
	}
	s.records = records
	s.history = history
}

// Merge dedupes a normalized batch against the current set and, unless the
// batch contains duplicates and force is false, appends the new records and
// persists. The returned outcome reports counts and up to three sample
// records per partition either way.
func (s *DataStore) Merge(batch []ChurnRecord, malformed int, force bool) UploadOutcome {
	existingIDs := make(map[string]struct{}, len(s.records))
	for _, record := range s.records {
		existingIDs[record.StripeUserID] = struct{}{}
	}
	newRecords, duplicates := partitionBatch(existingIDs, batch)

	outcome := UploadOutcome{
		NewRecords:       len(newRecords),
		Duplicates:       len(duplicates),
		Errors:           malformed,
		SampleNewRecords: sampleRecords(newRecords),
		SampleDuplicates: sampleRecords(duplicates),
	}
	if len(duplicates) > 0 && !force {
		return outcome
	}

	s.records = append(s.records, newRecords...)
	s.history = append(s.history, UploadHistoryEntry{
		ID:                uuid.New().String(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		RecordsAdded:      len(newRecords),
		DuplicatesSkipped: len(duplicates),
		TotalRecords:      len(s.records),
	})
	outcome.Committed = true

	log.WithFields(log.Fields{
		"new":        outcome.NewRecords,
		"duplicates": outcome.Duplicates,
		"errors":     outcome.Errors,
		"total":      len(s.records),
	}).Info("merged upload batch")

	s.save()
	return outcome
}

// Clear wipes the canonical set, the history, and the persisted state.
func (s *DataStore) Clear() {
	s.records = nil
	s.history = nil
	s.save()
}

func (s *DataStore) Records() []ChurnRecord {
	return s.records
}

func (s *DataStore) History() []UploadHistoryEntry {
	return s.history
}

// save is best effort: the in-memory state stays authoritative for the
// session when the backend rejects a write.
func (s *DataStore) save() {
	if err := s.persist.Save(s.records, s.history); err != nil {
		log.WithError(err).Error("save failed, in-memory state kept")
	}
}

// fileState is the on-disk shape of the JSON state file.
type fileState struct {
	Records []ChurnRecord        `json:"records"`
	History []UploadHistoryEntry `json:"history"`
}

// filePersistence stores the dataset in a local JSON file.
type filePersistence struct {
	path string
}

func newFilePersistence(path string) *filePersistence {
	return &filePersistence{path: path}
}

func (p *filePersistence) Load() ([]ChurnRecord, []UploadHistoryEntry, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, nil, err
	}
	return state.Records, state.History, nil
}

func (p *filePersistence) Save(records []ChurnRecord, history []UploadHistoryEntry) error {
	data, err := json.MarshalIndent(fileState{Records: records, History: history}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0644)
}

// mirrorPersistence layers a best-effort remote mirror over a primary
// backend. Loads prefer the mirror when it has data, matching the
// dashboard's remote-first startup; saves always hit the primary and only
// log mirror failures.
type mirrorPersistence struct {
	primary Persistence
	mirror  Persistence
}

func newMirrorPersistence(primary, mirror Persistence) *mirrorPersistence {
	return &mirrorPersistence{primary: primary, mirror: mirror}
}

func (p *mirrorPersistence) Load() ([]ChurnRecord, []UploadHistoryEntry, error) {
	records, history, err := p.mirror.Load()
	if err != nil {
		log.WithError(err).Warn("mirror load failed, falling back to primary")
	} else if len(records) > 0 {
		return records, history, nil
	}
	return p.primary.Load()
}

func (p *mirrorPersistence) Save(records []ChurnRecord, history []UploadHistoryEntry) error {
	err := p.primary.Save(records, history)
	if mirrorErr := p.mirror.Save(records, history); mirrorErr != nil {
		log.WithError(mirrorErr).Warn("mirror save failed")
	}
	return err
}

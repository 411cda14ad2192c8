package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/splashes/splashes/internal/company"
)

// Memory is an in-process Store. It backs --dry-run and the tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]company.Record

	// Writes counts Upsert calls, including overwrites.
	writes int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]company.Record)}
}

// Upsert stores a copy of rec under id.
func (m *Memory) Upsert(ctx context.Context, id string, rec *company.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = *rec
	m.writes++
	return nil
}

// Get returns a copy of the document identified by id.
func (m *Memory) Get(ctx context.Context, id string) (*company.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return &rec, nil
}

// Search matches query case-insensitively against the searchable fields.
// Results are ordered by SIRET.
func (m *Memory) Search(ctx context.Context, query string, size int) ([]company.Record, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []company.Record
	for _, id := range m.sortedIDs() {
		rec := m.docs[id]
		if query == "" || matches(rec, query) {
			records = append(records, rec)
		}
		if size > 0 && len(records) == size {
			break
		}
	}
	return records, nil
}

func matches(rec company.Record, query string) bool {
	for _, v := range []string{rec.Name, rec.Sign, rec.City, rec.Siret, rec.Siren, rec.APE, rec.PostalCode} {
		if v != "" && strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// Delete removes the document identified by id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(m.docs, id)
	return nil
}

// UpdateByQuery applies the denormalization to every stored document.
// Documents are round-tripped through their JSON form so that fields are
// addressed by the same names as in the index.
func (m *Memory) UpdateByQuery(ctx context.Context, d Denormalization) (*UpdateByQueryResult, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := &UpdateByQueryResult{}
	for _, id := range m.sortedIDs() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := toDocument(m.docs[id])
		if err != nil {
			return nil, err
		}

		value, ok := doc[d.Source]
		if !ok || value == nil {
			continue
		}
		if _, has := doc[d.Target]; has && d.OnlyMissing {
			continue
		}
		result.Total++

		mapped, ok := d.Lookup[fmt.Sprint(value)]
		if !ok {
			result.Noops++
			continue
		}
		doc[d.Target] = mapped

		rec, err := fromDocument(doc)
		if err != nil {
			result.Failures = append(result.Failures, Failure{ID: id, Reason: err.Error()})
			continue
		}
		if back, _ := toDocument(rec); back[d.Target] != mapped {
			result.Failures = append(result.Failures, Failure{ID: id, Reason: fmt.Sprintf("field %q is not a company string field", d.Target)})
			continue
		}
		m.docs[id] = rec
		result.Updated++
	}
	return result, nil
}

// Count returns the number of stored documents.
func (m *Memory) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.docs)), nil
}

// Writes returns the number of Upsert calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}

func (m *Memory) sortedIDs() []string {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func toDocument(rec company.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc map[string]any) (company.Record, error) {
	var rec company.Record
	data, err := json.Marshal(doc)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(data, &rec)
	return rec, err
}

var _ Store = (*Memory)(nil)

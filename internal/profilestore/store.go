// Package profilestore persists the emotion profiles and prosody parameters
// produced for each narrated document, for later inspection and tuning.
package profilestore

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/narrata/pkg/emotion"
	"github.com/MrWong99/narrata/pkg/prosody"
)

// ErrInvalidRecord is returned by Save for records without a document or
// segment id.
var ErrInvalidRecord = errors.New("profilestore: record needs a document id and a segment id")

// Record is the stored reading of one segment.
type Record struct {
	DocumentID string             `json:"document_id"`
	Profile    emotion.Profile    `json:"profile"`
	Prosody    prosody.Parameters `json:"prosody"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Validate reports whether r can be stored.
func (r Record) Validate() error {
	if r.DocumentID == "" || r.Profile.SegmentID == "" {
		return ErrInvalidRecord
	}
	return nil
}

// Store persists records. Saving a record for a (document, segment) pair that
// already exists replaces it. List returns a document's records in reading
// order: by start position, enclosing segments before their children.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, documentID string) ([]Record, error)
}

// Less orders records for [Store.List].
func Less(a, b Record) int {
	sa, sb := a.Profile.Segment, b.Profile.Segment
	if sa.StartPos != sb.StartPos {
		return sa.StartPos - sb.StartPos
	}
	return sa.Type.Level() - sb.Type.Level()
}

// MemStore is an in-memory [Store].
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Record
	now  func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]map[string]Record), now: time.Now}
}

// Save implements [Store]. A zero CreatedAt is set to the current time.
func (m *MemStore) Save(_ context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[r.DocumentID]
	if !ok {
		doc = make(map[string]Record)
		m.docs[r.DocumentID] = doc
	}
	doc[r.Profile.SegmentID] = r
	return nil
}

// List implements [Store]. Unknown documents yield an empty slice.
func (m *MemStore) List(_ context.Context, documentID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.docs[documentID]))
	for _, r := range m.docs[documentID] {
		out = append(out, r)
	}
	slices.SortFunc(out, Less)
	return out, nil
}

// Documents returns the ids of all stored documents, sorted.
func (m *MemStore) Documents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

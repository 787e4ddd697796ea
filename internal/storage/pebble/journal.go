package pebblestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/triage/internal/item"
)

// itemKeyPrefix namespaces work item records. The full key "wi/<id>" is
// the item's stable identity key; ids are time-sortable, so a prefix scan
// yields records in creation order.
const itemKeyPrefix = "wi/"

func itemKey(id string) []byte { return []byte(itemKeyPrefix + id) }

// record is the persisted representation of a WorkItem. Timestamps are
// stored as unix milliseconds, comfortably above the required second
// precision.
type record struct {
	ID           string `json:"id"`
	CustomerName string `json:"customerName"`
	CreatedAtMs  int64  `json:"createdAtMs"`
	Status       string `json:"status"`

	AgentID   string `json:"agentId,omitempty"`
	AgentName string `json:"agentName,omitempty"`
	ClaimedMs int64  `json:"claimedMs,omitempty"`
}

func encodeItem(w item.WorkItem) ([]byte, error) {
	rec := record{
		ID:           w.ID,
		CustomerName: w.CustomerName,
		CreatedAtMs:  w.CreatedAt.UnixMilli(),
		Status:       string(w.Status),
		AgentID:      w.AssignedAgentID,
		AgentName:    w.AssignedAgentName,
	}
	if !w.ClaimedAt.IsZero() {
		rec.ClaimedMs = w.ClaimedAt.UnixMilli()
	}
	return json.Marshal(rec)
}

func decodeItem(b []byte) (item.WorkItem, error) {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return item.WorkItem{}, fmt.Errorf("decode item record: %w", err)
	}
	w := item.WorkItem{
		ID:                rec.ID,
		CustomerName:      rec.CustomerName,
		CreatedAt:         time.UnixMilli(rec.CreatedAtMs),
		Status:            item.Status(rec.Status),
		AssignedAgentID:   rec.AgentID,
		AssignedAgentName: rec.AgentName,
	}
	if rec.ClaimedMs != 0 {
		w.ClaimedAt = time.UnixMilli(rec.ClaimedMs)
	}
	return w, nil
}

// Journal persists work item records.
type Journal struct {
	db *DB
}

// NewJournal creates a Journal over an open DB.
func NewJournal(db *DB) *Journal { return &Journal{db: db} }

// SaveItem writes the full record for one item, replacing any previous
// version.
func (j *Journal) SaveItem(_ context.Context, w item.WorkItem) error {
	if w.ID == "" {
		return errors.New("journal: item id required")
	}
	b, err := encodeItem(w)
	if err != nil {
		return err
	}
	return j.db.Set(itemKey(w.ID), b)
}

// LoadItem reads one record by id.
func (j *Journal) LoadItem(_ context.Context, id string) (item.WorkItem, error) {
	b, err := j.db.Get(itemKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return item.WorkItem{}, item.ErrNotFound
		}
		return item.WorkItem{}, err
	}
	return decodeItem(b)
}

// LoadAll scans every persisted record in creation order. Used for
// startup recovery; resolved items are included so callers can inspect
// the archive.
func (j *Journal) LoadAll(_ context.Context) ([]item.WorkItem, error) {
	prefix := []byte(itemKeyPrefix)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []item.WorkItem
	for ok := iter.First(); ok; ok = iter.Next() {
		w, err := decodeItem(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

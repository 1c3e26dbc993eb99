// Package drafts keeps documents that were put on hold before saving.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// HeldDraft is a suspended document snapshot with a short summary.
type HeldDraft struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	HeldAt    time.Time       `json:"held_at"`
	PartyName string          `json:"party_name"`
	ItemCount int             `json:"item_count"`
	Total     float64         `json:"total"`
	Label     string          `json:"label"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// Summary describes the document being held.
type Summary struct {
	PartyName string
	ItemCount int
	Total     float64
}

// ErrDraftNotFound indicates the draft id is not in the queue.
var ErrDraftNotFound = errors.New("drafts: draft not found")

// Queue exposes hold, restore and discard over a Store.
type Queue struct {
	store   Store
	printer *message.Printer
	now     func() time.Time
}

// NewQueue constructs a Queue.
func NewQueue(store Store) *Queue {
	return &Queue{store: store, printer: message.NewPrinter(language.English), now: time.Now}
}

// Hold appends a snapshot to the queue.
func (q *Queue) Hold(ctx context.Context, kind string, sum Summary, snapshot any) (HeldDraft, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return HeldDraft{}, fmt.Errorf("drafts: encode snapshot: %w", err)
	}
	d := HeldDraft{
		ID:        uuid.NewString(),
		Kind:      kind,
		HeldAt:    q.now().UTC(),
		PartyName: sum.PartyName,
		ItemCount: sum.ItemCount,
		Total:     sum.Total,
		Snapshot:  raw,
	}
	d.Label = q.label(d)
	err = q.store.Update(ctx, func(current []HeldDraft) ([]HeldDraft, error) {
		return append(current, d), nil
	})
	if err != nil {
		return HeldDraft{}, err
	}
	return d, nil
}

// Restore removes a draft from the queue and returns it. When decode fails the
// queue is left unchanged.
func (q *Queue) Restore(ctx context.Context, id string, decode func(HeldDraft) error) (HeldDraft, error) {
	var found HeldDraft
	err := q.store.Update(ctx, func(current []HeldDraft) ([]HeldDraft, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, ErrDraftNotFound
		}
		if decode != nil {
			if err := decode(current[idx]); err != nil {
				return nil, err
			}
		}
		found = current[idx]
		return append(current[:idx:idx], current[idx+1:]...), nil
	})
	if err != nil {
		return HeldDraft{}, err
	}
	return found, nil
}

// Discard removes a draft without restoring it.
func (q *Queue) Discard(ctx context.Context, id string) error {
	return q.store.Update(ctx, func(current []HeldDraft) ([]HeldDraft, error) {
		idx := indexOf(current, id)
		if idx < 0 {
			return nil, ErrDraftNotFound
		}
		return append(current[:idx:idx], current[idx+1:]...), nil
	})
}

// List returns drafts of one kind, or all when kind is empty.
func (q *Queue) List(ctx context.Context, kind string) ([]HeldDraft, error) {
	all, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return all, nil
	}
	out := make([]HeldDraft, 0, len(all))
	for _, d := range all {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (q *Queue) label(d HeldDraft) string {
	party := d.PartyName
	if party == "" {
		party = "No party"
	}
	return q.printer.Sprintf("%s, %d items, %.2f (%s)", party, d.ItemCount, d.Total, d.HeldAt.Format("02 Jan 15:04"))
}

func indexOf(drafts []HeldDraft, id string) int {
	for i, d := range drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

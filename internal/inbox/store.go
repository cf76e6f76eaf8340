package inbox

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/counselhub/inbox-sync/internal/model"
)

// Store is the ordered message collection for one signed-in identity. It is
// the single source of truth; conversations and thread views are recomputed
// from it and never maintained independently. The Store itself is not
// goroutine safe; the engine serializes access under its own lock.
type Store struct {
	msgs []model.Message
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Len returns the number of held messages.
func (s *Store) Len() int {
	return len(s.msgs)
}

// Snapshot returns a copy of the full message list in store order.
func (s *Store) Snapshot() []model.Message {
	out := make([]model.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Replace swaps the entire message list, used on refresh.
func (s *Store) Replace(msgs []model.Message) {
	s.msgs = make([]model.Message, len(msgs))
	copy(s.msgs, msgs)
}

// Append adds a message at the end of the list.
func (s *Store) Append(m model.Message) {
	s.msgs = append(s.msgs, m)
}

// Index returns the position of the message whose ID or ClientID matches
// id, or -1. Matching on either identity keys reconciliation on the message
// rather than on call order.
func (s *Store) Index(id string) int {
	for i := range s.msgs {
		if s.msgs[i].ID == id || (s.msgs[i].ClientID != "" && s.msgs[i].ClientID == id) {
			return i
		}
	}
	return -1
}

// Get returns a copy of the message with the given identity.
func (s *Store) Get(id string) (model.Message, bool) {
	if i := s.Index(id); i >= 0 {
		return s.msgs[i], true
	}
	return model.Message{}, false
}

// Set overwrites the message at index i.
func (s *Store) Set(i int, m model.Message) {
	s.msgs[i] = m
}

// RemoveAt removes and returns the message at index i.
func (s *Store) RemoveAt(i int) model.Message {
	m := s.msgs[i]
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	return m
}

// InsertAt reinserts a message at its original position so thread ordering
// is preserved after a rollback. Indexes past the end clamp to append.
func (s *Store) InsertAt(i int, m model.Message) {
	if i < 0 {
		i = 0
	}
	if i >= len(s.msgs) {
		s.msgs = append(s.msgs, m)
		return
	}
	s.msgs = append(s.msgs[:i], append([]model.Message{m}, s.msgs[i:]...)...)
}

// Removed is a message taken out of the store together with the position it
// held, so a failed delete can restore it exactly.
type Removed struct {
	Index   int
	Message model.Message
}

// RemoveWhere removes every message matching pred and returns the removed
// set in ascending original-index order.
func (s *Store) RemoveWhere(pred func(*model.Message) bool) []Removed {
	var removed []Removed
	kept := s.msgs[:0]
	for i := range s.msgs {
		if pred(&s.msgs[i]) {
			removed = append(removed, Removed{Index: i, Message: s.msgs[i]})
		} else {
			kept = append(kept, s.msgs[i])
		}
	}
	s.msgs = kept
	return removed
}

// Restore reinserts a removed set at its original positions. The set must
// be in ascending index order, as produced by RemoveWhere. Entries whose
// identity is already present (a refresh landed in between) are skipped.
func (s *Store) Restore(removed []Removed) {
	for _, r := range removed {
		if s.Index(r.Message.ID) >= 0 {
			continue
		}
		s.InsertAt(r.Index, r.Message)
	}
}

// Rekey rewrites the conversation id of every message whose grouping key
// (relative to selfID) equals oldKey. Used when the server assigns a
// canonical conversation id different from the client's provisional one.
func (s *Store) Rekey(selfID, oldKey, newKey string) int {
	n := 0
	for i := range s.msgs {
		if ConversationKey(&s.msgs[i], selfID) == oldKey {
			s.msgs[i].ConversationID = newKey
			n++
		}
	}
	return n
}

// RepairRecords substitutes deterministic fallbacks for malformed upstream
// records: a synthetic id derived from the record's content for a missing
// id, the epoch for a missing timestamp. One malformed record must not
// prevent the rest of the inbox from rendering.
func RepairRecords(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = syntheticID(&out[i], i)
		}
		if out[i].CreatedAt.IsZero() {
			out[i].CreatedAt = time.Unix(0, 0).UTC()
		}
	}
	return out
}

func syntheticID(m *model.Message, index int) string {
	h := fnv.New64a()
	h.Write([]byte(m.SenderID))
	h.Write([]byte{0})
	h.Write([]byte(m.RecipientID))
	h.Write([]byte{0})
	h.Write([]byte(m.Content))
	h.Write([]byte{0})
	h.Write([]byte(m.CreatedAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	return "synthetic-" + strconv.FormatUint(h.Sum64(), 16)
}

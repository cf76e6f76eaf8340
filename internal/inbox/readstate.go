package inbox

// readState remembers which conversations were explicitly opened or replied
// to in this session. It is the sole gate for automatic mark-as-read: a
// background refresh must never silently clear another party's
// delivered-but-unseen signal for a thread the user has not touched.
//
// The set lives for the session only; it is never persisted or sent to the
// server.
type readState struct {
	opened map[string]bool
}

func newReadState() *readState {
	return &readState{opened: make(map[string]bool)}
}

// Open records an explicit user open of a conversation.
func (r *readState) Open(conversationID string) {
	r.opened[conversationID] = true
}

// MarkSent records a successful send; replying counts as opening.
func (r *readState) MarkSent(conversationID string) {
	r.opened[conversationID] = true
}

// Forget drops a conversation from the set, used when it is deleted.
func (r *readState) Forget(conversationID string) {
	delete(r.opened, conversationID)
}

// Opened reports whether automatic mark-as-read may fire for a thread.
func (r *readState) Opened(conversationID string) bool {
	return r.opened[conversationID]
}

// Rekey moves opened-set membership when the server assigns a canonical
// conversation id to a provisionally keyed thread.
func (r *readState) Rekey(oldID, newID string) {
	if r.opened[oldID] {
		delete(r.opened, oldID)
		r.opened[newID] = true
	}
}

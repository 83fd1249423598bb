package moderation

import "sync"

// Store is the registry of pending submissions, keyed by SubmissionKey.
// Intake and moderator decisions run concurrently, so every access goes
// through the mutex. Take is the linearization point for decisions: at most
// one caller gets the submission for a given key.
type Store struct {
	mu   sync.RWMutex
	subs map[string]*Submission
}

func NewStore() *Store {
	return &Store{subs: make(map[string]*Submission)}
}

// Put registers a submission. A colliding key overwrites the previous entry
// rather than duplicating it.
func (st *Store) Put(sub *Submission) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.subs[sub.Key] = sub
}

// PutIfAbsent registers a submission only when its key is free. Restores use
// this so a submission handed back after a transient failure never clobbers a
// newer entry under the same key.
func (st *Store) PutIfAbsent(sub *Submission) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.subs[sub.Key]; ok {
		return false
	}
	st.subs[sub.Key] = sub
	return true
}

func (st *Store) Get(key string) (*Submission, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sub, ok := st.subs[key]
	return sub, ok
}

// Take atomically removes and returns the submission for key. A racing
// decision on the same key gets (nil, false) and must report it as stale.
func (st *Store) Take(key string) (*Submission, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sub, ok := st.subs[key]
	if ok {
		delete(st.subs, key)
	}
	return sub, ok
}

// SetReviewMessage records where the moderator-facing review message for a
// pending submission lives.
func (st *Store) SetReviewMessage(key, channelID, messageID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sub, ok := st.subs[key]; ok {
		sub.ReviewChannelID = channelID
		sub.ReviewMessageID = messageID
	}
}

// SetTranscript overwrites the transcript of a pending submission and returns
// the updated entry, or false when the key is no longer pending.
func (st *Store) SetTranscript(key, text string) (*Submission, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sub, ok := st.subs[key]
	if !ok {
		return nil, false
	}
	sub.Transcript = text
	return sub, true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.subs)
}

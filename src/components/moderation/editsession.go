package moderation

import "sync"

// EditSession records the one in-flight "moderator is editing a submission"
// interaction: the submission key plus the review message to refresh once the
// replacement text arrives.
type EditSession struct {
	Key       string
	ChannelID string
	MessageID string
}

// editSlot holds at most one EditSession for the whole process. Opening a new
// session while one is live silently replaces it; with a single moderator that
// is a documented limitation, not a conflict to resolve.
type editSlot struct {
	mu  sync.Mutex
	cur *EditSession
}

func (e *editSlot) open(sess EditSession) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cur = &sess
}

// take consumes the live session, if any. The session is closed whether or not
// the caller can still find a matching submission.
func (e *editSlot) take() (EditSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return EditSession{}, false
	}
	sess := *e.cur
	e.cur = nil
	return sess, true
}

func (e *editSlot) active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cur != nil
}

package components

import "sync"

// BanList is the set of submitter IDs whose submissions are dropped at intake.
// Ban and Unban are idempotent.
type BanList struct {
	users map[string]struct{}
	mu    sync.RWMutex
}

func NewBanList() *BanList {
	return &BanList{users: make(map[string]struct{})}
}

func (b *BanList) IsBanned(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, banned := b.users[userID]
	return banned
}

func (b *BanList) Ban(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.users[userID] = struct{}{}
}

func (b *BanList) Unban(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.users, userID)
}

func (b *BanList) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.users)
}

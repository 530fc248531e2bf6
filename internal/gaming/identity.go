package gaming

import "sync"

// IdentityProvider reports the player identity currently carded in at the
// EGM. Empty means no identity is present.
type IdentityProvider interface {
	CurrentPlayerID() string
}

// LocalIdentity is a settable identity source for a single cabinet.
type LocalIdentity struct {
	mu       sync.Mutex
	playerID string
}

// NewLocalIdentity creates an identity source with no player carded in.
func NewLocalIdentity() *LocalIdentity {
	return &LocalIdentity{}
}

func (i *LocalIdentity) CurrentPlayerID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.playerID
}

// SetPlayerID records a card-in (non-empty) or card-out (empty).
func (i *LocalIdentity) SetPlayerID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.playerID = id
}

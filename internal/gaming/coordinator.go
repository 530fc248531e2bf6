package gaming

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaymentCoordinator grants the exclusive EGM-wide "right to move money".
// At most one token is active system-wide at a time.
type PaymentCoordinator interface {
	// RequestTransaction returns a fresh token, or uuid.Nil if another
	// holder kept the token for the whole timeout.
	RequestTransaction(ownerID string, timeout time.Duration) uuid.UUID
	ReleaseTransaction(token uuid.UUID)
	IsTransactionActive() bool
}

// LocalCoordinator is the in-process coordinator for a single cabinet.
type LocalCoordinator struct {
	mu      sync.Mutex
	current uuid.UUID
	owner   string
	freed   chan struct{}
}

// NewLocalCoordinator creates a coordinator with no active token.
func NewLocalCoordinator() *LocalCoordinator {
	return &LocalCoordinator{freed: make(chan struct{}, 1)}
}

func (c *LocalCoordinator) RequestTransaction(ownerID string, timeout time.Duration) uuid.UUID {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		if c.current == uuid.Nil {
			c.current = uuid.New()
			c.owner = ownerID
			token := c.current
			c.mu.Unlock()
			return token
		}
		c.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return uuid.Nil
		}
		select {
		case <-c.freed:
		case <-time.After(remaining):
			return uuid.Nil
		}
	}
}

func (c *LocalCoordinator) ReleaseTransaction(token uuid.UUID) {
	c.mu.Lock()
	if c.current != token {
		c.mu.Unlock()
		return
	}
	c.current = uuid.Nil
	c.owner = ""
	c.mu.Unlock()

	select {
	case c.freed <- struct{}{}:
	default:
	}
}

func (c *LocalCoordinator) IsTransactionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != uuid.Nil
}

// ActiveOwner reports who holds the token, for diagnostics.
func (c *LocalCoordinator) ActiveOwner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

package account

import "sync"

// NetworkContext is a single-slot cache recording which account's server the
// next outgoing call should target. It is overwritten on every successful
// current-account resolution; readers always see a consistent pair.
type NetworkContext struct {
	mu            sync.RWMutex
	userID        int64
	serverAddress string
	valid         bool
}

// NewNetworkContext creates an empty network context.
func NewNetworkContext() *NetworkContext {
	return &NetworkContext{}
}

// Set records the routing pair for the current account. Last write wins.
func (c *NetworkContext) Set(userID int64, serverAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.serverAddress = serverAddress
	c.valid = true
}

// Get returns the most recently recorded routing pair. ok is false until the
// first Set or after a Clear.
func (c *NetworkContext) Get() (userID int64, serverAddress string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.serverAddress, c.valid
}

// Clear empties the slot, e.g. on logout.
func (c *NetworkContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = 0
	c.serverAddress = ""
	c.valid = false
}

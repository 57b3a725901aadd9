// Package httpclient builds and caches authenticated HTTP clients, one per
// account, each pinned to that account's finance server.
package httpclient

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pysugar/finance-nexus/internal/concurrency"
)

// DefaultClientTimeout bounds a full request through an account client.
const DefaultClientTimeout = 5 * time.Minute

// Client is an HTTP client pinned to one finance server.
type Client struct {
	*http.Client

	// BaseURL is the server address the client was built for.
	BaseURL string
}

// Registry maps account ID to a constructed client. Entries are built
// lazily, cached, and replaced wholesale on eviction; they are never
// mutated in place.
type Registry struct {
	accounts  CurrentAccountReader
	refresher TokenRefresher

	mu      sync.RWMutex
	clients map[int64]*Client
	runner  concurrency.ControlledRunner[*Client]
}

// NewRegistry creates an empty client registry.
func NewRegistry(accounts CurrentAccountReader, refresher TokenRefresher) *Registry {
	return &Registry{
		accounts:  accounts,
		refresher: refresher,
		clients:   make(map[int64]*Client),
	}
}

// GetClient returns the cached client for the account, constructing it on
// first use. Concurrent misses collapse to one construction; all callers
// share the resulting instance.
func (r *Registry) GetClient(userID int64, serverAddress string) *Client {
	r.mu.RLock()
	if c, ok := r.clients[userID]; ok {
		r.mu.RUnlock()
		return c
	}
	r.mu.RUnlock()

	c, _ := r.runner.JoinPreviousOrRun(func() (*Client, error) {
		// Re-check after joining: a previous run may have built it.
		r.mu.RLock()
		c, ok := r.clients[userID]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}

		c = r.newClient(serverAddress)
		r.mu.Lock()
		r.clients[userID] = c
		r.mu.Unlock()
		log.Printf("🌐 Created new client for account %d (%s)", userID, serverAddress)
		return c, nil
	})
	return c
}

// Evict drops the cached client for one account.
func (r *Registry) Evict(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, userID)
}

// EvictAll drops every cached client. Wired to the account repository's
// change hook so that switching accounts or changing a server address forces
// a rebuild on the next request.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = make(map[int64]*Client)
}

func (r *Registry) newClient(serverAddress string) *Client {
	return &Client{
		Client: &http.Client{
			Timeout:   DefaultClientTimeout,
			Transport: NewAuthTransport(nil, r.accounts, r.refresher),
		},
		BaseURL: serverAddress,
	}
}

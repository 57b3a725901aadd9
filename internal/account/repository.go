// Package account implements the account store: CRUD over persisted account
// rows, the current-account query, and the stale-row sweep.
package account

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pysugar/finance-nexus/internal/db/models"
	"gorm.io/gorm"
)

// SaveParams describes a new account row.
type SaveParams struct {
	ServerAddress string
	Auth          models.AuthenticationType
	MakeCurrent   bool

	// State is the OAuth correlation token for provisional rows; empty for
	// accounts that are complete on creation (PAT, local).
	State string
}

// Repository provides account persistence. Every successful current-account
// resolution refreshes the shared NetworkContext so the request-routing
// layer targets the right server.
type Repository struct {
	db     *gorm.DB
	netctx *NetworkContext

	mu        sync.Mutex
	listeners []func()
}

// NewRepository creates a repository over an initialized database.
func NewRepository(db *gorm.DB, netctx *NetworkContext) *Repository {
	return &Repository{db: db, netctx: netctx}
}

// OnChange registers fn to run after any committed account mutation. This is
// how downstream caches (the client registry) learn that their entries may
// be stale.
func (r *Repository) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Repository) notify() {
	r.mu.Lock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// CurrentAccount returns the row flagged as current, or ErrNoCurrentAccount
// when the user is logged out.
func (r *Repository) CurrentAccount() (models.Account, error) {
	var acc models.Account
	if err := r.db.Where("is_current = ?", true).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, ErrNoCurrentAccount
		}
		return models.Account{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.netctx.Set(acc.ID, acc.ServerAddress)
	return acc, nil
}

// AccountByState matches an OAuth redirect back to the provisional row that
// initiated it.
func (r *Repository) AccountByState(state string) (models.Account, error) {
	var acc models.Account
	if err := r.db.Where("state = ?", state).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return acc, nil
}

// Accounts lists all stored accounts.
func (r *Repository) Accounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return accounts, nil
}

// SaveAccount creates a new account row and returns its ID.
func (r *Repository) SaveAccount(p SaveParams) (int64, error) {
	acc := models.Account{
		ServerAddress: p.ServerAddress,
		State:         p.State,
	}
	acc.SetAuth(p.Auth)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if p.MakeCurrent {
			if err := tx.Model(&models.Account{}).
				Where("is_current = ?", true).
				Update("is_current", false).Error; err != nil {
				return err
			}
			acc.IsCurrent = true
		}
		return tx.Create(&acc).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Only a row that became current may steer request routing. Provisional
	// rows from a pending OAuth flow must not retarget the slot.
	if acc.IsCurrent {
		r.netctx.Set(acc.ID, acc.ServerAddress)
	}
	r.notify()
	return acc.ID, nil
}

// UpdateAccount overwrites the stored row with the same ID. Returns
// ErrNotFound when no row was updated.
func (r *Repository) UpdateAccount(acc models.Account) error {
	var serverAddressChanged bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Account
		if err := tx.First(&existing, "id = ?", acc.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		serverAddressChanged = existing.ServerAddress != acc.ServerAddress

		// Select("*") forces zero values through, so clearing the state
		// column or a token actually clears it.
		res := tx.Model(&models.Account{}).
			Where("id = ?", acc.ID).
			Select("*").
			Omit("id", "created_at").
			Updates(acc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if serverAddressChanged {
		r.notify()
	}
	return nil
}

// SetCurrentAccount atomically moves the current flag to the given account
// and retargets request routing at its server. Returns ErrNotFound when the
// account does not exist.
func (r *Repository) SetCurrentAccount(id int64) error {
	var acc models.Account
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&acc, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&models.Account{}).
			Where("is_current = ?", true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Account{}).
			Where("id = ?", id).
			Update("is_current", true).Error
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	r.netctx.Set(id, acc.ServerAddress)
	r.notify()
	return nil
}

// ClearCurrentAccount logs the user out: no row stays flagged current and
// the routing slot is emptied, so the access path refuses requests until
// another account is activated.
func (r *Repository) ClearCurrentAccount() error {
	if err := r.db.Model(&models.Account{}).
		Where("is_current = ?", true).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.netctx.Clear()
	r.notify()
	return nil
}

// RemoveStaleAccounts deletes provisional rows left over from abandoned
// onboarding flows: rows still carrying an OAuth state and either no token
// at all, or a token without client credentials.
func (r *Repository) RemoveStaleAccounts() error {
	if err := r.removeAccountsWithStateAndNoToken(); err != nil {
		return err
	}
	if err := r.removeAccountsWithStateAndTokenAndNoClientCredentials(); err != nil {
		return err
	}
	r.notify()
	return nil
}

func (r *Repository) removeAccountsWithStateAndNoToken() error {
	res := r.db.Where("state <> '' AND access_token = ''").Delete(&models.Account{})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Removed %d stale accounts without token", res.RowsAffected)
	}
	return nil
}

func (r *Repository) removeAccountsWithStateAndTokenAndNoClientCredentials() error {
	res := r.db.Where("state <> '' AND access_token <> '' AND (client_id = '' OR client_secret = '')").
		Delete(&models.Account{})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Removed %d stale accounts without client credentials", res.RowsAffected)
	}
	return nil
}

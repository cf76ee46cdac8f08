// Package session owns the binding between live connections and
// authenticated accounts.
package session

import "wallet_go/internal/domain"

// Registry maps each connection id to at most one authenticated account and
// enforces that an account is attached to at most one connection server-wide.
// Both tables are owned by the server dispatch goroutine; the registry itself
// does no locking.
type Registry struct {
	dir    *domain.Directory
	byConn map[uint64]*domain.Account
	active map[string]uint64 // username -> connection id
}

// NewRegistry creates an empty registry over the account directory.
func NewRegistry(dir *domain.Directory) *Registry {
	return &Registry{
		dir:    dir,
		byConn: make(map[uint64]*domain.Account),
		active: make(map[string]uint64),
	}
}

// Login authenticates the username/password pair and attaches the account to
// the connection. Fails with ErrAccountNotFound, ErrAccountInUse or
// ErrWrongPassword.
func (r *Registry) Login(connID uint64, username, password string) (*domain.Account, error) {
	acc, err := r.dir.Lookup(username)
	if err != nil {
		return nil, err
	}
	if _, ok := r.active[username]; ok {
		return nil, domain.ErrAccountInUse
	}
	if !acc.PasswordMatches(password) {
		return nil, domain.ErrWrongPassword
	}

	r.byConn[connID] = acc
	r.active[username] = connID
	return acc, nil
}

// Logout detaches the connection's session. Fails with ErrNotLoggedIn when
// the connection holds none.
func (r *Registry) Logout(connID uint64) error {
	acc, ok := r.byConn[connID]
	if !ok {
		return domain.ErrNotLoggedIn
	}
	delete(r.byConn, connID)
	delete(r.active, acc.Username)
	return nil
}

// Current returns the account attached to the connection, or nil.
func (r *Registry) Current(connID uint64) *domain.Account {
	return r.byConn[connID]
}

// Drop tears down any session on the connection without error. Used on
// disconnects and abrupt connection loss.
func (r *Registry) Drop(connID uint64) {
	if acc, ok := r.byConn[connID]; ok {
		delete(r.byConn, connID)
		delete(r.active, acc.Username)
	}
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	return len(r.byConn)
}

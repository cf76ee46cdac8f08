package domain

import "sort"

// Directory is the in-memory account set keyed by username. It performs no
// I/O; the storage layer loads it at startup and snapshots it for saves.
// All mutation happens on the server dispatch goroutine.
type Directory struct {
	accounts map[string]*Account
}

// NewDirectory builds a directory from accounts loaded at startup.
func NewDirectory(accounts []*Account) *Directory {
	d := &Directory{accounts: make(map[string]*Account, len(accounts))}
	for _, acc := range accounts {
		d.accounts[acc.Username] = acc
	}
	return d
}

// Lookup returns the account for a username, or ErrAccountNotFound.
func (d *Directory) Lookup(username string) (*Account, error) {
	acc, ok := d.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Register adds a new account. Fails with ErrAccountExists on a taken username.
func (d *Directory) Register(acc *Account) error {
	if _, ok := d.accounts[acc.Username]; ok {
		return ErrAccountExists
	}
	d.accounts[acc.Username] = acc
	return nil
}

// All returns every account sorted by username for deterministic snapshots.
func (d *Directory) All() []*Account {
	all := make([]*Account, 0, len(d.accounts))
	for _, acc := range d.accounts {
		all = append(all, acc)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return all
}

// Len returns the number of registered accounts.
func (d *Directory) Len() int {
	return len(d.accounts)
}

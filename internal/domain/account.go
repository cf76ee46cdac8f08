package domain

// Account binds a unique username to a password digest, an admin flag and
// exactly one wallet. Identity is the username alone.
type Account struct {
	Username string
	Digest   string
	Admin    bool
	Wallet   *Wallet
}

// NewAccount registers a fresh account with an empty wallet.
func NewAccount(username, password string) (*Account, error) {
	digest, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Account{
		Username: username,
		Digest:   digest,
		Wallet:   NewWallet(),
	}, nil
}

// PasswordMatches reports whether the plaintext password matches the stored digest.
func (a *Account) PasswordMatches(password string) bool {
	return VerifyPassword(password, a.Digest)
}

// ToggleAdmin flips the admin flag.
func (a *Account) ToggleAdmin() {
	a.Admin = !a.Admin
}

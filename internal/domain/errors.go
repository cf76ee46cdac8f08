package domain

import "errors"

var (
	// ErrInvalidAmount is returned when a money amount is missing, malformed or not positive.
	ErrInvalidAmount = errors.New("amount of money must be positive")

	// ErrInsufficientBalance is returned when a purchase exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnknownAsset is returned when an asset is absent from the current price table.
	ErrUnknownAsset = errors.New("asset does not exist")

	// ErrNoPosition is returned when selling an asset the wallet does not hold.
	ErrNoPosition = errors.New("asset not in possession")

	// ErrAccountExists is returned when registering an already taken username.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned when looking up an unknown username.
	ErrAccountNotFound = errors.New("account does not exist")

	// ErrAccountInUse is returned when the account already has a live session elsewhere.
	ErrAccountInUse = errors.New("account already in use")

	// ErrWrongPassword is returned when the password digest check fails.
	ErrWrongPassword = errors.New("wrong password")

	// ErrNotLoggedIn is returned when the connection holds no session.
	ErrNotLoggedIn = errors.New("not logged in")
)

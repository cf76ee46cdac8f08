package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wallet_go/internal/domain"

	"github.com/shopspring/decimal"
)

func testAccount(username string, admin bool) *domain.Account {
	acc := &domain.Account{
		Username: username,
		Digest:   "x",
		Admin:    admin,
		Wallet:   domain.NewWallet(),
	}
	return acc
}

func TestEncode(t *testing.T) {
	t.Run("bare account", func(t *testing.T) {
		acc := testAccount("alice", false)
		acc.Wallet.Balance = decimal.NewFromInt(100)

		want := "0;alice;x;100\n"
		if got := string(Encode([]*domain.Account{acc})); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("admin with positions, assets sorted", func(t *testing.T) {
		acc := testAccount("bob", true)
		acc.Wallet.Balance = decimal.NewFromInt(10)
		acc.Wallet.Holdings["ETH"] = decimal.NewFromInt(2)
		acc.Wallet.CostBasis["ETH"] = decimal.NewFromInt(40)
		acc.Wallet.Holdings["BTC"] = decimal.RequireFromString("0.5")
		acc.Wallet.CostBasis["BTC"] = decimal.NewFromInt(25)

		want := "1;bob;x;10;BTC;0.5;25;ETH;2;40\n"
		if got := string(Encode([]*domain.Account{acc})); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

func TestAccountStore_LoadMissingFile(t *testing.T) {
	store := NewAccountStore(filepath.Join(t.TempDir(), "absent.txt"), nil)
	accounts, err := store.Load()
	if err != nil {
		t.Fatalf("Missing file must not be an error, got %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("Expected no accounts, got %d", len(accounts))
	}
}

func TestAccountStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	store := NewAccountStore(path, nil)

	alice := testAccount("alice", true)
	alice.Wallet.Balance = decimal.RequireFromString("99.5")
	alice.Wallet.Holdings["BTC"] = decimal.NewFromInt(3)
	alice.Wallet.CostBasis["BTC"] = decimal.NewFromInt(60)
	bob := testAccount("bob", false)

	if err := store.Save([]*domain.Account{alice, bob}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(loaded))
	}

	got := loaded[0]
	if got.Username != "alice" || !got.Admin || got.Digest != "x" {
		t.Errorf("Account fields did not survive the round trip: %+v", got)
	}
	if !got.Wallet.Balance.Equal(alice.Wallet.Balance) {
		t.Errorf("Expected balance %s, got %s", alice.Wallet.Balance, got.Wallet.Balance)
	}
	if !got.Wallet.Holdings["BTC"].Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected 3 units of BTC, got %s", got.Wallet.Holdings["BTC"])
	}
	if !got.Wallet.CostBasis["BTC"].Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected cost basis 60, got %s", got.Wallet.CostBasis["BTC"])
	}
	if loaded[1].Admin {
		t.Error("bob must not be admin")
	}
}

func TestAccountStore_LoadCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	if err := os.WriteFile(path, []byte("0;alice;x;100;BTC;5\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := NewAccountStore(path, nil).Load(); err == nil {
		t.Error("Dangling position fields must fail the load")
	}
}

func TestAccountStore_SaveAsync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.txt")
	store := NewAccountStore(path, nil)
	store.Start()

	acc := testAccount("alice", false)
	acc.Wallet.Balance = decimal.NewFromInt(1)
	store.SaveAsync([]*domain.Account{acc})

	acc.Wallet.Balance = decimal.NewFromInt(2)
	store.SaveAsync([]*domain.Account{acc})

	store.Close() // flushes the pending snapshot

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil && string(data) == "0;alice;x;2\n" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Latest snapshot never reached disk, last read: %q (%v)", data, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

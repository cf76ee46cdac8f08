package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wallet_go/internal/domain"
	"wallet_go/internal/session"

	"github.com/shopspring/decimal"
)

type stubPrices struct {
	table map[string]decimal.Decimal
	err   error
	calls int
}

func (s *stubPrices) Prices(_ context.Context) (map[string]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]decimal.Decimal, len(s.table))
	for asset, price := range s.table {
		out[asset] = price
	}
	return out, nil
}

type stubJournal struct {
	actions []string
}

func (s *stubJournal) Record(_, action, _ string, _, _, _ decimal.Decimal) error {
	s.actions = append(s.actions, action)
	return nil
}

func newTestExecutor(t *testing.T) (*Executor, *stubPrices, *stubJournal) {
	t.Helper()
	prices := &stubPrices{table: map[string]decimal.Decimal{
		"DUMMY": decimal.NewFromFloat(0.5),
		"BTC":   decimal.NewFromInt(2),
	}}
	journal := &stubJournal{}
	dir := domain.NewDirectory(nil)
	exec := NewExecutor(nil, dir, session.NewRegistry(dir), prices, journal, nil)
	return exec, prices, journal
}

func run(e *Executor, connID uint64, line string) string {
	return e.Execute(context.Background(), Parse(line), connID)
}

func TestExecutor_Register(t *testing.T) {
	t.Run("register then login", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		if got := run(e, 1, "register a p1"); got != registeredSuccessfully {
			t.Errorf("Expected %q, got %q", registeredSuccessfully, got)
		}
		if got := run(e, 1, "login a p1"); got != loggedInSuccessfully {
			t.Errorf("Expected %q, got %q", loggedInSuccessfully, got)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		run(e, 1, "register a p1")
		if got := run(e, 1, "register a p1"); got != accountExistsMessage {
			t.Errorf("Expected %q, got %q", accountExistsMessage, got)
		}
	})

	t.Run("rejected while logged in", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		run(e, 1, "register a p1")
		run(e, 1, "login a p1")
		if got := run(e, 1, "register b p1"); got != alreadyLoggedInMessage {
			t.Errorf("Expected %q, got %q", alreadyLoggedInMessage, got)
		}
	})

	t.Run("weak password is rejected with the missing parts", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		got := run(e, 1, "register a passwordonly")
		if got == registeredSuccessfully {
			t.Fatal("Password without a digit must be rejected")
		}
	})
}

func TestExecutor_Login(t *testing.T) {
	t.Run("unknown account", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		if got := run(e, 1, "login ghost p1"); got != accountNotFoundMessage {
			t.Errorf("Expected %q, got %q", accountNotFoundMessage, got)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		run(e, 1, "register a p1")
		if got := run(e, 1, "login a nope1"); got != wrongPasswordMessage {
			t.Errorf("Expected %q, got %q", wrongPasswordMessage, got)
		}
	})

	t.Run("exclusive across connections until logout", func(t *testing.T) {
		e, _, _ := newTestExecutor(t)
		run(e, 1, "register a p1")
		run(e, 1, "login a p1")
		if got := run(e, 2, "login a p1"); got != accountInUseMessage {
			t.Errorf("Expected %q, got %q", accountInUseMessage, got)
		}
		run(e, 1, "logout")
		if got := run(e, 2, "login a p1"); got != loggedInSuccessfully {
			t.Errorf("Expected %q after logout, got %q", loggedInSuccessfully, got)
		}
	})
}

func TestExecutor_Logout(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	if got := run(e, 1, "logout"); got != loggedOutSuccessfully {
		t.Errorf("Expected %q, got %q", loggedOutSuccessfully, got)
	}
	if got := run(e, 1, "logout"); got != notLoggedInMessage {
		t.Errorf("Second logout should report %q, got %q", notLoggedInMessage, got)
	}
}

func TestExecutor_AuthGate(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	for _, line := range []string{
		"deposit-money 10", "list-offerings", "buy DUMMY 10", "sell DUMMY",
		"get-wallet-summary", "get-wallet-overall-summary", "logout",
		"make-admin a", "shutdown",
	} {
		if got := run(e, 1, line); got != notLoggedInMessage {
			t.Errorf("%q without session: expected %q, got %q", line, notLoggedInMessage, got)
		}
	}
}

func TestExecutor_ArgumentCount(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	want := fmt.Sprintf(invalidArgsFormat, Buy, 2, buyUsage)
	if got := run(e, 1, "buy DUMMY"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	want = fmt.Sprintf(invalidArgsFormat, DepositMoney, 1, depositUsage)
	if got := run(e, 1, "deposit-money"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	want = fmt.Sprintf(invalidArgsFormat, Login, 2, loginUsage)
	if got := run(e, 2, "login a"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestExecutor_Deposit(t *testing.T) {
	e, _, journal := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	t.Run("positive amount", func(t *testing.T) {
		if got := run(e, 1, "deposit-money 60"); got != depositedSuccessfully {
			t.Errorf("Expected %q, got %q", depositedSuccessfully, got)
		}
		if len(journal.actions) != 1 || journal.actions[0] != "DEPOSIT" {
			t.Errorf("Expected one DEPOSIT journal row, got %v", journal.actions)
		}
	})

	t.Run("non-positive and malformed amounts", func(t *testing.T) {
		for _, line := range []string{"deposit-money 0", "deposit-money -5", "deposit-money abc"} {
			if got := run(e, 1, line); got != invalidMoneyAmountMessage {
				t.Errorf("%q: expected %q, got %q", line, invalidMoneyAmountMessage, got)
			}
		}
	})
}

func TestExecutor_Buy(t *testing.T) {
	e, prices, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")
	run(e, 1, "deposit-money 60")

	t.Run("negative amount", func(t *testing.T) {
		if got := run(e, 1, "buy DUMMY -1"); got != invalidMoneyAmountMessage {
			t.Errorf("Expected %q, got %q", invalidMoneyAmountMessage, got)
		}
	})

	t.Run("unknown asset", func(t *testing.T) {
		if got := run(e, 1, "buy BUMPY 50"); got != assetDoesNotExistMessage {
			t.Errorf("Expected %q, got %q", assetDoesNotExistMessage, got)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		if got := run(e, 1, "buy DUMMY 1000"); got != insufficientBalanceMsg {
			t.Errorf("Expected %q, got %q", insufficientBalanceMsg, got)
		}
	})

	t.Run("zero-priced asset cannot be bought", func(t *testing.T) {
		prices.table["DUMMY"] = decimal.Zero
		defer func() { prices.table["DUMMY"] = decimal.NewFromFloat(0.5) }()
		if got := run(e, 1, "buy DUMMY 10"); got != assetDoesNotExistMessage {
			t.Errorf("Expected %q, got %q", assetDoesNotExistMessage, got)
		}
	})

	t.Run("successful purchase", func(t *testing.T) {
		want := fmt.Sprintf(purchasedFormat, "DUMMY", "50")
		if got := run(e, 1, "buy DUMMY 50"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("provider failure yields a generic message", func(t *testing.T) {
		prices.err = errors.New("boom")
		defer func() { prices.err = nil }()
		if got := run(e, 1, "buy DUMMY 1"); got != failedRequestMessage {
			t.Errorf("Expected %q, got %q", failedRequestMessage, got)
		}
	})
}

func TestExecutor_Sell(t *testing.T) {
	e, _, journal := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	t.Run("no position", func(t *testing.T) {
		if got := run(e, 1, "sell DUMMY"); got != assetNotHeldMessage {
			t.Errorf("Expected %q, got %q", assetNotHeldMessage, got)
		}
	})

	t.Run("unknown asset", func(t *testing.T) {
		if got := run(e, 1, "sell BUMPY"); got != assetDoesNotExistMessage {
			t.Errorf("Expected %q, got %q", assetDoesNotExistMessage, got)
		}
	})

	t.Run("full liquidation of one unit at half a dollar", func(t *testing.T) {
		run(e, 1, "deposit-money 0.5")
		run(e, 1, "buy DUMMY 0.5") // one unit at 0.5

		want := fmt.Sprintf(soldFormat, "DUMMY", "0.5")
		if got := run(e, 1, "sell DUMMY"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
		if got := run(e, 1, "sell DUMMY"); got != assetNotHeldMessage {
			t.Errorf("Position must be gone after sell, got %q", got)
		}
		if journal.actions[len(journal.actions)-1] != "SELL" {
			t.Errorf("Expected SELL journal row, got %v", journal.actions)
		}
	})
}

func TestExecutor_Summaries(t *testing.T) {
	e, prices, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")
	run(e, 1, "deposit-money 100")
	run(e, 1, "buy BTC 60") // 30 units at 2

	t.Run("wallet summary", func(t *testing.T) {
		want := "Current balance: 40.00\nBTC    30.00"
		if got := run(e, 1, "get-wallet-summary"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("overall summary reflects price movement", func(t *testing.T) {
		prices.table["BTC"] = decimal.NewFromInt(4)
		want := "Total winnings/losses: 160.00"
		if got := run(e, 1, "get-wallet-overall-summary"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("overall summary names holdings missing from the table", func(t *testing.T) {
		delete(prices.table, "BTC")
		defer func() { prices.table["BTC"] = decimal.NewFromInt(4) }()
		want := "Total winnings/losses: 40.00\nExcluded (no current price): BTC"
		if got := run(e, 1, "get-wallet-overall-summary"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("overall summary on provider failure", func(t *testing.T) {
		prices.err = errors.New("boom")
		defer func() { prices.err = nil }()
		if got := run(e, 1, "get-wallet-overall-summary"); got != failedRequestMessage {
			t.Errorf("Expected %q, got %q", failedRequestMessage, got)
		}
	})
}

func TestExecutor_ListOfferings(t *testing.T) {
	e, prices, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	t.Run("sorted table", func(t *testing.T) {
		want := fmt.Sprintf("%-6s %10s\n%-6s %10s", "BTC", "2.0000", "DUMMY", "0.5000")
		if got := run(e, 1, "list-offerings"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		prices.err = errors.New("boom")
		defer func() { prices.err = nil }()
		if got := run(e, 1, "list-offerings"); got != failedRequestMessage {
			t.Errorf("Expected %q, got %q", failedRequestMessage, got)
		}
	})
}

func TestExecutor_AdminCommands(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	run(e, 1, "register root p1")
	run(e, 1, "login root p1")
	run(e, 2, "register peon p1")
	run(e, 2, "login peon p1")

	t.Run("non-admin is rejected", func(t *testing.T) {
		if got := run(e, 2, "shutdown"); got != notAdminMessage {
			t.Errorf("Expected %q, got %q", notAdminMessage, got)
		}
		if got := run(e, 2, "make-admin root"); got != notAdminMessage {
			t.Errorf("Expected %q, got %q", notAdminMessage, got)
		}
	})

	// Seed one admin the way operators do: directly in the store.
	root, err := e.dir.Lookup("root")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	root.Admin = true

	t.Run("make-admin toggles the target flag", func(t *testing.T) {
		want := fmt.Sprintf(adminToggledFormat, "peon")
		if got := run(e, 1, "make-admin peon"); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
		peon, _ := e.dir.Lookup("peon")
		if !peon.Admin {
			t.Error("Target must be admin after toggle")
		}
	})

	t.Run("make-admin on an unknown account", func(t *testing.T) {
		if got := run(e, 1, "make-admin ghost"); got != accountNotFoundMessage {
			t.Errorf("Expected %q, got %q", accountNotFoundMessage, got)
		}
	})

	t.Run("admin shutdown is acknowledged", func(t *testing.T) {
		if got := run(e, 1, "shutdown"); got != ShuttingDownMessage {
			t.Errorf("Expected %q, got %q", ShuttingDownMessage, got)
		}
	})
}

func TestExecutor_UnknownCommand(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	if got := run(e, 1, "frobnicate now"); got != UnknownCommandMessage {
		t.Errorf("Expected %q, got %q", UnknownCommandMessage, got)
	}
}

func TestExecutor_Disconnect(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	run(e, 1, "register a p1")
	run(e, 1, "login a p1")

	e.DropConnection(1)
	if got := run(e, 2, "login a p1"); got != loggedInSuccessfully {
		t.Errorf("Account must be free after connection drop, got %q", got)
	}
}

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"wallet_go/internal/domain"
	"wallet_go/internal/session"

	"github.com/shopspring/decimal"
)

// Command names form the closed protocol set.
const (
	Help                    = "help"
	Register                = "register"
	Login                   = "login"
	Logout                  = "logout"
	Disconnect              = "disconnect"
	Shutdown                = "shutdown"
	DepositMoney            = "deposit-money"
	ListOfferings           = "list-offerings"
	Buy                     = "buy"
	Sell                    = "sell"
	GetWalletSummary        = "get-wallet-summary"
	GetWalletOverallSummary = "get-wallet-overall-summary"
	MakeAdmin               = "make-admin"
)

// Reply strings shared with the server loop.
const (
	ShuttingDownMessage       = "Server was shut down"
	DisconnectedSuccessfully  = "Disconnected successfully"
	UnknownCommandMessage     = "unknown command"
	notLoggedInMessage        = "You need to log in to use this command"
	alreadyLoggedInMessage    = "You are already logged in, log out before using this command"
	notAdminMessage           = "You must be an administrator to use this command"
	accountInUseMessage       = "This account is already logged in elsewhere"
	accountNotFoundMessage    = "Account with such username does not exist, try registering it first"
	accountExistsMessage      = "Account with such username already exists"
	failedRequestMessage      = "An error has occurred when requesting from API"
	invalidMoneyAmountMessage = "Amount of money must be positive"
	insufficientBalanceMsg    = "Insufficient balance in account wallet"
	assetDoesNotExistMessage  = "You are trying to buy an asset that does not exist"
	assetNotHeldMessage       = "You are trying to sell an asset that you do not possess"
	wrongPasswordMessage      = "Wrong password"
	loggedInSuccessfully      = "Logged in successfully"
	loggedOutSuccessfully     = "Logged out successfully"
	depositedSuccessfully     = "Deposited successfully"
	registeredSuccessfully    = "Registered successfully"
	purchasedFormat           = "Successfully purchased \"%s\" for \"%s\" dollars"
	soldFormat                = "Successfully sold \"%s\" for \"%s\" dollars"
	adminToggledFormat        = "Changed admin status of \"%s\""
	invalidArgsFormat         = "Invalid count of arguments: \"%s\" expects %d arguments. Example: \"%s\""
)

// Per-command usage lines, reused by help and by arity errors.
const (
	loginUsage          = "login <username> <password>: logs in with existing account"
	registerUsage       = "register <username> <password>: creates new account"
	logoutUsage         = "logout: logs out of account"
	disconnectUsage     = "disconnect: disconnects you from the server"
	shutdownUsage       = "shutdown: shuts down the server, disconnecting all other connected accounts"
	depositUsage        = "deposit-money <amount>: deposits amount in wallet"
	listOfferingsUsage  = "list-offerings: lists all assets available for purchase"
	buyUsage            = "buy <asset_id> <amount>: buy asset for desired quantity of money"
	sellUsage           = "sell <asset_id>: sell asset"
	walletSummaryUsage  = "get-wallet-summary: gives information about wallet, namely current balance and currently possessed assets"
	overallSummaryUsage = "get-wallet-overall-summary: gives information about total winnings/losses from investments"
	makeAdminUsage      = "make-admin <username>: toggles the admin flag of an account"
)

type handlerFn func(ctx context.Context, connID uint64, args []string) string

// handler pairs a command's argument/auth contract with its logic.
type handler struct {
	argc  int
	auth  bool
	admin bool
	usage string
	run   handlerFn
}

// Executor routes parsed commands to handlers, enforcing the shared
// authentication and arity contracts before any handler logic runs.
// It must only ever be called from the server dispatch goroutine.
type Executor struct {
	log      *slog.Logger
	dir      *domain.Directory
	sessions *session.Registry
	prices   domain.PriceSource
	journal  domain.TradeRecorder
	saver    domain.AccountSaver
	handlers map[string]handler
}

// NewExecutor wires the dispatcher. journal and saver may be nil.
func NewExecutor(log *slog.Logger, dir *domain.Directory, sessions *session.Registry,
	prices domain.PriceSource, journal domain.TradeRecorder, saver domain.AccountSaver) *Executor {
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		log:      log,
		dir:      dir,
		sessions: sessions,
		prices:   prices,
		journal:  journal,
		saver:    saver,
	}
	e.handlers = map[string]handler{
		Help:                    {argc: 0, usage: Help, run: e.help},
		Register:                {argc: 2, usage: registerUsage, run: e.register},
		Login:                   {argc: 2, usage: loginUsage, run: e.login},
		Logout:                  {argc: 0, auth: true, usage: logoutUsage, run: e.logout},
		Disconnect:              {argc: 0, usage: disconnectUsage, run: e.disconnect},
		Shutdown:                {argc: 0, auth: true, admin: true, usage: shutdownUsage, run: e.shutdown},
		DepositMoney:            {argc: 1, auth: true, usage: depositUsage, run: e.depositMoney},
		ListOfferings:           {argc: 0, auth: true, usage: listOfferingsUsage, run: e.listOfferings},
		Buy:                     {argc: 2, auth: true, usage: buyUsage, run: e.buy},
		Sell:                    {argc: 1, auth: true, usage: sellUsage, run: e.sell},
		GetWalletSummary:        {argc: 0, auth: true, usage: walletSummaryUsage, run: e.walletSummary},
		GetWalletOverallSummary: {argc: 0, auth: true, usage: overallSummaryUsage, run: e.overallSummary},
		MakeAdmin:               {argc: 1, auth: true, admin: true, usage: makeAdminUsage, run: e.makeAdmin},
	}
	return e
}

// Execute runs one command for a connection and returns the reply text.
func (e *Executor) Execute(ctx context.Context, cmd Command, connID uint64) string {
	h, ok := e.handlers[cmd.Name]
	if !ok {
		return UnknownCommandMessage
	}
	if h.auth || h.admin {
		acc := e.sessions.Current(connID)
		if acc == nil {
			return notLoggedInMessage
		}
		if h.admin && !acc.Admin {
			return notAdminMessage
		}
	}
	if len(cmd.Args) != h.argc {
		return fmt.Sprintf(invalidArgsFormat, cmd.Name, h.argc, h.usage)
	}
	return h.run(ctx, connID, cmd.Args)
}

// DropConnection tears down any session the connection holds. The server loop
// calls this on disconnects and abrupt connection loss.
func (e *Executor) DropConnection(connID uint64) {
	e.sessions.Drop(connID)
}

// Accounts returns the directory snapshot order used for persistence.
func (e *Executor) Accounts() []*domain.Account {
	return e.dir.All()
}

func (e *Executor) help(_ context.Context, _ uint64, _ []string) string {
	sep := strings.Repeat("-", 104)
	lines := []string{
		"LIST OF COMMANDS:",
		sep,
		loginUsage,
		registerUsage,
		disconnectUsage,
		shutdownUsage,
		sep,
		"THE FOLLOWING COMMANDS REQUIRE YOU TO BE LOGGED IN:",
		sep,
		depositUsage,
		listOfferingsUsage,
		buyUsage,
		sellUsage,
		logoutUsage,
		walletSummaryUsage,
		overallSummaryUsage,
		makeAdminUsage,
	}
	return strings.Join(lines, "\n")
}

func (e *Executor) register(_ context.Context, connID uint64, args []string) string {
	if e.sessions.Current(connID) != nil {
		return alreadyLoggedInMessage
	}
	username, password := args[0], args[1]

	if msg := domain.CheckPasswordStrength(password); msg != "" {
		return msg
	}

	acc, err := domain.NewAccount(username, password)
	if err != nil {
		e.log.Error("password hashing failed", slog.Any("error", err))
		return failedRequestMessage
	}
	if err := e.dir.Register(acc); err != nil {
		return accountExistsMessage
	}
	e.persist()
	return registeredSuccessfully
}

func (e *Executor) login(_ context.Context, connID uint64, args []string) string {
	if e.sessions.Current(connID) != nil {
		return alreadyLoggedInMessage
	}
	_, err := e.sessions.Login(connID, args[0], args[1])
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return accountNotFoundMessage
	case errors.Is(err, domain.ErrAccountInUse):
		return accountInUseMessage
	case errors.Is(err, domain.ErrWrongPassword):
		return wrongPasswordMessage
	case err != nil:
		e.log.Error("login failed", slog.String("username", args[0]), slog.Any("error", err))
		return failedRequestMessage
	}
	return loggedInSuccessfully
}

func (e *Executor) logout(_ context.Context, connID uint64, _ []string) string {
	if err := e.sessions.Logout(connID); err != nil {
		return notLoggedInMessage
	}
	return loggedOutSuccessfully
}

func (e *Executor) disconnect(_ context.Context, connID uint64, _ []string) string {
	e.sessions.Drop(connID)
	return DisconnectedSuccessfully
}

func (e *Executor) shutdown(_ context.Context, _ uint64, _ []string) string {
	return ShuttingDownMessage
}

func (e *Executor) depositMoney(_ context.Context, connID uint64, args []string) string {
	acc := e.sessions.Current(connID)

	amount, err := decimal.NewFromString(args[0])
	if err != nil || !amount.IsPositive() {
		return invalidMoneyAmountMessage
	}
	if err := acc.Wallet.Deposit(amount); err != nil {
		return invalidMoneyAmountMessage
	}
	e.record(acc.Username, "DEPOSIT", "", amount, decimal.Zero, decimal.Zero)
	return depositedSuccessfully
}

func (e *Executor) listOfferings(ctx context.Context, _ uint64, _ []string) string {
	prices, err := e.prices.Prices(ctx)
	if err != nil {
		e.log.Error("price table request failed", slog.Any("error", err))
		return failedRequestMessage
	}

	assets := make([]string, 0, len(prices))
	for asset := range prices {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	var sb strings.Builder
	for i, asset := range assets {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%-6s %10s", asset, prices[asset].StringFixed(4)))
	}
	return sb.String()
}

func (e *Executor) buy(ctx context.Context, connID uint64, args []string) string {
	acc := e.sessions.Current(connID)
	asset := args[0]

	money, err := decimal.NewFromString(args[1])
	if err != nil || !money.IsPositive() {
		return invalidMoneyAmountMessage
	}

	prices, err := e.prices.Prices(ctx)
	if err != nil {
		e.log.Error("price table request failed", slog.Any("error", err))
		return failedRequestMessage
	}
	price, ok := prices[asset]
	if !ok {
		return assetDoesNotExistMessage
	}

	if err := acc.Wallet.Buy(asset, money, price); err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBalance):
			return insufficientBalanceMsg
		case errors.Is(err, domain.ErrUnknownAsset):
			return assetDoesNotExistMessage
		}
		return invalidMoneyAmountMessage
	}
	e.record(acc.Username, "BUY", asset, money, money.Div(price), price)
	return fmt.Sprintf(purchasedFormat, asset, money.String())
}

func (e *Executor) sell(ctx context.Context, connID uint64, args []string) string {
	acc := e.sessions.Current(connID)
	asset := args[0]

	prices, err := e.prices.Prices(ctx)
	if err != nil {
		e.log.Error("price table request failed", slog.Any("error", err))
		return failedRequestMessage
	}
	price, ok := prices[asset]
	if !ok {
		return assetDoesNotExistMessage
	}

	qty := acc.Wallet.Holdings[asset]
	proceeds, err := acc.Wallet.Sell(asset, price)
	if err != nil {
		return assetNotHeldMessage
	}
	e.record(acc.Username, "SELL", asset, proceeds, qty, price)
	return fmt.Sprintf(soldFormat, asset, proceeds.String())
}

func (e *Executor) walletSummary(_ context.Context, connID uint64, _ []string) string {
	return e.sessions.Current(connID).Wallet.Summary()
}

func (e *Executor) overallSummary(ctx context.Context, connID uint64, _ []string) string {
	acc := e.sessions.Current(connID)

	prices, err := e.prices.Prices(ctx)
	if err != nil {
		e.log.Error("price table request failed", slog.Any("error", err))
		return failedRequestMessage
	}
	total, unpriced := acc.Wallet.Winnings(prices)
	out := "Total winnings/losses: " + total.StringFixed(2)
	if len(unpriced) > 0 {
		out += "\nExcluded (no current price): " + strings.Join(unpriced, ", ")
	}
	return out
}

func (e *Executor) makeAdmin(_ context.Context, _ uint64, args []string) string {
	target, err := e.dir.Lookup(args[0])
	if err != nil {
		return accountNotFoundMessage
	}
	target.ToggleAdmin()
	e.persist()
	return fmt.Sprintf(adminToggledFormat, target.Username)
}

func (e *Executor) persist() {
	if e.saver != nil {
		e.saver.SaveAsync(e.dir.All())
	}
}

func (e *Executor) record(username, action, asset string, amount, qty, price decimal.Decimal) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(username, action, asset, amount, qty, price); err != nil {
		e.log.Warn("trade journal write failed",
			slog.String("username", username),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

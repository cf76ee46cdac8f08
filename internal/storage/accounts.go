// Package storage persists accounts to the semicolon-record store file and
// audits ledger mutations in a sqlite trade journal.
package storage

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"wallet_go/internal/domain"

	"github.com/shopspring/decimal"
)

const recordDelimiter = ";"

// AccountStore reads and writes the account file. Record layout, one account
// per line:
//
//	adminFlag;username;passwordDigest;balance(;asset;quantity;costBasis)*
//
// Snapshots are encoded by the caller's goroutine; only the finished bytes
// cross into the background writer, so the writer never touches live state.
type AccountStore struct {
	path string
	log  *slog.Logger

	saveCh    chan []byte
	once      sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAccountStore creates a store over the given file path.
func NewAccountStore(path string, log *slog.Logger) *AccountStore {
	if log == nil {
		log = slog.Default()
	}
	return &AccountStore{
		path:   path,
		log:    log,
		saveCh: make(chan []byte, 1),
	}
}

// Load reads every account record. A missing file yields an empty slice.
func (s *AccountStore) Load() ([]*domain.Account, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var accounts []*domain.Account
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		acc, err := decodeAccount(line)
		if err != nil {
			return nil, fmt.Errorf("corrupt account record: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Save encodes and writes the snapshot synchronously. Used at shutdown.
func (s *AccountStore) Save(accounts []*domain.Account) error {
	return s.write(Encode(accounts))
}

// SaveAsync encodes the snapshot on the calling goroutine and queues the
// bytes for the background writer. When a write is already pending, the
// newer snapshot replaces it.
func (s *AccountStore) SaveAsync(accounts []*domain.Account) {
	data := Encode(accounts)
	for {
		select {
		case s.saveCh <- data:
			return
		default:
			select {
			case <-s.saveCh: // discard the stale pending snapshot
			default:
			}
		}
	}
}

// Start launches the background writer. Close drains and stops it.
func (s *AccountStore) Start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for data := range s.saveCh {
				if err := s.write(data); err != nil {
					s.log.Error("account save failed", slog.Any("error", err))
				}
			}
		}()
	})
}

// Close stops the writer after flushing any pending snapshot. Safe to call
// more than once; a synchronous Save after Close still works.
func (s *AccountStore) Close() {
	s.closeOnce.Do(func() {
		close(s.saveCh)
		s.wg.Wait()
	})
}

func (s *AccountStore) write(data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0644)
}

// Encode renders accounts into the record format.
func Encode(accounts []*domain.Account) []byte {
	var sb strings.Builder
	for _, acc := range accounts {
		sb.WriteString(encodeAccount(acc))
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

func encodeAccount(acc *domain.Account) string {
	adminFlag := "0"
	if acc.Admin {
		adminFlag = "1"
	}
	fields := []string{adminFlag, acc.Username, acc.Digest, acc.Wallet.Balance.String()}
	for _, asset := range acc.Wallet.Assets() {
		fields = append(fields, asset,
			acc.Wallet.Holdings[asset].String(),
			acc.Wallet.CostBasis[asset].String())
	}
	return strings.Join(fields, recordDelimiter)
}

func decodeAccount(line string) (*domain.Account, error) {
	fields := strings.Split(line, recordDelimiter)
	if len(fields) < 4 {
		return nil, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}
	if (len(fields)-4)%3 != 0 {
		return nil, fmt.Errorf("dangling position fields in record for %q", fields[1])
	}

	balance, err := decimal.NewFromString(fields[3])
	if err != nil {
		return nil, fmt.Errorf("balance of %q: %w", fields[1], err)
	}

	wallet := domain.NewWallet()
	wallet.Balance = balance
	for i := 4; i < len(fields); i += 3 {
		asset := fields[i]
		qty, err := decimal.NewFromString(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("quantity of %q/%s: %w", fields[1], asset, err)
		}
		cost, err := decimal.NewFromString(fields[i+2])
		if err != nil {
			return nil, fmt.Errorf("cost basis of %q/%s: %w", fields[1], asset, err)
		}
		wallet.Holdings[asset] = qty
		wallet.CostBasis[asset] = cost
	}

	return &domain.Account{
		Username: fields[1],
		Digest:   fields[2],
		Admin:    fields[0] == "1",
		Wallet:   wallet,
	}, nil
}

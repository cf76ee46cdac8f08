package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries  = 10
	baseDelay   = 1 * time.Second
	maxDelay    = 60 * time.Second
	readTimeout = 60 * time.Second
)

// tickResponse is one price tick on the feed.
type tickResponse struct {
	AssetID  string  `json:"asset_id"`
	PriceUSD float64 `json:"price_usd"`
}

// Stream keeps a websocket connection to the provider's ticker feed and
// pushes fresh prices into the client's cached table. It reconnects with
// exponential backoff and never surfaces feed errors to callers; the REST
// cache remains the source of truth when the feed is down.
type Stream struct {
	url     string
	onPrice func(asset string, price decimal.Decimal)

	mu     sync.RWMutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a feed worker delivering ticks through onPrice.
func NewStream(url string, onPrice func(asset string, price decimal.Decimal)) *Stream {
	return &Stream{url: url, onPrice: onPrice}
}

// Connect starts the connection loop in the background. Feed failures are
// retried there and never surfaced; the REST cache covers the gaps.
func (s *Stream) Connect(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.connectionLoop(ctx)
}

func (s *Stream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			slog.Warn("price feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := backoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			s.readLoop(ctx)
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	slog.Info("price feed connected", slog.String("url", s.url))
	return nil
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.closeConnection()
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Stream) handleMessage(msg []byte) {
	var tick tickResponse
	if json.Unmarshal(msg, &tick) != nil || tick.AssetID == "" || tick.PriceUSD <= 0 {
		return
	}
	s.onPrice(tick.AssetID, decimal.NewFromFloat(tick.PriceUSD))
}

func (s *Stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Disconnect stops the feed and waits for the worker to exit.
func (s *Stream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
}

func backoff(retry int) time.Duration {
	delay := baseDelay << uint(retry)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

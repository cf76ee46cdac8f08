// Package server implements the connection multiplexer: per-connection
// readers feed a single dispatch goroutine that owns every account, session
// and wallet mutation. This is the only place protocol bytes touch the wire;
// authentication and ledger logic live behind the command executor.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"wallet_go/internal/command"
	"wallet_go/internal/storage"
)

// event is the closed set of inputs the dispatch loop consumes.
type event interface{ isEvent() }

type acceptEvent struct{ conn net.Conn }

type lineEvent struct {
	c    *client
	text string
}

type closeEvent struct{ c *client }

func (acceptEvent) isEvent() {}
func (lineEvent) isEvent()   {}
func (closeEvent) isEvent()  {}

type client struct {
	id   uint64
	conn net.Conn
}

// Server is the TCP reactor. All state behind the executor is mutated
// exclusively on the Run goroutine; readers only move bytes into the inbox.
type Server struct {
	log        *slog.Logger
	exec       *command.Executor
	store      *storage.AccountStore
	bufferSize int
	savePeriod time.Duration

	listener net.Listener
	inbox    chan event
	done     chan struct{}
	conns    map[uint64]*client
	nextID   uint64
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New binds the listener. A bind failure is fatal to startup and is the only
// error surfaced here.
func New(listenAddr string, bufferSize, savePeriodSec int, log *slog.Logger,
	exec *command.Executor, store *storage.AccountStore) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		log:        log,
		exec:       exec,
		store:      store,
		bufferSize: bufferSize,
		savePeriod: time.Duration(savePeriodSec) * time.Second,
		listener:   listener,
		inbox:      make(chan event, 128),
		done:       make(chan struct{}),
		conns:      make(map[uint64]*client),
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run drives the dispatch loop until an admin shutdown or context cancel.
// It must be the only goroutine that touches s.conns or executor state.
func (s *Server) Run(ctx context.Context) {
	s.wg.Add(1)
	go s.acceptLoop()

	ticker := time.NewTicker(s.savePeriod)
	defer ticker.Stop()

	s.log.Info("wallet server listening", slog.String("addr", s.listener.Addr().String()))

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-ticker.C:
			// Snapshot is encoded here, on the dispatch goroutine; only the
			// finished bytes reach the store's writer.
			s.store.SaveAsync(s.exec.Accounts())
		case ev := <-s.inbox:
			if s.handleEvent(ctx, ev) {
				s.shutdown()
				return
			}
		}
	}
}

// handleEvent processes one event and reports whether shutdown was requested.
func (s *Server) handleEvent(ctx context.Context, ev event) bool {
	switch ev := ev.(type) {
	case acceptEvent:
		s.nextID++
		c := &client{id: s.nextID, conn: ev.conn}
		s.conns[c.id] = c
		s.wg.Add(1)
		go s.readLoop(c)
		s.log.Debug("client connected", slog.Uint64("conn", c.id))

	case closeEvent:
		s.dropClient(ev.c)

	case lineEvent:
		if _, live := s.conns[ev.c.id]; !live {
			return false // event raced with an earlier drop
		}
		if ev.text == command.Disconnect {
			s.reply(ev.c, command.DisconnectedSuccessfully)
			s.dropClient(ev.c)
			return false
		}
		out := s.exec.Execute(ctx, command.Parse(ev.text), ev.c.id)
		s.reply(ev.c, out)
		return out == command.ShuttingDownMessage
	}
	return false
}

// readLoop moves one protocol message per Read into the inbox. Zero bytes or
// any transport error become a close event; the loop itself never dies from
// a bad peer.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	buf := make([]byte, s.bufferSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil || n == 0 {
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn("client disconnected forcefully",
					slog.Uint64("conn", c.id), slog.Any("error", err))
			}
			select {
			case s.inbox <- closeEvent{c: c}:
			case <-s.done:
			}
			return
		}
		text := strings.TrimRight(string(buf[:n]), "\r\n")
		select {
		case s.inbox <- lineEvent{c: c, text: text}:
		case <-s.done:
			return
		}
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed during shutdown
		}
		select {
		case s.inbox <- acceptEvent{conn: conn}:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

func (s *Server) reply(c *client, text string) {
	if _, err := c.conn.Write([]byte(text)); err != nil {
		s.log.Warn("reply write failed", slog.Uint64("conn", c.id), slog.Any("error", err))
		s.dropClient(c)
	}
}

// dropClient tears down the session and the connection. Safe to call twice.
func (s *Server) dropClient(c *client) {
	if _, live := s.conns[c.id]; !live {
		return
	}
	s.exec.DropConnection(c.id)
	c.conn.Close()
	delete(s.conns, c.id)
	s.log.Debug("client disconnected", slog.Uint64("conn", c.id))
}

// shutdown closes every connection, stops the accept loop and persists a
// final synchronous snapshot.
func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		for _, c := range s.conns {
			s.exec.DropConnection(c.id)
			c.conn.Close()
		}
		s.conns = make(map[uint64]*client)
		s.listener.Close()

		// Drain the background writer first so a stale queued snapshot cannot
		// land on disk after the final one.
		s.store.Close()
		if err := s.store.Save(s.exec.Accounts()); err != nil {
			s.log.Error("final account save failed", slog.Any("error", err))
		}
		s.wg.Wait()
		s.log.Info("server was shut down")
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/samber/oops"

	"github.com/emberveil/emberveil/internal/auth"
	"github.com/emberveil/emberveil/internal/game"
	"github.com/emberveil/emberveil/internal/observability"
	"github.com/emberveil/emberveil/internal/wire"
	"github.com/emberveil/emberveil/pkg/errutil"
)

// Loop timing defaults. The read deadline doubles as the housekeeping
// tick: every time the read times out (or a datagram arrives) the loop
// checks whether a sweep or flush is due.
const (
	DefaultReadTimeout   = 100 * time.Millisecond
	DefaultSweepInterval = time.Minute
	DefaultFlushInterval = 10 * time.Second
	DefaultSaveThreshold = 5 * time.Minute
)

// Config holds the world server's loop parameters.
type Config struct {
	Addr          string        // UDP listen address
	ReadTimeout   time.Duration // socket read deadline per loop pass
	SweepInterval time.Duration // expired-session sweep cadence
	FlushInterval time.Duration // dirty-position flush check cadence
	SaveThreshold time.Duration // minimum age before a dirty position persists
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.SaveThreshold <= 0 {
		c.SaveThreshold = DefaultSaveThreshold
	}
}

// Server is the authoritative UDP world server. All datagrams are
// handled on the loop goroutine; the registry and session table are
// still locked because observability reads them concurrently.
type Server struct {
	cfg        Config
	conn       *net.UDPConn
	dispatcher *Dispatcher
	registry   *Registry
	auth       *auth.Service
	chars      *game.CharacterService
	metrics    *observability.Metrics
	logger     *slog.Logger

	lastSweep time.Time
	lastFlush time.Time
}

// New creates a Server. metrics may be nil.
func New(cfg Config, dispatcher *Dispatcher, registry *Registry, authSvc *auth.Service, chars *game.CharacterService, metrics *observability.Metrics, logger *slog.Logger) *Server {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   registry,
		auth:       authSvc,
		chars:      chars,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run binds the UDP socket and serves until ctx is cancelled. On the way
// out every dirty position is flushed regardless of age.
func (s *Server) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return oops.Code("SERVER_BAD_ADDR").With("addr", s.cfg.Addr).Wrap(err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return oops.Code("SERVER_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.conn = conn
	defer conn.Close() //nolint:errcheck // socket teardown at exit

	s.logger.Info("world server listening", "addr", conn.LocalAddr().String())

	now := time.Now()
	s.lastSweep = now
	s.lastFlush = now

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return oops.Code("SERVER_DEADLINE_FAILED").Wrap(err)
		}

		n, remote, err := conn.ReadFromUDP(buf)
		switch {
		case err == nil:
			s.serveDatagram(ctx, remote, buf[:n])
		case isTimeout(err):
			// Idle pass; fall through to housekeeping.
		case errors.Is(err, net.ErrClosed):
			s.shutdown()
			return nil
		default:
			// Transient read errors (e.g. ICMP port unreachable bounced
			// back on connected sockets) should not kill the loop.
			s.logger.Warn("udp read failed", "error", err)
		}

		s.housekeep(ctx, time.Now())
	}
}

// Addr returns the bound address, or "" before Run.
func (s *Server) Addr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.LocalAddr().String()
}

func (s *Server) serveDatagram(ctx context.Context, remote *net.UDPAddr, data []byte) {
	for _, response := range s.dispatcher.Handle(ctx, remote.String(), data) {
		if _, err := s.conn.WriteToUDP(response, remote); err != nil {
			s.logger.Warn("udp write failed", "addr", remote.String(), "error", err)
		}
	}
}

// housekeep runs the periodic sweep and flush when their intervals have
// elapsed. Called on every loop pass; cheap when nothing is due.
func (s *Server) housekeep(ctx context.Context, now time.Time) {
	if now.Sub(s.lastSweep) >= s.cfg.SweepInterval {
		s.lastSweep = now
		if swept := s.auth.Sessions().SweepExpired(); swept > 0 {
			s.logger.Info("expired sessions swept", "count", swept)
		}
		if s.metrics != nil {
			s.metrics.SessionsActive.Set(float64(s.auth.Sessions().ActiveCount()))
		}
	}

	if now.Sub(s.lastFlush) >= s.cfg.FlushInterval {
		s.lastFlush = now
		s.flush(ctx, s.registry.CollectDirty(now, s.cfg.SaveThreshold))
	}
}

// flush persists a collected batch, restoring dirty flags on failure so
// the next cycle retries.
func (s *Server) flush(ctx context.Context, saves []game.PositionSave) {
	if len(saves) == 0 {
		return
	}

	if err := s.chars.SavePositions(ctx, saves); err != nil {
		ids := make([]int64, len(saves))
		for i, save := range saves {
			ids[i] = save.CharacterID
		}
		s.registry.MarkDirty(ids)
		errutil.LogError(s.logger, "position flush failed", err)
		return
	}

	if s.metrics != nil {
		s.metrics.PositionSavesTotal.Add(float64(len(saves)))
	}
	s.logger.Debug("positions flushed", "count", len(saves))
}

// shutdown flushes every dirty position with a fresh context; the loop
// context is already cancelled when we get here.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saves := s.registry.CollectAll(time.Now())
	s.flush(ctx, saves)
	s.logger.Info("world server stopped", "final_saves", len(saves))
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

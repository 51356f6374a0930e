// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/emberveil/emberveil/internal/game"
	"github.com/emberveil/emberveil/internal/wire"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *dispatchFixture) {
	t.Helper()

	f := newDispatchFixture(t)
	authSvc := f.dispatcher.auth
	charSvc := f.dispatcher.chars
	cfg.Addr = "127.0.0.1:0"
	return New(cfg, f.dispatcher, f.registry, authSvc, charSvc, nil, nil), f
}

// waitAddr polls until the server has bound its socket.
func waitAddr(t *testing.T, s *Server) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if addr := s.Addr(); addr != "" {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not bind in time")
	return ""
}

func roundTrip(t *testing.T, conn *net.UDPConn, msgType wire.Type, payload any) wire.Envelope {
	t.Helper()

	data, err := wire.Encode(msgType, payload)
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, wire.MaxDatagramSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	env, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	return env
}

func TestServer_ServesDatagrams(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := newTestServer(t, Config{ReadTimeout: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr := waitAddr(t, srv)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, udpAddr)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck // test socket

	reply := roundTrip(t, conn, wire.TypeRegister, wire.Register{
		Username: "alice",
		Password: "hunter2secret",
	})
	assert.Equal(t, wire.TypeRegisterSuccess, reply.Type)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServer_ShutdownFlushesDirtyPositions(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Long intervals so only the shutdown path can flush.
	srv, f := newTestServer(t, Config{
		ReadTimeout:   20 * time.Millisecond,
		SweepInterval: time.Hour,
		FlushInterval: time.Hour,
		SaveThreshold: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	addr := waitAddr(t, srv)
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, udpAddr)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck // test socket

	reply := roundTrip(t, conn, wire.TypeRegister, wire.Register{Username: "alice", Password: "hunter2secret"})
	require.Equal(t, wire.TypeRegisterSuccess, reply.Type)

	reply = roundTrip(t, conn, wire.TypeLogin, wire.Login{Username: "alice", Password: "hunter2secret"})
	require.Equal(t, wire.TypeLoginSuccess, reply.Type)
	var login wire.LoginSuccess
	require.NoError(t, reply.Payload(&login))

	reply = roundTrip(t, conn, wire.TypeCreateCharacter, wire.CreateCharacter{
		Token:     login.Token,
		Character: wire.NewCharacter{Name: "Brannor", Class: "warrior"},
	})
	require.Equal(t, wire.TypeCreateCharacterSuccess, reply.Type)
	var created wire.CreateCharacterSuccess
	require.NoError(t, reply.Payload(&created))

	reply = roundTrip(t, conn, wire.TypeSelectCharacter, wire.SelectCharacter{
		Token:       login.Token,
		CharacterID: created.CharacterID,
	})
	require.Equal(t, wire.TypeSelectCharacterSuccess, reply.Type)

	// Position update has no reply; give the loop a moment to apply it.
	data, err := wire.Encode(wire.TypeUpdatePosition, wire.UpdatePosition{
		Position: wire.Vector3{X: 42, Y: 1, Z: 8},
	})
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		p, ok := f.registry.Get(conn.LocalAddr().String())
		return ok && p.Dirty
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}

	stored, err := f.characters.Get(context.Background(), created.CharacterID)
	require.NoError(t, err)
	assert.Equal(t, game.Position{X: 42, Y: 1, Z: 8}, stored.Position)
}

package probes

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenOnce(t *testing.T, respond func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		respond(conn)
	}()
	return ln.Addr().String()
}

func TestTCPProbeSucceedsOnConnect(t *testing.T) {
	addr := listenOnce(t, func(conn net.Conn) {})
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	exec := NewZoneExecutor(nil)
	result := exec.Execute(context.Background(), "zone0", host, Config{
		TimeoutSeconds: 1,
		Action:         Action{TCPSocket: &TCPSocketAction{Host: host, Port: mustAtoi(portStr)}},
	})
	assert.True(t, result.Success)
}

func TestHTTPProbeParsesStatusLine(t *testing.T) {
	addr := listenOnce(t, func(conn net.Conn) {
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
	})
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	exec := NewZoneExecutor(nil)
	result := exec.Execute(context.Background(), "zone0", host, Config{
		TimeoutSeconds: 1,
		Action: Action{HTTPGet: &HTTPGetAction{
			Path: "/healthz", Host: host, Port: mustAtoi(portStr),
		}},
	})
	assert.True(t, result.Success)
}

func TestHTTPProbeFailsOn500(t *testing.T) {
	addr := listenOnce(t, func(conn net.Conn) {
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte("HTTP/1.1 500 Internal Server Error\r\n\r\n"))
	})
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	exec := NewZoneExecutor(nil)
	result := exec.Execute(context.Background(), "zone0", host, Config{
		TimeoutSeconds: 1,
		Action: Action{HTTPGet: &HTTPGetAction{
			Path: "/healthz", Host: host, Port: mustAtoi(portStr),
		}},
	})
	assert.False(t, result.Success)
}

func mustAtoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

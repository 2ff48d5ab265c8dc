package probes

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/CloudNebulaProject/reddwarf/pkg/zoneruntime"
)

// ZoneExecutor executes probes against a real (or mock) ZoneRuntime.
type ZoneExecutor struct {
	Runtime zoneruntime.ZoneRuntime
	// Dialer defaults to net.Dialer{}.DialContext; overridable in tests.
	Dialer func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewZoneExecutor(rt zoneruntime.ZoneRuntime) *ZoneExecutor {
	return &ZoneExecutor{Runtime: rt, Dialer: (&net.Dialer{}).DialContext}
}

func (e *ZoneExecutor) Execute(ctx context.Context, zoneName string, zoneIP string, cfg Config) Result {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case cfg.Action.Exec != nil:
		return e.execProbe(ctx, zoneName, cfg.Action.Exec, timeout)
	case cfg.Action.TCPSocket != nil:
		return e.tcpProbe(ctx, resolveHost(cfg.Action.TCPSocket.Host, zoneIP), cfg.Action.TCPSocket.Port, timeout)
	case cfg.Action.HTTPGet != nil:
		return e.httpProbe(ctx, cfg.Action.HTTPGet, zoneIP, timeout)
	default:
		return Result{Success: false, Message: "probe has no action configured"}
	}
}

func resolveHost(host, zoneIP string) string {
	if host == "" || host == "localhost" {
		return zoneIP
	}
	return host
}

func (e *ZoneExecutor) execProbe(ctx context.Context, zoneName string, argv []string, timeout time.Duration) Result {
	res, err := e.Runtime.ExecInZone(ctx, zoneName, argv)
	if ctx.Err() != nil {
		return timedOutResult(timeout)
	}
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	if res.ExitCode != 0 {
		return Result{Success: false, Message: fmt.Sprintf("exec exited %d", res.ExitCode)}
	}
	return Result{Success: true}
}

func (e *ZoneExecutor) tcpProbe(ctx context.Context, host string, port int, timeout time.Duration) Result {
	conn, err := e.Dialer(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if ctx.Err() != nil {
		return timedOutResult(timeout)
	}
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	_ = conn.Close()
	return Result{Success: true}
}

// httpProbe dials, writes a bare HTTP/1.1 GET, and reads the status
// line. HTTPS degrades to a plain TCP check with a warning, since this
// layer carries no TLS client.
func (e *ZoneExecutor) httpProbe(ctx context.Context, action *HTTPGetAction, zoneIP string, timeout time.Duration) Result {
	host := resolveHost(action.Host, zoneIP)
	if action.Scheme == "HTTPS" || action.Scheme == "https" {
		res := e.tcpProbe(ctx, host, action.Port, timeout)
		if res.Success {
			res.Message = "warning: https probe degraded to a TCP check"
		}
		return res
	}

	conn, err := e.Dialer(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(action.Port)))
	if ctx.Err() != nil {
		return timedOutResult(timeout)
	}
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	defer conn.Close()

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s:%d\r\nConnection: close\r\n\r\n", action.Path, host, action.Port)
	if _, err := conn.Write([]byte(req)); err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if ctx.Err() != nil {
		return timedOutResult(timeout)
	}
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	status, ok := parseStatusLine(statusLine)
	if !ok {
		return Result{Success: false, Message: "malformed HTTP status line: " + strings.TrimSpace(statusLine)}
	}
	if status < 200 || status >= 300 {
		return Result{Success: false, Message: fmt.Sprintf("HTTP status %d", status)}
	}
	return Result{Success: true}
}

func parseStatusLine(line string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(parts) < 2 {
		return 0, false
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return status, true
}

var _ Executor = (*ZoneExecutor)(nil)

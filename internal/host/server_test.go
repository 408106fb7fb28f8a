package host

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lydakis/blenderbridge/internal/wire"
)

func startServer(t *testing.T, registry *Registry, exec *Executor) *Server {
	t.Helper()

	srv := NewServer("127.0.0.1:0", registry, exec)
	srv.Log = discardLogger()
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

// hostConn is a raw framed-protocol client for exercising the server.
type hostConn struct {
	net.Conn
	dec wire.Decoder
}

func dialHost(t *testing.T, addr string) *hostConn {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &hostConn{Conn: conn}
}

func (c *hostConn) send(t *testing.T, name string, params map[string]any) {
	t.Helper()

	frame, err := wire.EncodeCommand(&wire.Command{Type: name, Params: params})
	if err != nil {
		t.Fatalf("encoding command: %v", err)
	}
	if _, err := c.Write(frame); err != nil {
		t.Fatalf("writing command: %v", err)
	}
}

func (c *hostConn) recv(t *testing.T) *wire.Response {
	t.Helper()

	buf := make([]byte, 4096)
	for {
		if payload, err := c.dec.Next(); err == nil {
			resp, err := wire.ParseResponse(payload)
			if err != nil {
				t.Fatalf("parsing response: %v", err)
			}
			return resp
		}
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := c.Read(buf)
		if err != nil {
			t.Fatalf("reading response: %v", err)
		}
		c.dec.Feed(buf[:n])
	}
}

func (c *hostConn) tryRecv(timeout time.Duration) (*wire.Response, bool) {
	buf := make([]byte, 4096)
	deadline := time.Now().Add(timeout)
	for {
		if payload, err := c.dec.Next(); err == nil {
			resp, err := wire.ParseResponse(payload)
			if err != nil {
				return nil, false
			}
			return resp, true
		}
		c.SetReadDeadline(deadline)
		n, err := c.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
		}
		if err != nil {
			return nil, false
		}
	}
}

func TestServerRefusesNonLoopback(t *testing.T) {
	for _, addr := range []string{"0.0.0.0:0", ":9876", "192.168.1.10:9876"} {
		srv := NewServer(addr, NewRegistry(), nil)
		srv.Log = discardLogger()
		if err := srv.Start(); err == nil {
			srv.Stop()
			t.Fatalf("Start(%s) succeeded, want refusal", addr)
		}
	}
}

func TestServerDispatchInlineHandler(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name: "echo",
		Handler: func(params map[string]any) (any, error) {
			return map[string]any{"got": params["value"]}, nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	conn.send(t, "echo", map[string]any{"value": "hello"})
	resp := conn.recv(t)

	if resp.IsError() {
		t.Fatalf("response is an error: %s", resp.Message)
	}
	var result struct {
		Got string `json:"got"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshaling result: %v", err)
	}
	if result.Got != "hello" {
		t.Fatalf("result = %q, want %q", result.Got, "hello")
	}
}

func TestServerUnknownCommand(t *testing.T) {
	var invoked atomic.Int32
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name: "real_command",
		Handler: func(params map[string]any) (any, error) {
			invoked.Add(1)
			return "ok", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	conn.send(t, "bogus", nil)
	resp := conn.recv(t)

	if !resp.IsError() {
		t.Fatal("unknown command got a success response")
	}
	if resp.Kind != wire.KindCommand {
		t.Fatalf("kind = %q, want %q", resp.Kind, wire.KindCommand)
	}
	if resp.Message != "Unknown command type: bogus" {
		t.Fatalf("message = %q", resp.Message)
	}
	if invoked.Load() != 0 {
		t.Fatal("a handler ran for an unknown command")
	}

	// The connection survives the rejection.
	conn.send(t, "real_command", nil)
	if resp := conn.recv(t); resp.IsError() {
		t.Fatalf("follow-up command failed: %s", resp.Message)
	}
}

func TestServerMainThreadHandlerWaitsForDrain(t *testing.T) {
	var ran atomic.Int32
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name:               "mutate_scene",
		RequiresMainThread: true,
		Handler: func(params map[string]any) (any, error) {
			ran.Add(1)
			return "mutated", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	exec := NewExecutor(8, discardLogger())
	defer exec.Stop()
	srv := startServer(t, registry, exec)
	conn := dialHost(t, srv.Addr())

	conn.send(t, "mutate_scene", nil)

	if _, ok := conn.tryRecv(100 * time.Millisecond); ok {
		t.Fatal("response arrived before any drain")
	}
	if ran.Load() != 0 {
		t.Fatal("handler ran before any drain")
	}

	exec.Drain()

	resp := conn.recv(t)
	if resp.IsError() {
		t.Fatalf("response is an error: %s", resp.Message)
	}
	if ran.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", ran.Load())
	}
}

func TestServerHandlerErrorBecomesFailure(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name: "failing",
		Handler: func(params map[string]any) (any, error) {
			return nil, fmt.Errorf("object not found: Cube")
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	conn.send(t, "failing", nil)
	resp := conn.recv(t)

	if !resp.IsError() {
		t.Fatal("failing handler got a success response")
	}
	if resp.Kind != wire.KindCommand {
		t.Fatalf("kind = %q, want %q", resp.Kind, wire.KindCommand)
	}
	if resp.Message != "object not found: Cube" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestServerHandlerPanicIsContained(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name: "explode",
		Handler: func(params map[string]any) (any, error) {
			panic("boom")
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(Registration{
		Name:    "healthy",
		Handler: func(params map[string]any) (any, error) { return "ok", nil },
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	conn.send(t, "explode", nil)
	resp := conn.recv(t)
	if !resp.IsError() {
		t.Fatal("panicking handler got a success response")
	}
	if !strings.Contains(resp.Message, "boom") {
		t.Fatalf("message = %q, want the panic value in it", resp.Message)
	}

	conn.send(t, "healthy", nil)
	if resp := conn.recv(t); resp.IsError() {
		t.Fatalf("server unusable after a panic: %s", resp.Message)
	}
}

func TestServerDeregisteredBeforeDrain(t *testing.T) {
	var ran atomic.Int32
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name:               "optional_feature",
		RequiresMainThread: true,
		Handler: func(params map[string]any) (any, error) {
			ran.Add(1)
			return "ok", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	exec := NewExecutor(8, discardLogger())
	defer exec.Stop()
	srv := startServer(t, registry, exec)
	conn := dialHost(t, srv.Addr())

	conn.send(t, "optional_feature", nil)
	// Give the connection goroutine time to queue the task.
	time.Sleep(100 * time.Millisecond)

	registry.Deregister("optional_feature")
	exec.Drain()

	resp := conn.recv(t)
	if !resp.IsError() {
		t.Fatal("handler ran after its integration was disabled")
	}
	if resp.Message != "Unknown command type: optional_feature" {
		t.Fatalf("message = %q", resp.Message)
	}
	if ran.Load() != 0 {
		t.Fatal("deregistered handler still ran")
	}
}

func TestServerResponsesStayInCommandOrder(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name: "seq",
		Handler: func(params map[string]any) (any, error) {
			return params["n"], nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	// Two commands on the wire before reading anything back.
	conn.send(t, "seq", map[string]any{"n": 1})
	conn.send(t, "seq", map[string]any{"n": 2})

	for want := 1; want <= 2; want++ {
		resp := conn.recv(t)
		if resp.IsError() {
			t.Fatalf("response %d is an error: %s", want, resp.Message)
		}
		var n int
		if err := json.Unmarshal(resp.Result, &n); err != nil {
			t.Fatalf("unmarshaling result: %v", err)
		}
		if n != want {
			t.Fatalf("response order: got %d, want %d", n, want)
		}
	}
}

func TestServerQueueFull(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name:               "slow",
		RequiresMainThread: true,
		Handler:            func(params map[string]any) (any, error) { return "ok", nil },
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	exec := NewExecutor(1, discardLogger())
	defer exec.Stop()
	srv := startServer(t, registry, exec)

	first := dialHost(t, srv.Addr())
	second := dialHost(t, srv.Addr())

	// No drain is running, so the first command parks in the only queue
	// slot and the second is refused immediately.
	first.send(t, "slow", nil)
	time.Sleep(100 * time.Millisecond)

	second.send(t, "slow", nil)
	resp := second.recv(t)
	if !resp.IsError() {
		t.Fatal("second command succeeded with a full queue")
	}
	if !strings.Contains(resp.Message, "queue full") {
		t.Fatalf("message = %q, want a queue full notice", resp.Message)
	}

	exec.Drain()
	if resp := first.recv(t); resp.IsError() {
		t.Fatalf("first command failed: %s", resp.Message)
	}
}

func TestServerInvalidPayloadKeepsConnection(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name:    "ok",
		Handler: func(params map[string]any) (any, error) { return "ok", nil },
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	srv := startServer(t, registry, NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	frame, err := wire.EncodeFrame([]byte("this is not json"))
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	resp := conn.recv(t)
	if !resp.IsError() {
		t.Fatal("garbage payload got a success response")
	}
	if resp.Kind != wire.KindCommand {
		t.Fatalf("kind = %q, want %q", resp.Kind, wire.KindCommand)
	}

	// The frame boundary held, so the stream is still usable.
	conn.send(t, "ok", nil)
	if resp := conn.recv(t); resp.IsError() {
		t.Fatalf("connection unusable after bad payload: %s", resp.Message)
	}
}

func TestServerClosesOnMalformedHeader(t *testing.T) {
	srv := startServer(t, NewRegistry(), NewExecutor(8, discardLogger()))
	conn := dialHost(t, srv.Addr())

	if _, err := conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatalf("writing header: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("connection stayed open after unsynchronizable stream")
	}
}

func TestServerStartIsIdempotent(t *testing.T) {
	srv := startServer(t, NewRegistry(), NewExecutor(8, discardLogger()))

	addr := srv.Addr()
	if err := srv.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if srv.Addr() != addr {
		t.Fatalf("Addr() changed across Start calls: %s != %s", srv.Addr(), addr)
	}
}

func TestServerStopClosesActiveConnections(t *testing.T) {
	exec := NewExecutor(8, discardLogger())
	defer exec.Stop()
	srv := startServer(t, NewRegistry(), exec)
	conn := dialHost(t, srv.Addr())

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a connected client")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("connection stayed open after Stop")
	}
}

func TestServerExecutorStopAnswersPendingDispatch(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Registration{
		Name:               "mutate_scene",
		RequiresMainThread: true,
		Handler: func(params map[string]any) (any, error) {
			return "never", nil
		},
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	exec := NewExecutor(8, discardLogger())
	srv := startServer(t, registry, exec)
	conn := dialHost(t, srv.Addr())

	// Nothing drains the queue. Stopping the executor must still get
	// the waiting client an answer instead of leaving it hanging.
	conn.send(t, "mutate_scene", nil)
	exec.Stop()

	resp := conn.recv(t)
	if !resp.IsError() {
		t.Fatal("pending dispatch got a success response")
	}
	if resp.Kind != wire.KindConnection {
		t.Fatalf("kind = %q, want %q", resp.Kind, wire.KindConnection)
	}
	if resp.Message != "host shutting down" {
		t.Fatalf("message = %q", resp.Message)
	}
}

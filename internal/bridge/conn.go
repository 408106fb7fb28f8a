// Package bridge implements the client side of the command bridge: the
// connection manager owning the socket to the host, and the façade used
// by tool implementations.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lydakis/blenderbridge/internal/wire"
)

// Defaults matching the original product: the host answers within 15
// seconds or the caller gives up.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 9876
	DefaultDialTimeout = 5 * time.Second
	DefaultCallTimeout = 15 * time.Second

	readChunkSize    = 8192
	lateDrainTimeout = 50 * time.Millisecond
)

var dialContextFn = func(ctx context.Context, timeout time.Duration, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Conn owns one socket to one host instance. All exchanges are serialized:
// at most one command is in flight at a time, and concurrent callers queue
// on the internal mutex.
type Conn struct {
	DialTimeout time.Duration
	CallTimeout time.Duration
	Log         *slog.Logger

	host string
	port int

	mu      sync.Mutex
	sock    net.Conn
	dec     wire.Decoder
	suspect bool
}

// NewConn creates a connection manager for the host at host:port. The
// socket is not opened until Connect or the first Call.
func NewConn(host string, port int) *Conn {
	return &Conn{
		DialTimeout: DefaultDialTimeout,
		CallTimeout: DefaultCallTimeout,
		host:        host,
		port:        port,
	}
}

// Addr returns the host address this connection targets.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
}

func (c *Conn) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// Connect opens the socket. Calling it while already connected is a no-op.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock != nil && !c.suspect {
		return nil
	}
	if c.suspect {
		c.repairLocked()
	}
	return c.connectLocked(ctx)
}

func (c *Conn) connectLocked(ctx context.Context) error {
	sock, err := dialContextFn(ctx, c.DialTimeout, c.Addr())
	if err != nil {
		return &ConnectionError{Op: "dial", Err: err}
	}
	c.sock = sock
	c.dec.Reset()
	c.suspect = false
	c.logger().Info("connected to host", "addr", c.Addr())
	return nil
}

// Close releases the socket. Safe to call on a closed or never-connected
// Conn, and safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.sock == nil {
		c.suspect = false
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	c.dec.Reset()
	c.suspect = false
	return err
}

// invalidateLocked drops the socket after a transport failure so the next
// Call redials.
func (c *Conn) invalidateLocked() {
	if c.sock != nil {
		c.sock.Close()
		c.sock = nil
	}
	c.dec.Reset()
	c.suspect = false
}

// repairLocked tears down a suspect connection before reuse. A response
// that arrived after its caller timed out is drained and logged here so it
// can never be attributed to the next command.
func (c *Conn) repairLocked() {
	if c.sock == nil {
		c.suspect = false
		return
	}

	c.sock.SetReadDeadline(time.Now().Add(lateDrainTimeout))
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
			if payload, derr := c.dec.Next(); derr == nil {
				c.logger().Warn("discarding late response from host", "bytes", len(payload))
				break
			}
		}
		if err != nil {
			break
		}
	}
	c.closeLocked()
}

// Call sends one command and blocks until its response, the deadline, or a
// transport failure. The deadline is the smaller of CallTimeout and the
// context deadline.
func (c *Conn) Call(ctx context.Context, name string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspect {
		c.repairLocked()
	}
	if c.sock == nil {
		if err := c.connectLocked(ctx); err != nil {
			return nil, err
		}
	}

	frame, err := wire.EncodeCommand(&wire.Command{Type: name, Params: params})
	if err != nil {
		return nil, &CommandError{Command: name, Message: fmt.Sprintf("encoding command: %v", err)}
	}

	timeout := c.CallTimeout
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(ctxDeadline); remaining < timeout {
			timeout = remaining
		}
	}
	deadline := time.Now().Add(timeout)

	c.sock.SetWriteDeadline(deadline)
	if _, err := c.sock.Write(frame); err != nil {
		c.invalidateLocked()
		return nil, &ConnectionError{Op: "write", Err: err}
	}

	payload, err := c.readResponseLocked(name, deadline, timeout)
	if err != nil {
		return nil, err
	}

	resp, err := wire.ParseResponse(payload)
	if err != nil {
		c.invalidateLocked()
		return nil, &ResponseError{Err: err}
	}
	if resp.IsError() {
		return nil, errorFromResponse(name, resp)
	}
	return resp.Result, nil
}

func (c *Conn) readResponseLocked(name string, deadline time.Time, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, readChunkSize)
	for {
		payload, err := c.dec.Next()
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, wire.ErrNeedMoreData) {
			// Malformed length header; the stream cannot be resynchronized.
			c.invalidateLocked()
			return nil, &ResponseError{Err: err}
		}

		c.sock.SetReadDeadline(deadline)
		n, err := c.sock.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
		}
		if err != nil {
			if isTimeout(err) {
				c.suspect = true
				c.logger().Warn("command timed out, connection marked suspect", "command", name)
				return nil, &TimeoutError{Command: name, Timeout: timeout}
			}
			c.invalidateLocked()
			return nil, &ConnectionError{Op: "read", Err: err}
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

package host

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/lydakis/blenderbridge/internal/wire"
)

// DefaultListen is the endpoint clients expect a host on.
const DefaultListen = "127.0.0.1:9876"

const readChunkSize = 8192

// Server accepts bridge connections and dispatches their commands
// against a registry. Each connection is served by one goroutine that
// reads, dispatches, and writes strictly in order, so responses always
// arrive in the order the commands came in.
type Server struct {
	Log *slog.Logger

	addr     string
	registry *Registry
	exec     *Executor

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server for the given loopback listen address.
func NewServer(addr string, registry *Registry, exec *Executor) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		exec:     exec,
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Start begins listening. Calling it while already listening is a
// no-op. Non-loopback addresses are refused: the bridge carries an
// unauthenticated code execution surface and must never leave the
// machine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	if err := checkLoopback(s.addr); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger().Info("listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

// Addr returns the actual listen address, useful when the configured
// port was 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every open connection, then waits for
// the connection goroutines. The executor is owned by the embedder and
// is not stopped here; embedders must stop it first so dispatches
// blocked on a drain can unblock.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.wg.Wait()
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("refusing to listen on non-loopback address %q", addr)
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed
		}

		s.mu.Lock()
		if s.listener != ln {
			// Stop ran between Accept and here; it will not see this
			// connection, so close it ourselves.
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forgetConn(conn)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) forgetConn(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	log := s.logger().With("remote", conn.RemoteAddr().String())
	log.Info("client connected")
	defer log.Info("client disconnected")

	var dec wire.Decoder
	buf := make([]byte, readChunkSize)
	for {
		payload, err := dec.Next()
		if err != nil {
			if err != wire.ErrNeedMoreData {
				// The stream cannot be resynchronized after a bad
				// length header.
				log.Warn("malformed frame, closing connection", "err", err)
				return
			}
			n, rerr := conn.Read(buf)
			if n > 0 {
				dec.Feed(buf[:n])
			}
			if rerr != nil {
				return
			}
			continue
		}

		cmd, err := wire.ParseCommand(payload)
		if err != nil {
			// The frame boundary held, so the stream is still in sync
			// and the client deserves an answer.
			log.Warn("undecodable command payload", "err", err)
			s.writeResponse(conn, log, wire.Failure(wire.KindCommand, fmt.Sprintf("invalid command payload: %v", err)))
			continue
		}

		log.Debug("dispatching command", "command", cmd.Type)
		s.writeResponse(conn, log, s.dispatch(cmd))
	}
}

func (s *Server) dispatch(cmd *wire.Command) *wire.Response {
	reg, ok := s.registry.Lookup(cmd.Type)
	if !ok {
		return wire.Failure(wire.KindCommand, "Unknown command type: "+cmd.Type)
	}

	if !reg.RequiresMainThread {
		return s.runHandler(reg, cmd.Params)
	}

	name := cmd.Type
	params := cmd.Params
	ch, err := s.exec.Submit(func() *wire.Response {
		// Re-check the registry: the integration owning this handler
		// may have been disabled between submit and drain.
		reg, ok := s.registry.Lookup(name)
		if !ok {
			return wire.Failure(wire.KindCommand, "Unknown command type: "+name)
		}
		return s.runHandler(reg, params)
	})
	if err != nil {
		switch err {
		case ErrQueueFull:
			return wire.Failure(wire.KindCommand, "command queue full, retry later")
		default:
			return wire.Failure(wire.KindConnection, "host shutting down")
		}
	}

	select {
	case resp := <-ch:
		return resp
	case <-s.exec.Done():
		return wire.Failure(wire.KindConnection, "host shutting down")
	}
}

func (s *Server) runHandler(reg Registration, params map[string]any) (resp *wire.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("handler panicked", "command", reg.Name, "panic", r)
			resp = wire.Failure(wire.KindCommand, fmt.Sprintf("internal error: %v", r))
		}
	}()

	result, err := reg.Handler(params)
	if err != nil {
		return wire.Failure(wire.KindCommand, err.Error())
	}
	out, err := wire.Success(result)
	if err != nil {
		return wire.Failure(wire.KindCommand, fmt.Sprintf("encoding result: %v", err))
	}
	return out
}

func (s *Server) writeResponse(conn net.Conn, log *slog.Logger, resp *wire.Response) {
	frame, err := wire.EncodeResponse(resp)
	if err != nil {
		// Typically an oversized result; replace it with an error the
		// client can actually receive.
		log.Warn("response too large to frame", "err", err)
		frame, err = wire.EncodeResponse(wire.Failure(wire.KindCommand, "result too large to send"))
		if err != nil {
			return
		}
	}
	if _, err := conn.Write(frame); err != nil {
		log.Warn("writing response failed", "err", err)
	}
}

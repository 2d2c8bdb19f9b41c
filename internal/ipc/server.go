package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

const connTimeout = 5 * time.Second

// Server answers requests on a unix socket
type Server struct {
	path   string
	source StatusSource
	logger *zap.Logger
	ln     net.Listener
}

// Listen removes a stale socket at path and starts listening
func Listen(path string, source StatusSource, logger *zap.Logger) (*Server, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return &Server{path: path, source: source, logger: logger, ln: ln}, nil
}

// Serve accepts connections until ctx is cancelled, then removes the socket
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	defer os.Remove(s.path)

	s.logger.Info("ipc listening", zap.String("socket", s.path))
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.reply(conn, Response{Error: "invalid request: " + err.Error()})
		return
	}
	s.reply(conn, s.handleRequest(req))
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Debug("ipc reply failed", zap.Error(err))
	}
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Command {
	case CommandStatus:
		s.source.RequestStatus()
		fallthrough
	case CommandSnapshot:
		payload := s.source.Snapshot().Payload()
		return Response{Status: &payload}
	default:
		return Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

package control

import (
	"context"
	"encoding/json"
	"net"
	"os"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Handler implements every control-channel operation. cmd/sessiond wires
// one backed by internal/session.Manager, internal/scheduler.Dispatcher,
// and internal/driver.
type Handler interface {
	Create(ctx context.Context, tool, workdir string) (SessionView, error)
	List(ctx context.Context) ([]SessionView, error)
	Info(ctx context.Context, sessionID string) (SessionView, error)
	SetActive(ctx context.Context, sessionID string) error
	Rename(ctx context.Context, sessionID, name string) error
	Close(ctx context.Context, sessionID string) error
	Submit(ctx context.Context, sessionID, text, imagePath string) (string, error)
	SendRaw(ctx context.Context, sessionID, raw string) error
	Help(ctx context.Context, tool string, refresh bool) (string, error)
}

// Server listens on a Unix-domain socket and dispatches each connection's
// single request to Handler, matching a connection-per-request daemon
// protocol.
type Server struct {
	SocketPath string
	Handler    Handler

	listener net.Listener
}

// ListenAndServe binds SocketPath (removing any stale socket file left
// behind by a prior, uncleanly terminated process) and accepts
// connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	os.Remove(s.SocketPath) //nolint:errcheck

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return sessionerr.Wrap(sessionerr.SpawnError, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck
		os.Remove(s.SocketPath) //nolint:errcheck
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return sessionerr.Wrap(sessionerr.SpawnError, err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		writeResponse(conn, Response{Success: false, Error: "bad_json"})
		return
	}

	resp := s.dispatch(ctx, req)
	writeResponse(conn, resp)
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	switch req.Action {
	case "create":
		view, err := s.Handler.Create(ctx, req.Tool, req.Workdir)
		return result(view, err)
	case "list":
		views, err := s.Handler.List(ctx)
		return result(views, err)
	case "info":
		view, err := s.Handler.Info(ctx, req.SessionID)
		return result(view, err)
	case "set_active":
		err := s.Handler.SetActive(ctx, req.SessionID)
		return result(nil, err)
	case "rename":
		err := s.Handler.Rename(ctx, req.SessionID, req.Name)
		return result(nil, err)
	case "close":
		err := s.Handler.Close(ctx, req.SessionID)
		return result(nil, err)
	case "submit":
		output, err := s.Handler.Submit(ctx, req.SessionID, req.Text, req.ImagePath)
		return result(output, err)
	case "send_raw":
		err := s.Handler.SendRaw(ctx, req.SessionID, req.Raw)
		return result(nil, err)
	case "help":
		text, err := s.Handler.Help(ctx, req.Tool, req.Refresh)
		return result(text, err)
	default:
		return Response{Success: false, Error: "unknown_action"}
	}
}

func result(data interface{}, err error) Response {
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Data: data}
}

func writeResponse(conn net.Conn, resp Response) {
	json.NewEncoder(conn).Encode(resp) //nolint:errcheck
}

// Package rpc implements the RPC Bridge: a length-delimited,
// connection-per-request JSON protocol over TCP that lets an external
// caller submit a prompt and get its output back without going through
// the chat transport (a non-goal here). Grounded on the
// connection-per-request daemon handler (net.Listen + one goroutine per
// accepted connection, json.NewDecoder/Encoder framing) switched from a
// Unix socket to TCP, and confirmed against original_source/mcp_bridge.py's
// asyncio line-delimited JSON socket server (token check, then dispatch,
// then a single JSON response line).
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Request is the wire shape of one RPC call.
type Request struct {
	Token     string `json:"token,omitempty"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the wire shape of one RPC reply. Exactly one of Output or
// Error is meaningful, gated by Ok.
type Response struct {
	Ok     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatch runs prompt against sessionID (or the active session when
// sessionID is empty) and returns its output. It is supplied by whatever
// wires the Session Manager and Scheduler together; the Bridge itself
// knows nothing about sessions.
type Dispatch func(ctx context.Context, prompt, sessionID string) (output string, err error)

// Bridge is the RPC Bridge server.
type Bridge struct {
	Addr         string
	Token        string
	Dispatch     Dispatch
	RequestTimeout time.Duration

	listener net.Listener
}

const readTimeout = 60 * time.Second

// ListenAndServe binds Addr and accepts connections until ctx is
// cancelled or Close is called. Each connection handles exactly one
// request then closes, matching a connection-per-request daemon
// protocol.
func (b *Bridge) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.Addr)
	if err != nil {
		return sessionerr.Wrap(sessionerr.SpawnError, err)
	}
	b.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck
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
		go b.handleConn(ctx, conn)
	}
}

// Close stops accepting new connections.
func (b *Bridge) Close() error {
	if b.listener == nil {
		return nil
	}
	return b.listener.Close()
}

func (b *Bridge) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout)) //nolint:errcheck
	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		code := "read_error"
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			code = "bad_json"
		}
		writeResponse(conn, Response{Ok: false, Error: code})
		return
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeResponse(conn, Response{Ok: false, Error: "bad_json"})
		return
	}

	if b.Token != "" && req.Token != b.Token {
		writeResponse(conn, Response{Ok: false, Error: "auth"})
		return
	}
	if req.Prompt == "" {
		writeResponse(conn, Response{Ok: false, Error: "bad-request"})
		return
	}

	reqCtx := ctx
	if b.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, b.RequestTimeout)
		defer cancel()
	}

	output, err := b.Dispatch(reqCtx, req.Prompt, req.SessionID)
	if err != nil {
		writeResponse(conn, Response{Ok: false, Error: wireError(err)})
		return
	}
	writeResponse(conn, Response{Ok: true, Output: output})
}

// wireError maps a dispatch failure to its wire token. Dispatch's only
// NotFound failure mode is "no session to target" (it falls back from a
// stale session_id to the active session before giving up), so NotFound
// gets its own dedicated token rather than whatever message happened to
// be attached; every other Kind passes its message through as-is.
func wireError(err error) string {
	if sessionerr.KindOf(err) == sessionerr.NotFound {
		return "no-active-session"
	}
	return err.Error()
}

func writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data) //nolint:errcheck
}

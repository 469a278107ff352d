package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/LKosoj/sessionctl/internal/sessionerr"
)

// Client is a thin connect-per-request wrapper over the control channel:
// dial, encode one request, decode one response, close.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

const defaultClientTimeout = 10 * time.Second

func (c *Client) send(req Request) (*Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	conn, err := net.DialTimeout("unix", c.SocketPath, timeout)
	if err != nil {
		return nil, sessionerr.Wrap(sessionerr.SessionDown, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, sessionerr.Wrap(sessionerr.SessionDown, err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, sessionerr.Wrap(sessionerr.SessionDown, err)
	}
	return &resp, nil
}

func decodeData(resp *Response, out interface{}) error {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Create asks sessiond to create a new session for tool/workdir.
func (c *Client) Create(tool, workdir string) (SessionView, error) {
	resp, err := c.send(Request{Action: "create", Tool: tool, Workdir: workdir})
	if err != nil {
		return SessionView{}, err
	}
	if !resp.Success {
		return SessionView{}, fmt.Errorf("%s", resp.Error)
	}
	var view SessionView
	err = decodeData(resp, &view)
	return view, err
}

// List returns every session sessiond currently manages.
func (c *Client) List() ([]SessionView, error) {
	resp, err := c.send(Request{Action: "list"})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s", resp.Error)
	}
	var views []SessionView
	err = decodeData(resp, &views)
	return views, err
}

// Info returns detail for one session.
func (c *Client) Info(sessionID string) (SessionView, error) {
	resp, err := c.send(Request{Action: "info", SessionID: sessionID})
	if err != nil {
		return SessionView{}, err
	}
	if !resp.Success {
		return SessionView{}, fmt.Errorf("%s", resp.Error)
	}
	var view SessionView
	err = decodeData(resp, &view)
	return view, err
}

// SetActive makes sessionID the active session.
func (c *Client) SetActive(sessionID string) error {
	resp, err := c.send(Request{Action: "set_active", SessionID: sessionID})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// Rename sets a session's display name.
func (c *Client) Rename(sessionID, name string) error {
	resp, err := c.send(Request{Action: "rename", SessionID: sessionID, Name: name})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// Close tears down a session.
func (c *Client) Close(sessionID string) error {
	resp, err := c.send(Request{Action: "close", SessionID: sessionID})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// Submit enqueues text (and an optional image) for sessionID and waits
// for its output.
func (c *Client) Submit(sessionID, text, imagePath string) (string, error) {
	resp, err := c.send(Request{Action: "submit", SessionID: sessionID, Text: text, ImagePath: imagePath})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%s", resp.Error)
	}
	var output string
	err = decodeData(resp, &output)
	return output, err
}

// SendRaw writes an escape-interpreted literal keystroke sequence to an
// interactive session's stdin, bypassing the prompt/queue protocol.
func (c *Client) SendRaw(sessionID, raw string) error {
	resp, err := c.send(Request{Action: "send_raw", SessionID: sessionID, Raw: raw})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// Help returns a tool's cached help text, or refreshes it by running its
// help_cmd first when refresh is true or nothing is cached yet.
func (c *Client) Help(tool string, refresh bool) (string, error) {
	resp, err := c.send(Request{Action: "help", Tool: tool, Refresh: refresh})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%s", resp.Error)
	}
	var text string
	err = decodeData(resp, &text)
	return text, err
}

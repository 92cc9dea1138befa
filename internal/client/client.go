// Package client talks to a running agenteval server: it registers an
// evaluation and follows its websocket event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chainguard-dev/clog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

// maxMessageSize bounds a single event frame. Complete events carry every
// response and step, so they outgrow the library default.
const maxMessageSize = 8 << 20

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: http.DefaultClient}
}

// Create registers an evaluation and returns its id.
func (c *Client) Create(ctx context.Context, in runner.Input) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encoding input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/agent-eval", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating evaluation: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		EvaluationID string `json:"evaluationId"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("creating evaluation: %s (status %d)", out.Error, resp.StatusCode)
	}
	return out.EvaluationID, nil
}

// Watch follows the event stream of id over a websocket and calls fn for
// every event until a terminal one arrives.
func (c *Client) Watch(ctx context.Context, id string, fn func(runner.Event)) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/agent-eval/" + url.PathEscape(id) + "/ws"

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: c.HTTP})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", u, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return fmt.Errorf("reading event: %w", err)
		}
		ev, err := runner.DecodeEnvelope(raw)
		if err != nil {
			clog.FromContext(ctx).Warnf("skipping malformed event: %v", err)
			continue
		}
		fn(ev)
		if runner.Terminal(ev) {
			conn.Close(websocket.StatusNormalClosure, "done")
			return nil
		}
	}
}

// Run creates an evaluation and watches it to completion.
func (c *Client) Run(ctx context.Context, in runner.Input, fn func(runner.Event)) (string, error) {
	id, err := c.Create(ctx, in)
	if err != nil {
		return "", err
	}
	return id, c.Watch(ctx, id, fn)
}

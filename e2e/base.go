// Package e2e drives a running server over its real HTTP and WebSocket
// surfaces. The suite is skipped unless SERVER_ADDR is set.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const frameTimeout = 10 * time.Second

type BaseSocketSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSocketSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping e2e suite")
	}
}

// Account is a registered user plus its session token.
type Account struct {
	Token  string
	UserID string
	Handle string
}

// RegisterAccount creates a fresh user through the REST surface. Handles
// are randomized so suite runs never collide on the uniqueness index.
func (s *BaseSocketSuite) RegisterAccount(name string) Account {
	handle := "u" + uuid.NewString()[:8]
	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"handle":   handle,
		"password": "e2e-password",
	})

	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/auth/register", s.Config.ServerAddr),
		"application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var decoded struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return Account{Token: decoded.Token, UserID: decoded.User.ID, Handle: handle}
}

// SocketClient wraps one live connection. Response and event frames arrive
// interleaved on the same wire; Call and WaitEvent sort them apart.
type SocketClient struct {
	suite *BaseSocketSuite
	name  string
	conn  *websocket.Conn
	seq   int64

	// events buffers frames that arrived while waiting for a response.
	events []eventFrame
}

type responseFrame struct {
	Seq     int64             `json:"seq"`
	Success bool              `json:"success"`
	Msg     string            `json:"msg"`
	Errors  map[string]string `json:"errors"`
	Data    json.RawMessage   `json:"data"`
}

type eventFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Connect opens a socket for the account and consumes the subscription
// snapshot every fresh connection starts with.
func (s *BaseSocketSuite) Connect(name string, account Account) *SocketClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	u := url.URL{
		Scheme:   "ws",
		Host:     s.Config.ServerAddr,
		Path:     "/ws",
		RawQuery: "token=" + url.QueryEscape(account.Token),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to WebSocket server at "+u.String())

	client := &SocketClient{suite: s, name: name, conn: conn}
	snapshot := client.WaitEvent("subscribed")
	s.Require().NotNil(snapshot, "No subscription snapshot after connect")
	return client
}

func (c *SocketClient) Close() {
	_ = c.conn.Close()
}

// Call sends one action frame and blocks until its acknowledgement comes
// back, buffering any event frames that arrive in between.
func (c *SocketClient) Call(action string, payload any) responseFrame {
	c.seq++
	raw, err := json.Marshal(payload)
	c.suite.Require().NoError(err)

	frame, err := json.Marshal(map[string]any{
		"seq":     c.seq,
		"action":  action,
		"payload": json.RawMessage(raw),
	})
	c.suite.Require().NoError(err)

	start := time.Now()
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, frame))

	deadline := time.Now().Add(frameTimeout)
	for time.Now().Before(deadline) {
		raw := c.nextFrame(deadline)

		var event eventFrame
		if json.Unmarshal(raw, &event) == nil && event.Event != "" {
			c.events = append(c.events, event)
			continue
		}

		var resp responseFrame
		c.suite.Require().NoError(json.Unmarshal(raw, &resp))
		if resp.Seq != c.seq {
			continue
		}
		c.log(fmt.Sprintf("WS %s [%s] success=%v in %v",
			action, c.name, resp.Success, time.Since(start)), frame, raw)
		return resp
	}
	c.suite.Require().FailNowf("timeout", "No acknowledgement for %s within %v", action, frameTimeout)
	return responseFrame{}
}

// Upload sends avatar bytes as the binary frame completing a parked
// chat:create, then waits for the acknowledgement.
func (c *SocketClient) Upload(data []byte) responseFrame {
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.BinaryMessage, data))

	deadline := time.Now().Add(frameTimeout)
	for time.Now().Before(deadline) {
		raw := c.nextFrame(deadline)

		var event eventFrame
		if json.Unmarshal(raw, &event) == nil && event.Event != "" {
			c.events = append(c.events, event)
			continue
		}

		var resp responseFrame
		c.suite.Require().NoError(json.Unmarshal(raw, &resp))
		if resp.Seq == c.seq {
			return resp
		}
	}
	c.suite.Require().FailNowf("timeout", "No acknowledgement for upload within %v", frameTimeout)
	return responseFrame{}
}

// WaitEvent returns the next pushed frame with the given event name,
// starting with anything buffered during earlier calls.
func (c *SocketClient) WaitEvent(name string) *eventFrame {
	for i, buffered := range c.events {
		if buffered.Event == name {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return &buffered
		}
	}

	deadline := time.Now().Add(frameTimeout)
	for time.Now().Before(deadline) {
		raw := c.nextFrame(deadline)
		var event eventFrame
		if json.Unmarshal(raw, &event) == nil && event.Event != "" {
			if event.Event == name {
				c.log(fmt.Sprintf("WS event %s [%s]", name, c.name), nil, raw)
				return &event
			}
			c.events = append(c.events, event)
		}
	}
	c.suite.Require().FailNowf("timeout", "Event %s not received within %v", name, frameTimeout)
	return nil
}

// AssertNoEvent verifies that no frame with the given event name arrives
// within the grace period. Used to prove scoping: outsiders stay silent.
func (c *SocketClient) AssertNoEvent(name string, grace time.Duration) {
	for i, buffered := range c.events {
		if buffered.Event == name {
			c.suite.Require().FailNowf("unexpected event",
				"Event %s was delivered to %s (buffered at %d)", name, c.name, i)
		}
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		_ = c.conn.SetReadDeadline(deadline)
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			// Deadline expiry is the expected outcome here.
			_ = c.conn.SetReadDeadline(time.Time{})
			return
		}
		var event eventFrame
		if json.Unmarshal(raw, &event) == nil && event.Event != "" {
			c.suite.Require().NotEqual(name, event.Event,
				"Event %s was delivered to %s", name, c.name)
			c.events = append(c.events, event)
		}
	}
	_ = c.conn.SetReadDeadline(time.Time{})
}

func (c *SocketClient) nextFrame(deadline time.Time) []byte {
	c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))
	_, raw, err := c.conn.ReadMessage()
	c.suite.Require().NoError(err, "Socket read failed for "+c.name)
	return raw
}

// log dumps frame bodies when E2E_DEBUG_JSON is enabled.
func (c *SocketClient) log(line string, request, response []byte) {
	t := c.suite.T()
	if !c.suite.Config.DebugJSON {
		t.Log(line)
		return
	}
	if request != nil {
		line += "\nREQUEST:\n" + string(request)
	}
	if response != nil {
		line += "\nRESPONSE:\n" + string(response)
	}
	t.Log(line)
}

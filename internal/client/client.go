package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	http_room "github.com/humanbelnik/senryu/internal/delivery/http/room"
	http_round "github.com/humanbelnik/senryu/internal/delivery/http/round"
	http_user "github.com/humanbelnik/senryu/internal/delivery/http/user"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client talks to one server as one user. It is not safe for concurrent use
// until Register has returned.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Token() string {
	return c.token
}

func (c *Client) Register(ctx context.Context, name string) (http_user.UserDTO, error) {
	req := http_user.CreateRequestDTO{}
	if name != "" {
		req.Name = &name
	}

	var resp http_user.CreateResponseDTO
	if err := c.do(ctx, http.MethodPost, "/users", req, &resp); err != nil {
		return http_user.UserDTO{}, err
	}
	c.token = resp.Token
	return resp.User, nil
}

func (c *Client) CreateRoom(ctx context.Context, name string) (http_room.RoomDTO, error) {
	var room http_room.RoomDTO
	err := c.do(ctx, http.MethodPost, "/rooms", http_room.CreateRequestDTO{Name: name}, &room)
	return room, err
}

func (c *Client) Rooms(ctx context.Context) ([]http_room.RoomDTO, error) {
	var rooms []http_room.RoomDTO
	err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms)
	return rooms, err
}

func (c *Client) Join(ctx context.Context, roomID string) (http_user.UserDTO, error) {
	var user http_user.UserDTO
	err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/participations", nil, &user)
	return user, err
}

func (c *Client) Leave(ctx context.Context, roomID string) (http_user.UserDTO, error) {
	var user http_user.UserDTO
	err := c.do(ctx, http.MethodDelete, "/rooms/"+roomID+"/participations", nil, &user)
	return user, err
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string, confirm bool) error {
	path := "/rooms/" + roomID
	if confirm {
		path += "?confirm=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) StartRound(ctx context.Context, roomID string) (http_room.RoomDTO, error) {
	var room http_room.RoomDTO
	err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/round", nil, &room)
	return room, err
}

func (c *Client) Submit(ctx context.Context, roomID string, character string) (http_round.SubmitResponseDTO, error) {
	var sub http_round.SubmitResponseDTO
	err := c.do(ctx, http.MethodPost, "/rooms/"+roomID+"/characters", http_round.SubmitRequestDTO{Character: character}, &sub)
	return sub, err
}

func (c *Client) Poem(ctx context.Context, roomID string) (http_round.PoemDTO, error) {
	var poem http_round.PoemDTO
	err := c.do(ctx, http.MethodGet, "/rooms/"+roomID+"/poem", nil, &poem)
	return poem, err
}

func (c *Client) State(ctx context.Context, roomID string) (http_round.StateDTO, error) {
	var state http_round.StateDTO
	err := c.do(ctx, http.MethodGet, "/rooms/"+roomID+"/state", nil, &state)
	return state, err
}

// Follow streams the room's socket until ctx is done or the server closes it.
// The first event is the snapshot.
func (c *Client) Follow(ctx context.Context, roomID string) (<-chan Event, error) {
	u, err := url.Parse(c.baseURL + apiPrefix + "/rooms/" + roomID + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	events := make(chan Event)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(events)
		for {
			var e Event
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(http_common.TokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	var body http_common.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

package ws_room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	http_common "github.com/humanbelnik/senryu/internal/delivery/http/common"
	"github.com/humanbelnik/senryu/internal/model"
	"github.com/sirupsen/logrus"
)

const (
	EventSnapshot = "SNAPSHOT"
	EventError    = "ERROR"

	presenceTimeout = 3 * time.Second
)

var (
	ErrHubClosed = errors.New("hub closed")
	ErrDetached  = errors.New("client detached before snapshot")
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type Feed interface {
	Publish(ctx context.Context, event model.RoomEvent) error
	Subscribe(ctx context.Context, roomID uuid.UUID) (<-chan model.RoomEvent, error)
}

type Presence interface {
	Add(ctx context.Context, roomID uuid.UUID, userID uuid.UUID) error
	Remove(ctx context.Context, roomID uuid.UUID, userID uuid.UUID) error
}

// Snapshot reads the room state to send first, with the room version it was
// read at.
type Snapshot func(ctx context.Context) (Event, int64, error)

type roomEvent struct {
	roomID uuid.UUID
	event  Event
	// version is zero for events a snapshot cannot cover.
	version int64
}

type registration struct {
	client *Client
	joined chan *room
}

type room struct {
	id      uuid.UUID
	clients map[*Client]bool
	cancel  context.CancelFunc

	// ready is closed once the feed subscription is settled; err is set
	// before that when it failed.
	ready chan struct{}
	err   error
}

// Hub relays the room feed to the sockets connected to this node. A room is
// followed on the feed while at least one of its clients is connected here.
type Hub struct {
	feed     Feed
	presence Presence
	logger   *logrus.Logger

	rooms      map[uuid.UUID]*room
	register   chan registration
	unregister chan *Client
	broadcast  chan roomEvent
	failed     chan *room
	done       chan struct{}
	mu         sync.Mutex
}

type HubOption func(*Hub)

func WithLogger(logger *logrus.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(feed Feed, presence Presence, opts ...HubOption) *Hub {
	h := &Hub{
		feed:       feed,
		presence:   presence,
		logger:     logrus.StandardLogger(),
		rooms:      make(map[uuid.UUID]*room),
		register:   make(chan registration),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent),
		failed:     make(chan *room),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves the hub until ctx is done. Every client is disconnected then.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-h.register:
			reg.joined <- h.handleRegister(ctx, reg.client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case e := <-h.broadcast:
			h.broadcastToRoom(e)

		case r := <-h.failed:
			h.failRoom(r)
		}
	}
}

// Attach registers the client and waits until the room feed is followed on
// this node. Only then is the snapshot read, so no event falls between the
// two. Events arriving before the snapshot is queued are held back and sent
// after it, except versioned ones the snapshot already covers.
func (h *Hub) Attach(ctx context.Context, client *Client, snapshot Snapshot) error {
	joined := make(chan *room, 1)
	select {
	case h.register <- registration{client: client, joined: joined}:
	case <-h.done:
		return ErrHubClosed
	}
	r := <-joined

	select {
	case <-r.ready:
	case <-ctx.Done():
		h.Detach(client)
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}
	if r.err != nil {
		h.Detach(client)
		return r.err
	}

	first, version, err := snapshot(ctx)
	if err != nil {
		h.Detach(client)
		return err
	}
	if !h.activate(client, first, version) {
		return ErrDetached
	}
	return nil
}

func (h *Hub) Detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connected returns the number of clients of the room on this node.
func (h *Hub) Connected(roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[roomID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) handleRegister(ctx context.Context, client *Client) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, exists := h.rooms[client.roomID]
	if !exists {
		followCtx, cancel := context.WithCancel(ctx)
		r = &room{
			id:      client.roomID,
			clients: make(map[*Client]bool),
			cancel:  cancel,
			ready:   make(chan struct{}),
		}
		h.rooms[client.roomID] = r
		go h.follow(followCtx, r)
	}
	r.clients[client] = true
	return r
}

// activate queues the snapshot and whatever was held back for the client.
func (h *Hub) activate(client *Client, first Event, version int64) bool {
	h.mu.Lock()
	r, ok := h.rooms[client.roomID]
	if !ok || !r.clients[client] {
		h.mu.Unlock()
		return false
	}

	client.live = true
	client.since = version
	client.send <- first
	for _, e := range client.pending {
		if client.covers(e) {
			continue
		}
		client.send <- e.event
	}
	client.pending = nil
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"user_id": client.userID,
		"room_id": client.roomID,
		"version": version,
	}).Info("client attached")

	go h.presenceChanged(client, h.presence.Add)
	return true
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	dropped, live := h.drop(client)
	h.mu.Unlock()
	if !dropped {
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": client.userID,
		"room_id": client.roomID,
	}).Info("client unregistered")

	if live {
		go h.presenceChanged(client, h.presence.Remove)
	}
}

// drop removes the client and closes its queue. It reports whether the client
// was still registered and whether it had been attached. Callers hold mu.
func (h *Hub) drop(client *Client) (bool, bool) {
	r, ok := h.rooms[client.roomID]
	if !ok || !r.clients[client] {
		return false, false
	}
	delete(r.clients, client)
	close(client.send)

	if len(r.clients) == 0 {
		r.cancel()
		delete(h.rooms, client.roomID)
	}
	return true, client.live
}

func (h *Hub) follow(ctx context.Context, r *room) {
	logCtx := h.logger.WithField("room_id", r.id)

	events, err := h.feed.Subscribe(ctx, r.id)
	if err != nil {
		logCtx.WithError(err).Error("failed to follow room feed")
		r.err = err
		close(r.ready)
		h.fail(ctx, r)
		return
	}
	close(r.ready)

	for e := range events {
		re := roomEvent{roomID: r.id, event: Event{Type: string(e.Type), Payload: e}}
		if e.Type.Versioned() {
			re.version = e.Version
		}
		select {
		case h.broadcast <- re:
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	logCtx.Error("room feed closed")
	h.fail(ctx, r)
}

func (h *Hub) fail(ctx context.Context, r *room) {
	select {
	case h.failed <- r:
	case <-ctx.Done():
	}
}

// failRoom tells the room's clients the feed is gone and disconnects them, so
// they reconnect and follow a fresh subscription.
func (h *Hub) failRoom(r *room) {
	h.mu.Lock()
	var live []*Client
	for client := range r.clients {
		if client.live {
			select {
			case client.send <- Event{Type: EventError, Payload: http_common.ErrorResponse{Message: "room feed lost"}}:
			default:
			}
			live = append(live, client)
		}
		delete(r.clients, client)
		close(client.send)
	}
	r.cancel()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
	h.mu.Unlock()

	for _, client := range live {
		go h.presenceChanged(client, h.presence.Remove)
	}
}

func (h *Hub) presenceChanged(client *Client, apply func(context.Context, uuid.UUID, uuid.UUID) error) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()

	logCtx := h.logger.WithFields(logrus.Fields{
		"user_id": client.userID,
		"room_id": client.roomID,
	})
	if err := apply(ctx, client.roomID, client.userID); err != nil {
		logCtx.WithError(err).Warn("failed to update presence")
		return
	}

	event := model.RoomEvent{
		Type:      model.EventPresenceChanged,
		RoomID:    client.roomID,
		UserID:    &client.userID,
		Timestamp: time.Now().Unix(),
	}
	if err := h.feed.Publish(ctx, event); err != nil {
		logCtx.WithError(err).Warn("failed to publish presence change")
	}
}

// broadcastToRoom never blocks: a client whose queue is full is dropped and
// has to reconnect.
func (h *Hub) broadcastToRoom(e roomEvent) {
	h.mu.Lock()
	r, ok := h.rooms[e.roomID]
	if !ok {
		h.mu.Unlock()
		return
	}

	var slow []*Client
	for client := range r.clients {
		if !client.live {
			// One slot of the queue is kept for the snapshot.
			if len(client.pending) >= sendBuffer-1 {
				slow = append(slow, client)
				continue
			}
			client.pending = append(client.pending, e)
			continue
		}
		if client.covers(e) {
			continue
		}
		select {
		case client.send <- e.event:
		default:
			slow = append(slow, client)
		}
	}

	var gone []*Client
	for _, client := range slow {
		h.logger.WithField("user_id", client.userID).Warn("dropping slow client")
		if dropped, live := h.drop(client); dropped && live {
			gone = append(gone, client)
		}
	}
	h.mu.Unlock()

	for _, client := range gone {
		go h.presenceChanged(client, h.presence.Remove)
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, r := range h.rooms {
		r.cancel()
		for client := range r.clients {
			close(client.send)
		}
		delete(h.rooms, id)
	}
}

package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"BizLink/entity"
	"BizLink/internal/lib/sl"
	"BizLink/internal/metrics"
)

// ClientMessageHandler handles incoming WebSocket messages from clients.
type ClientMessageHandler interface {
	HandleMarkRead(username, conversationID string) error
}

// Event represents a WebSocket event sent to clients. Types emitted by
// the server: "new_message", "conversation_update", "notification",
// "badge", "read_receipt".
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type userEvent struct {
	username string
	event    *Event
}

// Hub maintains the set of active WebSocket clients grouped per user and
// delivers events either to a single user's devices or to everyone.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	broadcast  chan *Event
	direct     chan *userEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	handler    ClientMessageHandler
	log        *slog.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		direct:     make(chan *userEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.With(sl.Module("ws.hub")),
	}
}

// SetHandler sets the handler for incoming client messages.
func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.byUser[client.username] == nil {
				h.byUser[client.username] = make(map[*Client]bool)
			}
			h.byUser[client.username][client] = true
			h.mu.Unlock()
			metrics.WSClients.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				metrics.WSClients.Dec()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				h.send(client, data)
			}
			h.mu.Unlock()

		case ue := <-h.direct:
			data, err := json.Marshal(ue.event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for client := range h.byUser[ue.username] {
				h.send(client, data)
			}
			h.mu.Unlock()
		}
	}
}

// send must be called with h.mu held.
func (h *Hub) send(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.drop(client)
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if peers := h.byUser[client.username]; peers != nil {
		delete(peers, client)
		if len(peers) == 0 {
			delete(h.byUser, client.username)
		}
	}
	close(client.send)
}

// EmitToUser queues an event for every device of one user.
func (h *Hub) EmitToUser(username string, event Event) {
	h.direct <- &userEvent{username: username, event: &event}
}

// BroadcastMessage fans a stored message out to both participants.
func (h *Hub) BroadcastMessage(conv *entity.Conversation, msg *entity.Message) {
	for _, participant := range conv.Participants {
		h.EmitToUser(participant, Event{Type: "new_message", Data: msg})
	}
}

// BroadcastConversationUpdate tells a user their inbox changed.
func (h *Hub) BroadcastConversationUpdate(username string, conv *entity.Conversation) {
	h.EmitToUser(username, Event{Type: "conversation_update", Data: conv})
}

// BroadcastReadReceipt tells the other participant their messages were read.
func (h *Hub) BroadcastReadReceipt(username, conversationID, readBy string) {
	h.EmitToUser(username, Event{
		Type: "read_receipt",
		Data: map[string]string{
			"conversation_id": conversationID,
			"read_by":         readBy,
		},
	})
}

// Push implements the notification gateway: one locally displayed
// notification on each of the user's connected devices.
func (h *Hub) Push(username string, n entity.Notification) {
	h.EmitToUser(username, Event{Type: "notification", Data: n})
}

// SetBadge implements the notification gateway badge refresh.
func (h *Hub) SetBadge(username string, unread int) {
	h.EmitToUser(username, Event{
		Type: "badge",
		Data: map[string]int{"count": unread},
	})
}

// clientEvent represents an incoming WebSocket message from a client.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a client.
func (h *Hub) HandleClientMessage(username string, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("failed to parse client ws message", sl.Err(err))
		return
	}

	switch event.Type {
	case "mark_read":
		var data struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			h.log.Warn("failed to parse mark_read data", sl.Err(err))
			return
		}
		if data.ConversationID == "" {
			return
		}
		if err := h.handler.HandleMarkRead(username, data.ConversationID); err != nil {
			h.log.Error("failed to handle mark_read",
				slog.String("username", username),
				slog.String("conversation_id", data.ConversationID),
				sl.Err(err),
			)
		}
	}
}

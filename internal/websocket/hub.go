package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/community-points/internal/domain"
)

// Message types
const (
	MessageTypeRankingUpdate = "ranking_update"
	MessageTypeScoreUpdate   = "score_update"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message represents a WebSocket message. Period scopes ranking
// updates to the clients subscribed to that period; messages without a
// period go to everyone.
type Message struct {
	Type      string      `json:"type"`
	Period    string      `json:"period,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RankingUpdate contains a freshly computed snapshot for broadcast
type RankingUpdate struct {
	Period        string                 `json:"period"`
	ReferenceDate time.Time              `json:"reference_date"`
	Entries       []*domain.RankingEntry `json:"entries"`
}

// ScoreUpdate notifies subscribers that a user's running total changed
type ScoreUpdate struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by ranking period
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	period string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all period subscriptions
				for period, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, period)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.period]; !ok {
				h.clients[req.period] = make(map[*Client]bool)
			}
			h.clients[req.period][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "period", req.period)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.period]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.period)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "period", req.period)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// Period-scoped messages only reach subscribed clients
	if message.Period != "" {
		if clients, ok := h.clients[message.Period]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastRankingUpdate sends a computed snapshot to clients
// subscribed to its period
func (h *Hub) BroadcastRankingUpdate(period domain.RankingPeriod, referenceDate time.Time, entries []*domain.RankingEntry) {
	message := &Message{
		Type:   MessageTypeRankingUpdate,
		Period: string(period),
		Data: RankingUpdate{
			Period:        string(period),
			ReferenceDate: referenceDate,
			Entries:       entries,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastScoreUpdate notifies all clients of a changed point total
func (h *Hub) BroadcastScoreUpdate(userID string, points int) {
	message := &Message{
		Type: MessageTypeScoreUpdate,
		Data: ScoreUpdate{
			UserID: userID,
			Points: points,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a period subscription
func (h *Hub) Subscribe(client *Client, period string) {
	h.subscribe <- &subscriptionRequest{
		client: client,
		period: period,
	}
}

// Unsubscribe removes a client from a period subscription
func (h *Hub) Unsubscribe(client *Client, period string) {
	h.unsubscribe <- &subscriptionRequest{
		client: client,
		period: period,
	}
}

// GetSubscriberCount returns the number of subscribers for a period
func (h *Hub) GetSubscriberCount(period string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[period]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

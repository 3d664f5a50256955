package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yegors/overhead/pkg/logger"
)

// Message types on the alert feed
const (
	MessageTypeAlert          = "alert"
	MessageTypeFlightEvicted  = "flight_evicted"
	MessageTypeRecentRequest  = "recent_request"  // Client asks for the recent alerts
	MessageTypeRecentResponse = "recent_response" // Server replies with the recent alerts
	MessageTypeFilterUpdate   = "filter_update"   // Client narrows the idents it wants
)

const (
	clientSendBuffer          = 256
	defaultRecentRequestLimit = 20
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler handles incoming client messages
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// ClientFilters restricts which alerts a client receives. An empty prefix
// list means everything.
type ClientFilters struct {
	IdentPrefixes []string `json:"ident_prefixes"`
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	filters   *ClientFilters
}

// Server fans alert messages out to every connected client
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	done           chan struct{}
	upgrader       websocket.Upgrader
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for incoming client messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run serves the hub until ctx is cancelled, then closes every client
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.markClosed()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.markClosed()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.deliver(message)
		}
	}
}

func (s *Server) deliver(message *Message) {
	s.mu.RLock()
	clientsToRemove := make([]*Client, 0)
	for client := range s.clients {
		if !client.wants(message) {
			continue
		}
		if !client.SendMessage(message) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.mu.RUnlock()

	if len(clientsToRemove) == 0 {
		return
	}
	s.mu.Lock()
	for _, client := range clientsToRemove {
		if _, ok := s.clients[client]; ok {
			delete(s.clients, client)
			client.markClosed()
		}
	}
	s.mu.Unlock()
	s.logger.Warn("Dropped slow WebSocket clients", logger.Int("count", len(clientsToRemove)))
}

// HandleConnection upgrades the request and attaches the client to the hub
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Accepted WebSocket connection", logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, clientSendBuffer),
		server:    s,
		closeChan: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for every client. It never blocks; when the hub
// is backed up the message is dropped and false is returned.
func (s *Server) Broadcast(message *Message) bool {
	select {
	case s.broadcast <- message:
		return true
	default:
		s.logger.Warn("Broadcast queue full, dropping message", logger.String("message_type", message.Type))
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		if message.Type == MessageTypeFilterUpdate {
			c.UpdateFilters(parseFilters(message.Data))
			continue
		}

		if c.server.messageHandler != nil {
			if err := c.server.messageHandler.HandleMessage(c, message.Type, message.Data); err != nil {
				c.server.logger.Error("Failed to handle WebSocket message",
					logger.Error(err),
					logger.String("type", message.Type))
			}
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// markClosed closes the send channel once. Callers hold the server lock.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closeChan:
	default:
		close(c.closeChan)
	}
	c.conn.Close()
}

// SendMessage sends a message to this client without blocking
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// UpdateFilters replaces the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

// wants reports whether message passes the client's filters. Only alert
// messages are filtered.
func (c *Client) wants(message *Message) bool {
	if message.Type != MessageTypeAlert {
		return true
	}
	c.mu.Lock()
	filters := c.filters
	c.mu.Unlock()
	if filters == nil || len(filters.IdentPrefixes) == 0 {
		return true
	}
	ident, _ := message.Data["ident"].(string)
	return MatchesIdent(filters, ident)
}

// MatchesIdent reports whether ident starts with any of the filter prefixes
func MatchesIdent(filters *ClientFilters, ident string) bool {
	if filters == nil || len(filters.IdentPrefixes) == 0 {
		return true
	}
	ident = strings.ToUpper(ident)
	for _, prefix := range filters.IdentPrefixes {
		if strings.HasPrefix(ident, strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}

func parseFilters(data map[string]any) *ClientFilters {
	filters := &ClientFilters{}
	raw, _ := data["ident_prefixes"].([]any)
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			filters.IdentPrefixes = append(filters.IdentPrefixes, s)
		}
	}
	return filters
}

// RecentLimit reads the optional "limit" field of a recent_request
func RecentLimit(data map[string]any) int {
	if v, ok := data["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultRecentRequestLimit
}

package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"twabWinners/config"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientConnection represents a connected client with their subscriptions
type ClientConnection struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	mu            sync.RWMutex
	Send          chan []byte
}

// ClientMessage is a message sent by a client
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type broadcast struct {
	channel string
	message interface{}
}

var (
	// All connected clients
	clients      = make(map[*ClientConnection]bool)
	clientsMutex sync.RWMutex

	broadcasts       = make(chan broadcast, 100)
	clientRegister   = make(chan *ClientConnection)
	clientUnregister = make(chan *ClientConnection)

	hubOnce sync.Once
)

// StartEventHub starts the central message dispatcher once
func StartEventHub() {
	hubOnce.Do(func() {
		go runEventHub()
	})
}

func runEventHub() {
	log.Info().Msg("🚀 Event hub started")

	for {
		select {
		case client := <-clientRegister:
			clientsMutex.Lock()
			clients[client] = true
			total := len(clients)
			clientsMutex.Unlock()
			log.Info().Str("client", client.ID).Int("total", total).Msg("✅ Client registered")

		case client := <-clientUnregister:
			clientsMutex.Lock()
			if _, ok := clients[client]; ok {
				delete(clients, client)
				close(client.Send)
			}
			total := len(clients)
			clientsMutex.Unlock()
			log.Info().Str("client", client.ID).Int("total", total).Msg("👋 Client unregistered")

		case b := <-broadcasts:
			broadcastToSubscribers(b.channel, b.message)
		}
	}
}

// Broadcast queues message for every client subscribed to channel. The
// message is dropped when the hub is backed up.
func Broadcast(channel string, message interface{}) {
	select {
	case broadcasts <- broadcast{channel: channel, message: message}:
	default:
		log.Warn().Str("channel", channel).Msg("⚠️  Broadcast queue full, dropping message")
	}
}

// broadcastToSubscribers sends message to all clients subscribed to a channel
func broadcastToSubscribers(channel string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("❌ Failed to marshal message")
		return
	}

	clientsMutex.RLock()
	defer clientsMutex.RUnlock()

	for client := range clients {
		if !client.subscribed(channel) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Warn().Str("client", client.ID).Msg("⚠️  Client send buffer full, skipping message")
		}
	}
}

// HandleWS upgrades the request and serves subscriptions on it
// GET /ws
func HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("❌ WebSocket upgrade failed")
		return
	}

	client := &ClientConnection{
		ID:            uuid.NewString(),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.WSSendBufferSize),
	}
	clientRegister <- client

	go client.writePump()
	go client.readPump()
}

func (c *ClientConnection) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscriptions[channel]
}

// writePump sends messages from the Send channel to the WebSocket
func (c *ClientConnection) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debug().Err(err).Str("client", c.ID).Msg("❌ Write error")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump reads messages from the WebSocket and handles subscriptions
func (c *ClientConnection) readPump() {
	defer func() {
		clientUnregister <- c
		c.Conn.Close()
	}()

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.ID).Msg("❌ Read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendJSON(map[string]interface{}{"type": "error", "error": "invalid message"})
			continue
		}
		c.handleMessage(msg)
	}
}

// handleMessage processes incoming client messages
func (c *ClientConnection) handleMessage(msg ClientMessage) {
	channel, _ := msg.Data["channel"].(string)

	switch msg.Type {
	case "subscribe":
		if channel != config.WSRunsChannel {
			c.sendJSON(map[string]interface{}{"type": "error", "error": "unknown channel: " + channel})
			return
		}
		c.mu.Lock()
		c.Subscriptions[channel] = true
		c.mu.Unlock()
		log.Debug().Str("client", c.ID).Str("channel", channel).Msg("📡 Client subscribed")

		c.sendInitialData(channel)
		c.sendJSON(map[string]interface{}{"type": "subscribed", "channel": channel})

	case "unsubscribe":
		c.mu.Lock()
		delete(c.Subscriptions, channel)
		c.mu.Unlock()
		log.Debug().Str("client", c.ID).Str("channel", channel).Msg("📴 Client unsubscribed")

	default:
		log.Warn().Str("client", c.ID).Str("type", msg.Type).Msg("⚠️  Unknown message type")
	}
}

// sendJSON queues v on the client's send buffer
func (c *ClientConnection) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("client", c.ID).Msg("⚠️  Client send buffer full, skipping message")
	}
}

// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"slonstudy/internal/domain/spot"
	"slonstudy/internal/service/mapsync"
	"slonstudy/internal/service/session"
)

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	config    WebSocketConfig

	session          *session.Session
	natsSubscription *nats.Subscription
	unsubscribe      func()
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Time allowed for a client command to be applied
	CommandTimeout time.Duration
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
		CommandTimeout: 5 * time.Second,
	}
}

// WebSocketUpgrader is used to upgrade HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is a command sent by the client over the socket
type clientMessage struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	MarkerID string            `json:"marker_id,omitempty"`
	Index    int               `json:"index,omitempty"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Bounds   *spot.BoundingBox `json:"bounds,omitempty"`
}

// SessionWebSocketHandler streams a session's rendered views and accepts
// commands. With a NATS connection the stream follows the session's render
// subject; without one it observes the controller directly.
func SessionWebSocketHandler(manager *session.Manager, natsConn *nats.Conn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		s, err := manager.Get(sessionID)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Session not found", nil)
			return
		}

		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade to WebSocket: %v", err)
			return
		}

		client := &WebSocketClient{
			conn:    conn,
			send:    make(chan []byte, 256),
			done:    make(chan struct{}),
			config:  DefaultWebSocketConfig(),
			session: s,
		}

		// Subscribe before the pumps start so closeConnection always sees
		// the subscription
		if natsConn != nil {
			err = client.subscribeToRenders(natsConn, manager.RenderSubject(s.ID))
		} else {
			client.observeController()
		}
		if err != nil {
			log.Printf("Failed to subscribe to session renders: %v", err)
			client.closeConnection()
			return
		}

		go client.writePump()
		go client.readPump()

		welcomeJSON, _ := json.Marshal(map[string]interface{}{
			"type":       "welcome",
			"session_id": s.ID,
			"time":       time.Now(),
		})
		client.enqueue(welcomeJSON)

		log.Printf("New WebSocket connection for session %s", s.ID)

		client.sendCurrentView()
	}
}

// readPump reads commands from the WebSocket connection
func (c *WebSocketClient) readPump() {
	defer func() {
		c.closeConnection()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.processIncomingMessage(message)
	}
}

// writePump pumps queued messages to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// processIncomingMessage applies a client command to the session. The
// resulting view reaches the client through the render stream.
func (c *WebSocketClient) processIncomingMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Failed to parse WebSocket message: %v", err)
		c.sendError("invalid message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CommandTimeout)
	defer cancel()

	controller := c.session.Controller

	var err error
	switch msg.Type {
	case "viewport":
		if msg.Bounds != nil {
			if err := validateBoundingBox(*msg.Bounds); err != nil {
				c.sendError(err.Error())
				return
			}
		}
		_, err = controller.LoadViewport(ctx, msg.Bounds)

	case "search":
		_, err = controller.SetSearchText(ctx, msg.Text)

	case "tap_marker":
		_, err = controller.TapMarker(ctx, msg.MarkerID)

	case "tap_map":
		_, err = controller.TapMap(ctx)

	case "touch":
		_, err = controller.Touch(ctx, spot.Location{Latitude: msg.Lat, Longitude: msg.Lon})

	case "select_suggestion":
		_, err = controller.SelectSuggestion(ctx, msg.Index)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
		return
	}

	if err != nil {
		if errors.Is(err, mapsync.ErrStopped) {
			c.closeConnection()
			return
		}
		c.sendError(err.Error())
	}
}

// subscribeToRenders follows the session's render subject on NATS
func (c *WebSocketClient) subscribeToRenders(natsConn *nats.Conn, subject string) error {
	sub, err := natsConn.Subscribe(subject, func(msg *nats.Msg) {
		c.enqueue(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	c.natsSubscription = sub

	return nil
}

// observeController receives renders straight from the session controller
func (c *WebSocketClient) observeController() {
	sessionID := c.session.ID
	c.unsubscribe = c.session.Controller.Subscribe(func(view mapsync.View) {
		data, err := json.Marshal(session.NewRenderEvent(sessionID, view))
		if err != nil {
			log.Printf("Error marshaling render event for session %s: %v", sessionID, err)
			return
		}
		c.enqueue(data)
	})
}

// sendCurrentView sends the view as it is now, so the client can draw
// before the next render
func (c *WebSocketClient) sendCurrentView() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.CommandTimeout)
	defer cancel()

	view, err := c.session.Controller.Snapshot(ctx)
	if err != nil {
		log.Printf("Failed to snapshot session %s: %v", c.session.ID, err)
		return
	}

	data, _ := json.Marshal(session.NewRenderEvent(c.session.ID, view))
	c.enqueue(data)
}

func (c *WebSocketClient) sendError(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":  "error",
		"error": message,
		"time":  time.Now(),
	})
	c.enqueue(data)
}

// enqueue hands a message to the write pump without blocking the caller,
// which may be the controller loop or a NATS callback
func (c *WebSocketClient) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Printf("Dropping message for slow WebSocket client in session %s", c.session.ID)
	}
}

// closeConnection closes the WebSocket connection and cleans up resources
func (c *WebSocketClient) closeConnection() {
	c.closeOnce.Do(func() {
		if c.natsSubscription != nil {
			c.natsSubscription.Unsubscribe()
		}
		if c.unsubscribe != nil {
			c.unsubscribe()
		}

		close(c.done)
		c.conn.Close()

		log.Printf("WebSocket connection closed for session %s", c.session.ID)
	})
}

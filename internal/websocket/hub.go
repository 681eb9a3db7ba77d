package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/model"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
)

// Client is one socket subscribed to a job's updates
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job updates out to subscribed sockets. All map access happens on
// the Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
}

// BroadcastMessage is an encoded frame addressed to a job's subscribers
type BroadcastMessage struct {
	JobID   string `json:"jobId"`
	Message []byte `json:"message"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-h.register:
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]struct{})
			}
			h.clients[client.JobID][client] = struct{}{}
			log.Debug().Str("job_id", client.JobID).Msg("WebSocket client registered")

		case client := <-h.unregister:
			h.remove(client)
			log.Debug().Str("job_id", client.JobID).Msg("WebSocket client unregistered")

		case msg := <-h.broadcast:
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					log.Warn().Str("job_id", msg.JobID).Msg("Dropping slow WebSocket client")
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues an already encoded frame for jobID's subscribers.
func (h *Hub) Publish(jobID string, data []byte) {
	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

func (h *Hub) BroadcastProgress(jobID string, progress int, stage model.ProcessingStage, info string) {
	if data, ok := encodeProgress(jobID, progress, stage, info); ok {
		h.Publish(jobID, data)
	}
}

func (h *Hub) BroadcastComplete(jobID string, result interface{}) {
	if data, ok := encodeComplete(jobID, result); ok {
		h.Publish(jobID, data)
	}
}

func (h *Hub) BroadcastError(jobID, code, message string) {
	if data, ok := encodeError(jobID, code, message); ok {
		h.Publish(jobID, data)
	}
}

// HandleConnection serves one socket until the peer goes away.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBuffer),
	}

	h.Register(client)
	defer h.Unregister(client)

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("job_id", jobID).Msg("WebSocket read error")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			h.Publish(jobID, data)
		}
	}
}

func encodeProgress(jobID string, progress int, stage model.ProcessingStage, info string) ([]byte, bool) {
	return encode(model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Progress: progress,
		Stage:    stage,
		Info:     info,
	})
}

func encodeComplete(jobID string, result interface{}) ([]byte, bool) {
	return encode(model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

func encodeError(jobID, code, message string) ([]byte, bool) {
	return encode(model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{Code: code, Message: message},
	})
}

func encode(v interface{}) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return nil, false
	}
	return data, true
}

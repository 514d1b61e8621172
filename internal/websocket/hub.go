package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mrwill84/voice-web3/domain/repositories"
	"github.com/mrwill84/voice-web3/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active voice-surface clients and pushes
// orchestrator events (turns, state changes, interim transcripts, synthesized
// audio) to all of them.
type Hub struct {
	// Registered clients, keyed by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	orchestrator *usecase.Orchestrator
	validator    *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub wired to the conversation orchestrator.
func NewHub(orchestrator *usecase.Orchestrator, logger *zap.Logger) *Hub {
	hub := &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		orchestrator: orchestrator,
		validator:    NewMessageValidator(),
		logger:       logger,
	}
	orchestrator.AddListener(hub.onOrchestratorEvent)
	return hub
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.connID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("connID", client.connID),
				zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.connID]; ok {
				delete(h.clients, client.connID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("connID", client.connID))
		}
	}
}

// onOrchestratorEvent fans orchestrator events out to every client.
func (h *Hub) onOrchestratorEvent(event usecase.Event) {
	switch event.Type {
	case usecase.EventTurn:
		if event.Turn == nil {
			return
		}
		h.broadcastJSON(CreateTurnMessage(*event.Turn))
	case usecase.EventState:
		h.broadcastJSON(CreateStateMessage(event.State, event.ConfirmationMode, h.orchestrator.SessionID()))
	case usecase.EventInterim:
		h.broadcastJSON(&InterimMessage{
			BaseMessage: BaseMessage{
				Type:      MessageTypeInterim,
				Timestamp: time.Now().Format(time.RFC3339),
			},
			Text: event.Interim,
		})
	case usecase.EventSpeaking:
		go h.streamPlayback(event.Playback)
	}
}

// streamPlayback frames one synthesized utterance: speaking_start, the binary
// audio frames, speaking_end.
func (h *Hub) streamPlayback(handle repositories.PlaybackHandle) {
	if handle == nil {
		return
	}

	sessionID := h.orchestrator.SessionID()
	h.broadcastJSON(&SpeakingMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakingStart,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
	})

	for chunk := range handle.Audio() {
		h.broadcast(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
	}

	h.broadcastJSON(&SpeakingMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSpeakingEnd,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID: sessionID,
	})
}

func (h *Hub) broadcastJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (h *Hub) broadcast(data WriteData) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, dropping message",
				zap.String("connID", client.connID))
		}
	}
}

// ActiveConnections returns the ids of the registered clients.
func (h *Hub) ActiveConnections() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	connID string
	userID string

	// Logger
	logger *zap.Logger

	// The live capture this connection is feeding audio into. The capture
	// context must survive the listening_start handler; it is cancelled when
	// a new capture replaces it or the connection goes away.
	mutex         sync.Mutex
	capture       repositories.CaptureHandle
	captureCancel context.CancelFunc
}

// HandleWebSocket handles websocket requests with a pre-authenticated user.
func HandleWebSocket(hub *Hub, c echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		connID: uuid.NewString(),
		userID: userID,
		logger: logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.stopCapture()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages and typed utterances
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw microphone audio for the live capture
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches an inbound control message.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "Invalid message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd()
	case *UtteranceMessage:
		c.handleUtterance(msg)
	case *ResetMessage:
		c.handleReset()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// processBinaryAudioChunk feeds microphone audio into the live capture.
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	capture := c.capture
	c.mutex.Unlock()

	if capture == nil {
		c.logger.Debug("Audio chunk with no live capture, dropping",
			zap.String("connID", c.connID),
			zap.Int("size", len(data)))
		return
	}

	if err := capture.Feed(data); err != nil {
		c.logger.Error("Failed to feed audio data",
			zap.String("connID", c.connID),
			zap.Error(err))
	}
}

// handleListeningStart opens a voice capture through the orchestrator. The
// recognition stream outlives this handler, so the capture runs on a
// connection-owned context rather than a handler-scoped one.
func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	ctx, cancel := context.WithCancel(context.Background())

	handle, err := c.hub.orchestrator.StartListening(ctx, repositories.CaptureConfig{
		SampleRate: msg.SampleRate,
		Encoding:   msg.Encoding,
		Language:   msg.Language,
	})
	if err != nil {
		cancel()
		c.logger.Warn("Failed to start listening",
			zap.String("connID", c.connID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("listening_failed", "Failed to start listening", err.Error()))
		return
	}

	c.mutex.Lock()
	previousCancel := c.captureCancel
	c.capture = handle
	c.captureCancel = cancel
	c.mutex.Unlock()

	if previousCancel != nil {
		previousCancel()
	}

	c.logger.Info("Listening started",
		zap.String("connID", c.connID),
		zap.Int("sampleRate", msg.SampleRate),
		zap.String("language", msg.Language))

	c.sendJSON(&BaseMessage{
		Type:      MessageTypeListeningStart,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// handleListeningEnd closes the voice capture; the recognizer then emits its
// final transcript, which flows back as an utterance. The capture context
// stays alive so the recognizer can drain that final transcript.
func (c *Client) handleListeningEnd() {
	c.endCapture()

	c.sendJSON(&BaseMessage{
		Type:      MessageTypeListeningEnd,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// handleUtterance submits a typed utterance to the orchestrator.
func (c *Client) handleUtterance(msg *UtteranceMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := c.hub.orchestrator.SubmitUtterance(ctx, msg.Text); err != nil {
			c.logger.Warn("Utterance rejected",
				zap.String("connID", c.connID),
				zap.Error(err))
			c.sendJSON(CreateErrorMessage("utterance_rejected", "Utterance rejected", err.Error()))
		}
	}()
}

// handleReset starts a new conversation.
func (c *Client) handleReset() {
	c.stopCapture()
	sessionID := c.hub.orchestrator.Reset()

	c.sendJSON(CreateStateMessage(c.hub.orchestrator.State(), false, sessionID))
}

// endCapture stops feeding the capture but leaves its context intact for the
// final-transcript drain.
func (c *Client) endCapture() {
	c.mutex.Lock()
	capture := c.capture
	c.capture = nil
	c.mutex.Unlock()

	if capture != nil {
		capture.Stop()
	}
}

// stopCapture tears the capture down entirely, context included. Used on
// connection close and conversation reset.
func (c *Client) stopCapture() {
	c.mutex.Lock()
	capture := c.capture
	cancel := c.captureCancel
	c.capture = nil
	c.captureCancel = nil
	c.mutex.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Client) sendJSON(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message",
			zap.String("connID", c.connID))
	}
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/meridianhq/ragpipe/internal/core/domain"
	"github.com/meridianhq/ragpipe/internal/core/ports/driving"
)

// Ensure wsTurnSink implements the interface.
var _ driving.TurnSink = (*wsTurnSink)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser client is served from arbitrary hosts in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// inboundMessage is one client request on the chat socket.
type inboundMessage struct {
	Type         string   `json:"type"`
	Message      string   `json:"message"`
	SelectedDocs []string `json:"selected_docs"`
}

// Outbound chat events. Field names follow the browser protocol.
type contextEvent struct {
	Type    string                `json:"type"`
	Context domain.ContextSummary `json:"context"`
}

type startEvent struct {
	Type string `json:"type"`
}

type chunkEvent struct {
	Type  string `json:"type"`
	Chunk string `json:"chunk"`
}

type endEvent struct {
	Type         string `json:"type"`
	FullResponse string `json:"full_response"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsTurnSink serialises turn events onto one websocket connection.
// HandleTurn calls it from a single goroutine, so no write lock is
// needed.
type wsTurnSink struct {
	conn *websocket.Conn
}

func (w *wsTurnSink) Context(summary domain.ContextSummary) error {
	return w.conn.WriteJSON(contextEvent{Type: "context", Context: summary})
}

func (w *wsTurnSink) Start() error {
	return w.conn.WriteJSON(startEvent{Type: "response_start"})
}

func (w *wsTurnSink) Chunk(text string) error {
	return w.conn.WriteJSON(chunkEvent{Type: "response_chunk", Chunk: text})
}

func (w *wsTurnSink) End(fullText string) error {
	return w.conn.WriteJSON(endEvent{Type: "response_end", FullResponse: fullText})
}

func (w *wsTurnSink) Error(message string) error {
	return w.conn.WriteJSON(errorEvent{Type: "error", Message: message})
}

// handleChat upgrades the connection and processes chat turns until the
// client disconnects. Turns are strictly sequential per connection; a
// failed turn emits an error event and the loop continues.
func (s *Server) handleChat(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.Info("chat connection established")
	ctx := c.Request.Context()
	sink := &wsTurnSink{conn: conn}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("chat connection closed")
			}
			return
		}
		if msg.Type != "message" {
			if err := sink.Error("unsupported message type: " + msg.Type); err != nil {
				return
			}
			continue
		}

		if err := s.chat.HandleTurn(ctx, msg.Message, msg.SelectedDocs, sink); err != nil {
			// Transport-level failure: the connection is gone.
			s.log.WithError(err).Debug("chat turn aborted")
			return
		}
	}
}

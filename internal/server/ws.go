package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is CORS-open; the socket mirrors that.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleProgressSocket streams job records to a websocket client as they are
// published. There is no replay: a client that connects after the job
// finished gets no events and is expected to poll the progress endpoint
// instead. A text frame of "ping" is answered with "pong" so browser clients
// can keep intermediaries from idling the connection out.
func (s *Server) handleProgressSocket(c *gin.Context) {
	jobID := c.Param("job_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.log.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	sub := s.deps.Hub.Subscribe(jobID)
	defer sub.Unsubscribe()

	s.log.Debug("websocket client connected", "job_id", jobID)

	// Reader: detects disconnects and forwards ping frames. All writes
	// happen on the main loop; gorilla connections allow one writer only.
	readerDone := make(chan struct{})
	pings := make(chan struct{}, 1)
	go func() {
		defer close(readerDone)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && string(data) == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-pings:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		case rec, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(rec); err != nil {
				s.log.Debug("websocket write failed", "job_id", jobID, "error", err)
				return
			}
			if rec.Status.IsTerminal() {
				// Final record delivered; close cleanly so the client
				// does not wait for more.
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(rec.Status)))
				return
			}
		case <-readerDone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

package server

import (
	"encoding/json"
	"net/http"

	"financials-sync/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *StatusServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			s.stateMutex.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()
			return

		case client := <-s.register:
			s.stateMutex.Lock()
			s.clients[client] = struct{}{}
			s.stateMutex.Unlock()
			// Send current state on connect
			client.send <- s.statusMessage()

		case client := <-s.unregister:
			s.stateMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.stateMutex.Unlock()

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.stateMutex.Unlock()
		}
	}
}

// -----------------------------------------------------------------------------
// Progress Reporter Implementation
// -----------------------------------------------------------------------------

// Report folds the event into the run status and queues it for subscribers.
// Events are dropped rather than blocking the synchronizer.
func (s *StatusServer) Report(event models.MProgressEvent) {
	s.stateMutex.Lock()
	applyEvent(&s.status, event)
	s.stateMutex.Unlock()

	select {
	case s.broadcast <- &models.MStatusMessage{Type: models.MessageProgress, Event: &event}:
	default:
		s.Logger.Debug("Progress queue full, dropping %s event", event.Type)
	}
}

// -----------------------------------------------------------------------------

// applyEvent updates status in place.
func applyEvent(status *models.MRunStatus, event models.MProgressEvent) {
	switch event.Type {
	case models.ProgressRunStarted:
		status.Running = true
		status.Total = event.Total
		status.Processed = 0
		status.Succeeded = 0
		status.Current = ""
		status.StartedAt = event.Timestamp
		status.Failures = []models.MSyncUnit{}

	case models.ProgressUnitStarted:
		if event.Unit != nil {
			status.Current = event.Unit.Symbol
		}

	case models.ProgressUnitFinished:
		status.Processed++
		status.Current = ""
		if event.Unit == nil {
			return
		}
		if event.Unit.Succeeded {
			status.Succeeded++
			return
		}
		status.Failures = append(status.Failures, *event.Unit)
		if len(status.Failures) > maxRecentFailures {
			status.Failures = status.Failures[len(status.Failures)-maxRecentFailures:]
		}

	case models.ProgressRunFinished:
		status.Running = false
		status.Current = ""
		if event.Summary != nil {
			summary := *event.Summary
			status.LastSummary = &summary
		}
	}
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

// Snapshot returns a copy of the live run status.
func (s *StatusServer) Snapshot() models.MRunStatus {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	out := s.status
	out.Failures = append([]models.MSyncUnit{}, s.status.Failures...)
	if s.status.LastSummary != nil {
		summary := *s.status.LastSummary
		out.LastSummary = &summary
	}
	return out
}

// -----------------------------------------------------------------------------

func (s *StatusServer) statusMessage() *models.MStatusMessage {
	status := s.Snapshot()
	return &models.MStatusMessage{Type: models.MessageStatus, Status: &status}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *StatusServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MStatusMessage, 256),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage answers {"command": "status"} with the current status.
func (s *StatusServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "status" {
		return
	}

	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	if _, ok := s.clients[client]; !ok {
		return
	}

	// Use select to avoid blocking if client's send buffer is full
	select {
	case client.send <- s.statusMessageLocked():
	default:
	}
}

// -----------------------------------------------------------------------------

// statusMessageLocked is statusMessage for callers already holding stateMutex.
func (s *StatusServer) statusMessageLocked() *models.MStatusMessage {
	status := s.status
	status.Failures = append([]models.MSyncUnit{}, s.status.Failures...)
	return &models.MStatusMessage{Type: models.MessageStatus, Status: &status}
}

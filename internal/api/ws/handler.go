// Package ws streams tab events to websocket clients.
package ws

import (
	"net/http"
	"sync"
	"time"

	api "github.com/GriffinCanCode/ghostview/internal/api/http"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware governs browsers
	},
}

// Message is a client command.
type Message struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	manager *session.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *session.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger.Named("ws"),
	}
}

// HandleConnection upgrades the request and streams the tab's events until
// either side goes away.
func (h *Handler) HandleConnection(c *gin.Context) {
	tab, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	events, cancel := tab.Events().Subscribe()
	defer cancel()

	out := &writer{conn: conn, metrics: h.metrics}
	if err := out.send("snapshot", gin.H{"type": "snapshot", "tab": tab.Snapshot()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.read(conn, tab, out)
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := out.send(e.Type, e); err != nil {
				h.logger.Debug("websocket write failed", zap.String("tab", tab.ID()), zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) read(conn *websocket.Conn, tab *session.Tab, out *writer) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case "ping":
			_ = out.send("pong", gin.H{"type": "pong", "timestamp": time.Now().Unix()})
		case "load":
			if err := api.ValidateString(msg.URL, "url", api.MaxURLLength, true); err != nil {
				_ = out.sendError(err.Error())
				continue
			}
			tab.View.Load(msg.URL)
		case "reload":
			tab.View.Reload()
		case "stop":
			tab.View.Stop()
		case "exit_fullscreen":
			tab.ExitFullscreen()
		default:
			_ = out.sendError("unknown message type")
		}
	}
}

// writer serializes writes; gorilla connections allow one writer at a time.
type writer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

func (w *writer) send(msgType string, data interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(data); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.RecordWSMessage("out", msgType)
	}
	return nil
}

func (w *writer) sendError(msg string) error {
	return w.send("error", gin.H{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/api/middleware"
	"github.com/draftforge/draftforge/internal/stream"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// websocket timing parameters
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4096
)

// WSHandler streams generation progress events over a websocket
type WSHandler struct {
	hub      *stream.Hub
	auth     middleware.TokenValidator
	upgrader websocket.Upgrader
}

// NewWSHandler creates a websocket handler. origins is the CORS whitelist;
// browser connections from other origins are refused at upgrade time.
func NewWSHandler(hub *stream.Hub, auth middleware.TokenValidator, origins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle serves GET /ws/:client_id. The browser websocket API cannot set
// an Authorization header, so the token travels as a query parameter.
func (h *WSHandler) Handle(c *gin.Context) {
	clientID := c.Param("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    errors.ErrCodeValidation,
			"message": "client_id is required",
		})
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    errors.ErrCodeUnauthorized,
			"message": "token query parameter is required",
		})
		return
	}
	userID, _, err := h.auth.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    errors.ErrCodeUnauthorized,
			"message": "Invalid or expired token",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logger.Warn("websocket upgrade failed", zap.String("client_id", clientID), zap.Error(err))
		return
	}

	logger.Info("websocket connected",
		zap.String("client_id", clientID),
		zap.String("user_id", userID),
	)

	events := h.hub.Attach(clientID)
	defer h.hub.DetachChannel(clientID, events)
	defer conn.Close()

	// Read pump: the client sends nothing meaningful, reads exist to
	// observe pongs and connection close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Detached or replaced by a reconnect
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("websocket write failed", zap.String("client_id", clientID), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			logger.Info("websocket disconnected", zap.String("client_id", clientID))
			return
		}
	}
}

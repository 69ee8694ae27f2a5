package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ksingla1885/Mindora-sub003/internal/config"
	"github.com/ksingla1885/Mindora-sub003/internal/engine"
	"github.com/ksingla1885/Mindora-sub003/internal/middleware"
	"github.com/ksingla1885/Mindora-sub003/internal/service"
	ws "github.com/ksingla1885/Mindora-sub003/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler hosts one live attempt session per connection. The session
// controller owns the clock, the in-memory answers and the autosave
// scheduler; the socket is just its transport.
type WSHandler struct {
	attemptService *service.AttemptService
	cfg            *config.Config
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, cfg *config.Config, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		cfg:            cfg,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Upgrades to WebSocket and runs the attempt session live: answers, flags and
// navigation flow in; save confirmations, time warnings and the final result
// flow out.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	attempt, err := h.attemptService.VerifyOwner(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no attempt for this user"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(rawConn)
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()

	ctrl := engine.NewController(h.attemptService, attempt.TestID, claims.UserID, engine.ControllerConfig{
		Scheduler: engine.SchedulerConfig{
			Debounce:    h.cfg.AutosaveDebounce,
			MinInterval: h.cfg.AutosaveMinInterval,
			Backstop:    h.cfg.AutosaveBackstop,
		},
		SubmitFlushTimeout: h.cfg.SubmitFlushTimeout,
	}, h.log)
	defer ctrl.Close()

	if err := ctrl.Start(c.Request.Context()); err != nil {
		wsLog.Error().Err(err).Msg("Session start failed")
		conn.WriteError("failed to start session")
		return
	}

	wsLog.Info().Msg("Session connected")

	// Event pump: controller events become wire frames. Stops when the
	// connection goes away (pumpCtx) or the controller's channel drains.
	pumpCtx, stopPump := context.WithCancel(context.Background())
	defer stopPump()
	go func() {
		for {
			select {
			case <-pumpCtx.Done():
				return
			case ev := <-ctrl.Events():
				if err := conn.WriteTyped(ws.SessionEvent{Event: ws.EventSession, Session: ev}); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, ctrl, &msg)
		case ws.ActionFlag:
			h.handleFlag(conn, ctrl, &msg)
		case ws.ActionNavigate:
			h.handleNavigate(conn, ctrl, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, ctrl, wsLog)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong, RemainingSeconds: ctrl.RemainingSeconds()})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(conn *ws.Conn, ctrl *engine.Controller, msg *ws.RequestPayload) {
	questionID, err := msg.ParseQuestionID()
	if err != nil {
		conn.WriteError("invalid question_id format")
		return
	}
	if err := ctrl.SetAnswer(questionID, msg.Answer); err != nil {
		conn.WriteError(err.Error())
		return
	}
	conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionAnswer})
}

func (h *WSHandler) handleFlag(conn *ws.Conn, ctrl *engine.Controller, msg *ws.RequestPayload) {
	questionID, err := msg.ParseQuestionID()
	if err != nil {
		conn.WriteError("invalid question_id format")
		return
	}
	flagged, err := ctrl.ToggleFlag(questionID)
	if err != nil {
		conn.WriteError(err.Error())
		return
	}
	conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionFlag, Flagged: &flagged})
}

func (h *WSHandler) handleNavigate(conn *ws.Conn, ctrl *engine.Controller, msg *ws.RequestPayload) {
	if msg.Index < 0 {
		conn.WriteError("index must not be negative")
		return
	}
	if err := ctrl.Navigate(msg.Index); err != nil {
		conn.WriteError(err.Error())
		return
	}
	conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionNavigate})
}

func (h *WSHandler) handleSubmit(conn *ws.Conn, ctrl *engine.Controller, wsLog zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := ctrl.Submit(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.WriteError("submit failed, please retry")
		return
	}
	// The result reaches the client through the session event pump.
	conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionSubmit})
}

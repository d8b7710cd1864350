package handler

import (
	"context"
	"encoding/json"
	"time"

	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/service"
	internalWS "resonance-field-be/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// connectWait bounds how long a fresh connection may sit silent before
// sending its connect frame.
const connectWait = 10 * time.Second

// FieldWsHandler owns the websocket lifecycle of a participant: the
// connect handshake (capacity check, session creation, seeding the client
// with everyone already present), inbound command dispatch, heartbeat
// refresh on pong, and the disconnect cleanup when the socket ends.
type FieldWsHandler struct {
	sessions   service.ISessionService
	groups     service.IGroupService
	resonance  service.IResonanceService
	capacity   service.ICapacityService
	hub        *internalWS.Hub
	pingPeriod time.Duration
	validate   *validator.Validate
	logger     logger.ILogger
}

func NewFieldWsHandler(
	sessions service.ISessionService,
	groups service.IGroupService,
	resonance service.IResonanceService,
	capacity service.ICapacityService,
	hub *internalWS.Hub,
	pingPeriod time.Duration,
	log logger.ILogger,
) *FieldWsHandler {
	return &FieldWsHandler{
		sessions:   sessions,
		groups:     groups,
		resonance:  resonance,
		capacity:   capacity,
		hub:        hub,
		pingPeriod: pingPeriod,
		validate:   validator.New(),
		logger:     log,
	}
}

// ServeWs upgrades the connection and runs the session until it ends.
func (h *FieldWsHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.runSession(conn)
	})(c)
}

// snapshot is the seed state a joining client receives before incremental
// events start flowing, so no already-present peer is missed.
type snapshot struct {
	Self        *entity.Session            `json:"self"`
	Sessions    map[string]*entity.Session `json:"sessions"`
	Groups      map[string]*entity.Group   `json:"groups"`
	Connections []dto.ConnectionDTO        `json:"connections"`
	Capacity    service.CapacityStatus     `json:"capacity"`
}

func (h *FieldWsHandler) runSession(conn *websocket.Conn) {
	ctx := context.Background()

	// Handshake: the first frame must be a connect command.
	conn.SetReadDeadline(time.Now().Add(connectWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var cmd dto.Command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Action != dto.ActionConnect {
		h.writeError(conn, "first frame must be a connect command")
		return
	}
	var req dto.ConnectRequest
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			h.writeError(conn, "malformed connect payload")
			return
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(conn, err.Error())
		return
	}

	session, err := h.sessions.Connect(ctx, &req)
	if err != nil {
		h.writeError(conn, err.Error())
		return
	}
	sessionId := session.Id

	if err := h.writeSnapshot(ctx, conn, session); err != nil {
		h.logger.Warn("FieldWsHandler", "Snapshot write failed", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		h.sessions.Disconnect(ctx, sessionId)
		return
	}

	h.logger.Info("FieldWsHandler", "Starting field session", map[string]interface{}{"session_id": sessionId})
	internalWS.ServeWs(h.hub, conn, sessionId, h.pingPeriod,
		func(data []byte) { h.dispatch(ctx, sessionId, data) },
		func() { h.sessions.Touch(ctx, sessionId) },
		func() { h.sessions.Disconnect(ctx, sessionId) },
	)
	h.logger.Info("FieldWsHandler", "Field session ended", map[string]interface{}{"session_id": sessionId})
}

func (h *FieldWsHandler) writeSnapshot(ctx context.Context, conn *websocket.Conn, session *entity.Session) error {
	peers, err := h.sessions.ListAll(ctx, session.Id)
	if err != nil {
		return err
	}
	groups, err := h.groups.ListAll(ctx)
	if err != nil {
		return err
	}
	status, err := h.capacity.CheckCapacity(ctx)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(dto.Event{Type: dto.EventConnected, Data: snapshot{
		Self:        session,
		Sessions:    peers,
		Groups:      groups,
		Connections: h.resonance.Current(),
		Capacity:    status,
	}})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(connectWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (h *FieldWsHandler) dispatch(ctx context.Context, sessionId string, data []byte) {
	var cmd dto.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.sendError(sessionId, "malformed command")
		return
	}

	var err error
	switch cmd.Action {
	case dto.ActionHeartbeat:
		h.sessions.Touch(ctx, sessionId)

	case dto.ActionUpdate:
		var req dto.UpdateSessionRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			_, err = h.sessions.UpdateSelf(ctx, sessionId, &req)
		}

	case dto.ActionResonate:
		var req dto.ResonateRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			err = h.sessions.Resonate(ctx, sessionId, req.PeerId)
		}

	case dto.ActionUnresonate:
		var req dto.ResonateRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			err = h.sessions.Unresonate(ctx, sessionId, req.PeerId)
		}

	case dto.ActionGroupCreate:
		var req dto.GroupCreateRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			_, err = h.groups.Create(ctx, sessionId, req.TargetId)
		}

	case dto.ActionGroupAccept:
		var req dto.GroupActionRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			_, err = h.groups.AcceptInvite(ctx, sessionId, req.GroupId)
		}

	case dto.ActionGroupDecline:
		err = h.groups.DeclineInvite(ctx, sessionId)

	case dto.ActionGroupJoin:
		var req dto.GroupActionRequest
		if err = h.parse(cmd.Payload, &req); err == nil {
			_, err = h.groups.JoinOpen(ctx, sessionId, req.GroupId)
		}

	case dto.ActionGroupLeave:
		err = h.groups.Leave(ctx, sessionId)

	case dto.ActionListSessions:
		var peers map[string]*entity.Session
		if peers, err = h.sessions.ListAll(ctx, sessionId); err == nil {
			h.sendEvent(sessionId, dto.EventSessions, peers)
		}

	case dto.ActionCheckCapacity:
		var status service.CapacityStatus
		if status, err = h.capacity.CheckCapacity(ctx); err == nil {
			h.sendEvent(sessionId, dto.EventCapacity, status)
		}

	default:
		h.sendError(sessionId, "unknown action "+cmd.Action)
		return
	}

	// User-triggered failures go back to the caller; the UI presents them.
	if err != nil {
		h.logger.Warn("FieldWsHandler", "Command failed", map[string]interface{}{
			"session_id": sessionId,
			"action":     cmd.Action,
			"error":      err.Error(),
		})
		h.sendError(sessionId, err.Error())
	}
}

func (h *FieldWsHandler) parse(payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "missing payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed payload")
	}
	return h.validate.Struct(out)
}

func (h *FieldWsHandler) sendEvent(sessionId, eventType string, data interface{}) {
	frame, err := json.Marshal(dto.Event{Type: eventType, Data: data})
	if err != nil {
		return
	}
	h.hub.Send(sessionId, frame)
}

func (h *FieldWsHandler) sendError(sessionId, message string) {
	h.sendEvent(sessionId, dto.EventError, fiber.Map{"message": message})
}

// writeError is for failures before the session exists in the hub.
func (h *FieldWsHandler) writeError(conn *websocket.Conn, message string) {
	frame, _ := json.Marshal(dto.Event{Type: dto.EventError, Data: fiber.Map{"message": message}})
	conn.SetWriteDeadline(time.Now().Add(connectWait))
	conn.WriteMessage(websocket.TextMessage, frame)
}

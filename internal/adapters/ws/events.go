package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

func (ctl *Controller) handleEvent(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad json")
		ctl.sendError(c, core.ErrProtocol)
		return
	}

	switch env.Type {
	case "identify":
		ctl.handleIdentify(ctx, connID, c, data)
	case "join-room":
		ctl.handleJoinRoom(connID, c, data)
	case "leave-room":
		ctl.handleLeaveRoom(connID, c, data)
	case "send-message":
		ctl.handleSendMessage(ctx, connID, c, data)
	case "propose-reschedule":
		ctl.handleProposeReschedule(ctx, connID, c, data)
	case "accept-reschedule":
		ctl.handleAcceptReschedule(ctx, connID, c, data)
	case "decline-reschedule":
		ctl.handleDeclineReschedule(ctx, connID, c, data)
	case "withdraw-reschedule":
		ctl.handleWithdrawReschedule(ctx, connID, c, data)
	case "ping":
		ctl.sendJSON(c, map[string]string{"type": "pong"})
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, core.ErrProtocol)
	}
}

// decode unmarshals and validates an event payload. A failure is a
// protocol error frame to the sender; the connection stays open.
func (ctl *Controller) decode(c *wsConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad payload")
		ctl.sendError(c, core.ErrProtocol)
		return false
	}
	if err := ctl.validate.Struct(v); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("invalid payload")
		ctl.sendError(c, core.ErrProtocol)
		return false
	}
	return true
}

func (ctl *Controller) handleIdentify(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		UserID   string `json:"user_id" validate:"required,max=64"`
		Username string `json:"username"`
	}
	if !ctl.decode(c, data, &p) {
		return
	}
	user, err := domain.NewUser(domain.UserID(p.UserID), p.Username)
	if err != nil {
		ctl.sendError(c, fmt.Errorf("%w: %s", core.ErrProtocol, err))
		return
	}

	if err := ctl.Registry.Identify(connID, user.ID); err != nil {
		ctl.sendError(c, err)
		return
	}

	// Join every conversation the user participates in, so messages reach
	// this connection without an explicit open. The store call runs before
	// any further registry mutation and holds no registry lock.
	rooms, err := ctl.Chat.RoomsFor(ctx, user.ID)
	if err != nil {
		ctl.sendError(c, err)
		return
	}
	for _, room := range rooms {
		if err := ctl.Registry.Join(connID, room); err != nil {
			ctl.sendError(c, err)
			return
		}
	}

	ctl.sendJSON(c, struct {
		Type  string          `json:"type"`
		User  *domain.User    `json:"user"`
		Rooms []domain.RoomID `json:"rooms"`
	}{Type: "identified", User: user, Rooms: rooms})
	log.Info().Str("module", "ws").Str("conn", string(connID)).Str("user", string(user.ID)).Str("username", user.Username).Int("rooms", len(rooms)).Msg("identified")
}

func (ctl *Controller) handleJoinRoom(connID core.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room" validate:"required,max=64"`
	}
	if !ctl.decode(c, data, &p) {
		return
	}
	if err := ctl.Registry.Join(connID, domain.RoomID(p.Room)); err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]string{"type": "joined", "room": p.Room})
}

func (ctl *Controller) handleLeaveRoom(connID core.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room" validate:"required,max=64"`
	}
	if !ctl.decode(c, data, &p) {
		return
	}
	if err := ctl.Registry.Leave(connID, domain.RoomID(p.Room)); err != nil {
		ctl.sendError(c, err)
		return
	}
	ctl.sendJSON(c, map[string]string{"type": "left", "room": p.Room})
}

func (ctl *Controller) handleSendMessage(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type         string `json:"type"`
		Conversation string `json:"conversation" validate:"required,max=64"`
		Body         string `json:"body" validate:"required,max=4096"`
	}
	if !ctl.decode(c, data, &p) {
		return
	}
	sender, ok := ctl.Registry.UserOf(connID)
	if !ok {
		ctl.sendError(c, core.ErrProtocol)
		return
	}
	if !ctl.limiter.Allow(sender) {
		log.Warn().Str("module", "ws").Str("user", string(sender)).Msg("message rate limit hit")
		ctl.sendError(c, core.ErrProtocol)
		return
	}
	if _, err := ctl.Chat.Send(ctx, sender, domain.ConversationID(p.Conversation), p.Body); err != nil {
		ctl.sendError(c, err)
	}
}

type reschedulePayload struct {
	Type    string `json:"type"`
	Booking string `json:"booking" validate:"required,max=64"`
}

func (ctl *Controller) handleProposeReschedule(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Booking  string `json:"booking" validate:"required,max=64"`
		Date     string `json:"date" validate:"required"`
		Timeslot string `json:"timeslot" validate:"required"`
	}
	if !ctl.decode(c, data, &p) {
		return
	}
	actor, ok := ctl.Registry.UserOf(connID)
	if !ok {
		ctl.sendError(c, core.ErrProtocol)
		return
	}
	if _, err := ctl.Scheduler.Propose(ctx, domain.BookingID(p.Booking), actor, p.Date, p.Timeslot); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) handleAcceptReschedule(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	ctl.resolveReschedule(ctx, connID, c, data, ctl.Scheduler.Accept)
}

func (ctl *Controller) handleDeclineReschedule(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	ctl.resolveReschedule(ctx, connID, c, data, ctl.Scheduler.Decline)
}

func (ctl *Controller) handleWithdrawReschedule(ctx context.Context, connID core.ConnID, c *wsConn, data []byte) {
	ctl.resolveReschedule(ctx, connID, c, data, ctl.Scheduler.Withdraw)
}

func (ctl *Controller) resolveReschedule(
	ctx context.Context,
	connID core.ConnID,
	c *wsConn,
	data []byte,
	op func(context.Context, domain.BookingID, domain.UserID) (*domain.Booking, error),
) {
	var p reschedulePayload
	if !ctl.decode(c, data, &p) {
		return
	}
	actor, ok := ctl.Registry.UserOf(connID)
	if !ok {
		ctl.sendError(c, core.ErrProtocol)
		return
	}
	if _, err := op(ctx, domain.BookingID(p.Booking), actor); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a failed event to the originating connection only.
func (ctl *Controller) sendError(c *wsConn, err error) {
	ctl.sendJSON(c, struct {
		Type  string `json:"type"`
		Code  string `json:"code"`
		Error string `json:"error"`
	}{Type: "error", Code: errorCode(err), Error: err.Error()})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, core.ErrProtocol):
		return "protocol_error"
	default:
		return "internal"
	}
}

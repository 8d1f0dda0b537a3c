package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyglotte/relay/internal/adapters/store/memory"
	"github.com/polyglotte/relay/internal/app"
	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

type wsFixture struct {
	ctl   *Controller
	store *memory.Store
}

func newWSFixture(t *testing.T, msgRate int) *wsFixture {
	t.Helper()
	store := memory.New()
	registry := app.NewRegistry()
	bcast := app.NewBroadcaster(registry)
	notifier := app.NewNotifier(store, registry, bcast)
	chat := app.NewChat(store, registry, bcast, notifier)
	scheduler := app.NewRescheduler(store, notifier, bcast)
	return &wsFixture{
		ctl:   NewController(registry, chat, scheduler, msgRate, time.Minute, 32768),
		store: store,
	}
}

// connect registers an outbound half with no socket behind it; handlers
// only ever push frames into its send channel.
func (f *wsFixture) connect() (core.ConnID, *wsConn) {
	c := newWsConn(nil, 16)
	return f.ctl.Registry.Register(c), c
}

type frame struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Room string `json:"room"`

	User  *domain.User    `json:"user"`
	Rooms []domain.RoomID `json:"rooms"`
}

// drain decodes every frame buffered on the connection.
func drain(t *testing.T, c *wsConn) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case data := <-c.send:
			var fr frame
			require.NoError(t, json.Unmarshal(data, &fr))
			out = append(out, fr)
		default:
			return out
		}
	}
}

func send(t *testing.T, f *wsFixture, id core.ConnID, c *wsConn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f.ctl.handleEvent(context.Background(), id, c, data)
}

func TestHandleEvent_IdentifyJoinsConversations(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "identify", "user_id": "alice", "username": "Alice B"})

	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("identified", frames[0].Type)
	req.Equal(&domain.User{ID: "alice", Username: "Alice B"}, frames[0].User)
	req.Equal([]domain.RoomID{domain.ConversationRoom(conv.ID)}, frames[0].Rooms)

	room := domain.ConversationRoom(conv.ID)
	req.Contains(f.ctl.Registry.MembersOf(room), id)
	req.Contains(f.ctl.Registry.MembersOf(domain.PersonalRoom("alice")), id)
}

func TestHandleEvent_IdentifyRejectsOverlongUsername(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{
		"type": "identify", "user_id": "alice",
		"username": strings.Repeat("x", domain.MaxUsernameLen+1),
	})

	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("error", frames[0].Type)
	req.Equal("protocol_error", frames[0].Code)
	_, ok := f.ctl.Registry.UserOf(id)
	req.False(ok)
}

func TestHandleEvent_JoinBeforeIdentify(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "join-room", "room": "conv-1"})

	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("error", frames[0].Type)
	req.Equal("protocol_error", frames[0].Code)
	req.Empty(f.ctl.Registry.MembersOf("conv-1"))

	// After identifying, the same join succeeds.
	send(t, f, id, c, map[string]string{"type": "identify", "user_id": "alice"})
	send(t, f, id, c, map[string]string{"type": "join-room", "room": "conv-1"})
	frames = drain(t, c)
	req.Len(frames, 2)
	req.Equal("joined", frames[1].Type)
	req.Equal("conv-1", frames[1].Room)
	req.Contains(f.ctl.Registry.MembersOf("conv-1"), id)
}

func TestHandleEvent_MalformedAndUnknown(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)

	id, c := f.connect()
	f.ctl.handleEvent(context.Background(), id, c, []byte("{not json"))
	send(t, f, id, c, map[string]string{"type": "teleport"})
	// Payload validation failure is also a protocol error, not a close.
	send(t, f, id, c, map[string]string{"type": "identify"})

	frames := drain(t, c)
	req.Len(frames, 3)
	for _, fr := range frames {
		req.Equal("error", fr.Type)
		req.Equal("protocol_error", fr.Code)
	}
}

func TestHandleEvent_SendMessageReachesViewer(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "identify", "user_id": "alice"})
	drain(t, c)

	send(t, f, id, c, map[string]string{
		"type": "send-message", "conversation": string(conv.ID), "body": "hola",
	})

	// Identify auto-joined the conversation room, so the sender sees the
	// broadcast echo.
	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("new-message", frames[0].Type)

	msgs, err := f.store.MessagesOf(ctx, conv.ID)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("hola", msgs[0].Body)
}

func TestHandleEvent_SendMessageRateLimited(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 1)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx, []domain.UserID{"alice", "bob"})
	req.NoError(err)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "identify", "user_id": "alice"})
	drain(t, c)

	msg := map[string]string{"type": "send-message", "conversation": string(conv.ID), "body": "hola"}
	send(t, f, id, c, msg)
	send(t, f, id, c, msg)

	frames := drain(t, c)
	req.Len(frames, 2)
	req.Equal("new-message", frames[0].Type)
	req.Equal("error", frames[1].Type)
	req.Equal("protocol_error", frames[1].Code)

	msgs, err := f.store.MessagesOf(ctx, conv.ID)
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestHandleEvent_RescheduleErrorCodes(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "identify", "user_id": "alice"})
	drain(t, c)

	send(t, f, id, c, map[string]string{"type": "accept-reschedule", "booking": "missing"})

	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("error", frames[0].Type)
	req.Equal("not_found", frames[0].Code)
}

func TestHandleEvent_RescheduleRoundTrip(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)
	ctx := context.Background()

	b := &domain.Booking{Teacher: "teacher", Student: "student", Date: "2025-01-03", Timeslot: "10:00"}
	req.NoError(f.store.CreateBooking(ctx, b))

	sid, sc := f.connect()
	tid, tc := f.connect()
	send(t, f, sid, sc, map[string]string{"type": "identify", "user_id": "student"})
	send(t, f, tid, tc, map[string]string{"type": "identify", "user_id": "teacher"})
	drain(t, sc)
	drain(t, tc)

	send(t, f, sid, sc, map[string]string{
		"type": "propose-reschedule", "booking": string(b.ID),
		"date": "2025-01-10", "timeslot": "14:00",
	})
	send(t, f, tid, tc, map[string]string{"type": "accept-reschedule", "booking": string(b.ID)})

	got, err := f.store.GetBooking(ctx, b.ID)
	req.NoError(err)
	req.Equal("2025-01-10", got.Date)
	req.Equal(domain.RescheduleAccepted, got.RescheduleStatus())

	// Both parties saw both transitions on their personal rooms.
	studentTypes := typesOf(drain(t, sc))
	req.Contains(studentTypes, "booking-updated")
	req.Contains(studentTypes, "new-notification")
	req.Contains(typesOf(drain(t, tc)), "booking-updated")
}

func typesOf(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, fr := range frames {
		out = append(out, fr.Type)
	}
	return out
}

func TestHandleEvent_Ping(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t, 20)

	id, c := f.connect()
	send(t, f, id, c, map[string]string{"type": "ping"})

	frames := drain(t, c)
	req.Len(frames, 1)
	req.Equal("pong", frames[0].Type)
}

func TestErrorCode_Taxonomy(t *testing.T) {
	req := require.New(t)

	req.Equal("illegal_transition", errorCode(core.ErrIllegalTransition))
	req.Equal("not_found", errorCode(core.ErrNotFound))
	req.Equal("store_unavailable", errorCode(core.ErrStoreUnavailable))
	req.Equal("protocol_error", errorCode(core.ErrProtocol))
	req.Equal("internal", errorCode(errors.New("disk on fire")))
}

package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/app"
	"github.com/polyglotte/relay/internal/core"
)

const sendBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket endpoint: one read pump and one write
// pump per connection, events dispatched to the app layer.
type Controller struct {
	Registry  *app.Registry
	Chat      *app.Chat
	Scheduler *app.Rescheduler

	validate  *validator.Validate
	limiter   *MessageRateLimiter
	readLimit int64
}

func NewController(registry *app.Registry, chat *app.Chat, scheduler *app.Rescheduler, msgRate int, msgWindow time.Duration, readLimit int64) *Controller {
	return &Controller{
		Registry:  registry,
		Chat:      chat,
		Scheduler: scheduler,
		validate:  validator.New(),
		limiter:   NewMessageRateLimiter(msgRate, msgWindow),
		readLimit: readLimit,
	}
}

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)

	conn := newWsConn(ws, sendBuffer)
	connID := ctl.Registry.Register(conn)
	log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, connID core.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(connID)).Msg("readPump closing")
		// Disconnect only clears in-memory membership; in-flight store
		// operations are not cancelled by it.
		ctl.Registry.Unregister(connID)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(ctx, connID, c, data)
		}
	}
}

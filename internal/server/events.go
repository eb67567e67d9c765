package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jwtly10/compactbook/internal/playground"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsInbound struct {
	Type  string `json:"type"`
	Block int    `json:"block"`
}

type eventsOutbound struct {
	Type    string            `json:"type"`
	Session string            `json:"session,omitempty"`
	Event   *playground.Event `json:"event,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Events streams the lifecycle events of a session over a websocket.
//
// The client may also send {"type":"run","block":N} to start a run, its progress is
// reported on the same stream.
func (s *Server) Events(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}

	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("events upgrade failed", "session", session.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		slog.Warn("events set read deadline failed", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})

	events, unsubscribe := session.events.Subscribe()
	defer unsubscribe()

	writeCh := make(chan eventsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					// session evicted
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
						time.Now().Add(eventsWriteWait))
					cancel()
					return
				}
				if err := write(conn, eventsOutbound{Type: "event", Event: &e}); err != nil {
					return
				}
			case out := <-writeCh:
				if err := write(conn, out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push(writeCh, eventsOutbound{Type: "subscribed", Session: session.ID.String()})

	for {
		var in eventsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("events connection closed", "session", session.ID, "error", err)
			}
			break
		}

		switch in.Type {
		case "run":
			block, ok := session.Block(in.Block)
			if !ok {
				push(writeCh, eventsOutbound{Type: "error", Message: "block not found"})
				continue
			}
			go func() {
				if _, err := block.Run(ctx); err != nil {
					push(writeCh, eventsOutbound{Type: "error", Message: err.Error()})
				}
			}()
		default:
			push(writeCh, eventsOutbound{Type: "error", Message: "unsupported type: " + in.Type})
		}
	}

	cancel()
	<-writerDone
}

func write(conn *websocket.Conn, out eventsOutbound) error {
	if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(out)
}

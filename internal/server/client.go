package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"ladder-tracker/internal/service"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. views is only touched by the hub loop.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan service.Notice
	views map[string]struct{}
}

type clientCommand struct {
	Command string `json:"command"`
	ViewID  string `json:"viewId"`
}

func (c *Client) wants(viewID string) bool {
	if len(c.views) == 0 {
		return true
	}
	_, ok := c.views[viewID]
	return ok
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Debug().Err(err).Msg("invalid client command, disconnecting")
			return
		}
		if cmd.Command != "subscribe" || cmd.ViewID == "" {
			continue
		}
		select {
		case c.hub.subscribe <- subscription{client: c, viewID: cmd.ViewID}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(n); err != nil {
				c.hub.logger.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

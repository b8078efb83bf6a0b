/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/livequiz/chatlog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFeedMessage = 512
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: timeout,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type feedClient struct {
	id       string
	identity string
	token    string
	conn     *websocket.Conn
	send     chan chatlog.Message
}

// feed pushes each new chat message to connected websocket clients, dropping
// any whose session is no longer authorized.
type feed struct {
	cfg     *Config
	allowed func(identity, token string) bool

	mu      sync.Mutex
	clients map[*feedClient]struct{}

	register chan *feedClient
	unreg    chan *feedClient
	messages chan chatlog.Message
	done     chan struct{}
}

func newFeed(cfg *Config, allowed func(identity, token string) bool) *feed {
	return &feed{
		cfg:      cfg,
		allowed:  allowed,
		clients:  make(map[*feedClient]struct{}),
		register: make(chan *feedClient),
		unreg:    make(chan *feedClient),
		messages: make(chan chatlog.Message, 64),
		done:     make(chan struct{}),
	}
}

func (f *feed) run(ctx context.Context) {
	defer func() {
		close(f.done)
		f.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-f.register:
			f.mu.Lock()
			f.clients[c] = struct{}{}
			f.mu.Unlock()

			logf(f.cfg, "CHAT: Feed client %s connected for (%s, %s)", c.id, c.identity, c.token)

		case c := <-f.unreg:
			f.drop(c)

		case m := <-f.messages:
			f.broadcast(m)
		}
	}
}

func (f *feed) drop(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)

		logf(f.cfg, "CHAT: Feed client %s disconnected", c.id)
	}
}

func (f *feed) broadcast(m chatlog.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.clients {
		if !f.allowed(c.identity, c.token) {
			delete(f.clients, c)
			close(c.send)

			continue
		}

		select {
		case c.send <- m:
		default:
			// Too slow to keep up.
			delete(f.clients, c)
			close(c.send)
		}
	}
}

// publish queues m for delivery. The feed is best effort, so a full queue
// drops the message rather than blocking the chat request.
func (f *feed) publish(m chatlog.Message) {
	select {
	case f.messages <- m:
	default:
		logf(f.cfg, "CHAT: Feed queue full, dropped message")
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(f.clients, c)
	}
}

func (f *feed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.clients)
}

func (c *feedClient) readPump(f *feed) {
	defer func() {
		select {
		case f.unreg <- c:
		case <-f.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFeedMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only listen; anything they send is discarded.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteJSON(m); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func serveFeed(cfg *Config, a *app, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		identity := clientIP(r)
		token := r.URL.Query().Get("rid")

		if token == "" || !a.store.IsBroadcastLive() {
			if _, err := writeForbidden(cfg, w, chatForbidden); err != nil {
				errs <- err
			}

			return
		}

		if !a.store.IsSessionAuthorized(identity, token) {
			if _, err := writeJSON(cfg, w, chatResponse{Status: statusNope}); err != nil {
				errs <- err
			}

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			logf(cfg, "CHAT: Feed upgrade failed for %s: %v", identity, err)

			return
		}

		c := &feedClient{
			id:       uuid.NewString(),
			identity: identity,
			token:    token,
			conn:     conn,
			send:     make(chan chatlog.Message, 16),
		}

		select {
		case a.feed.register <- c:
		case <-a.feed.done:
			_ = conn.Close()

			return
		}

		go c.writePump()
		c.readPump(a.feed)
	}
}

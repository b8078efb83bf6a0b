/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Seednode/livequiz/chatlog"
	"github.com/julienschmidt/httprouter"
)

const maxChatBody = 64 << 10

const (
	statusOkay = "Okay"
	statusNope = "Nope"
)

type chatRequest struct {
	Action string   `json:"action"`
	Name   string   `json:"name"`
	Chat   string   `json:"chat"`
	Prev   *float64 `json:"prev"`
	Next   *float64 `json:"next"`
}

type audienceInfo struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type chatResponse struct {
	Status    string             `json:"status,omitempty"`
	Name      *string            `json:"name,omitempty"`
	Messages  *[]chatlog.Message `json:"chatmsgs,omitempty"`
	Audiences *audienceInfo      `json:"audiences,omitempty"`
}

func okay(ok bool) string {
	if ok {
		return statusOkay
	}
	return statusNope
}

// messages keeps an empty page in the response as [] rather than dropping it.
func messages(msgs []chatlog.Message) *[]chatlog.Message {
	return &msgs
}

func optional(s string, ok bool) *string {
	if !ok {
		return nil
	}
	return &s
}

// syncDisplayName copies the client's chat name into its session. A session
// recreated after eviction starts without one while the chat log keeps it.
func syncDisplayName(cfg *Config, a *app, identity, token string) {
	name, ok := a.chat.Name(identity, token)
	if !ok {
		return
	}

	if v, found := a.store.Lookup(identity, token); found && v.DisplayName == name {
		return
	}

	if err := a.store.SetDisplayName(identity, token, name); err != nil {
		logf(cfg, "CHAT: Unable to set display name %q for (%s, %s): %v", name, identity, token, err)
	}
}

func serveChat(cfg *Config, a *app, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		identity := clientIP(r)
		token := r.URL.Query().Get("rid")

		forbid := func() {
			if _, err := writeForbidden(cfg, w, chatForbidden); err != nil {
				errs <- err
			}
		}

		if token == "" || !a.store.IsBroadcastLive() {
			forbid()

			return
		}

		if !a.store.IsSessionAuthorized(identity, token) {
			if _, err := writeJSON(cfg, w, chatResponse{Status: statusNope}); err != nil {
				errs <- err
			}

			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody))
		if err != nil {
			errs <- err
			forbid()

			return
		}

		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			forbid()

			return
		}

		var resp chatResponse

		switch req.Action {
		case "hello":
			syncDisplayName(cfg, a, identity, token)
			resp.Status = statusOkay
			resp.Name = optional(a.chat.Name(identity, token))
			resp.Messages = messages(a.chat.From(-1, false))

		case "setname":
			ok := a.chat.SetName(identity, token, req.Name)
			if ok {
				logf(cfg, "CHAT: (%s, %s) is now %q", identity, token, req.Name)
			}
			syncDisplayName(cfg, a, identity, token)
			resp.Status = okay(ok)
			resp.Name = optional(a.chat.Name(identity, token))

		case "setlivename":
			err := a.store.SetLabel(identity, token, req.Name)
			if err == nil {
				logf(cfg, "PUBLISH: (%s, %s) renamed the broadcast to %q", identity, token, req.Name)
			}
			resp.Status = okay(err == nil)
			resp.Name = optional(a.store.CurrentLabel())

		case "getchat":
			switch {
			case req.Prev != nil:
				resp.Messages = messages(a.chat.From(*req.Prev, true))
			case req.Next != nil:
				resp.Messages = messages(a.chat.From(*req.Next, false))
			default:
				forbid()

				return
			}
			resp.Status = statusOkay

		case "sendchat":
			m := a.chat.Append(identity, token, req.Chat, a.store.IsPublisher(identity, token))
			a.metrics.chats.Inc()
			a.feed.publish(m)
			resp.Status = statusOkay

		case "getaudiences":
			resp.Status = statusOkay
			resp.Audiences = &audienceInfo{
				Current: a.audience.Current(),
				Total:   a.chat.Size(),
			}

		case "savesnapshot":
			if !a.store.IsPublisher(identity, token) {
				resp.Status = statusNope

				break
			}

			path, err := a.chat.Snapshot(cfg.dumps)
			if err != nil {
				errs <- err
				resp.Status = statusNope

				break
			}

			logf(cfg, "CHAT: (%s, %s) saved a snapshot to %s", identity, token, path)
			resp.Status = statusOkay

		default:
			forbid()

			return
		}

		written, err := writeJSON(cfg, w, resp)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Chat %s (%s) to %s in %s",
			req.Action,
			humanReadableSize(written),
			identity,
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

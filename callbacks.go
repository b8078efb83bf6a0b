/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Seednode/livequiz/access"
	"github.com/julienschmidt/httprouter"
)

const maxCallbackBody = 16 << 10

// callback is the body the media server posts for each stream event.
type callback struct {
	Action string `json:"action"`
	IP     string `json:"ip"`
	App    string `json:"app"`
	Stream string `json:"stream"`
	Param  string `json:"param"`
}

// parseParam splits the query string the media server forwards from the
// client url. Players sometimes append a second query string, so each value
// is cut at its first '?'.
func parseParam(param string) map[string]string {
	values := make(map[string]string)

	for pair := range strings.SplitSeq(strings.TrimPrefix(param, "?"), "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		value, _, _ = strings.Cut(value, "?")
		values[key] = value
	}

	return values
}

func sessionParam(values map[string]string) string {
	if id, ok := values["session_id"]; ok {
		return id
	}
	return values["rid"]
}

func onPublish(cfg *Config, a *app, cb callback) bool {
	values := parseParam(cb.Param)

	secret, ok := values["secret"]
	if !ok {
		logf(cfg, "PUBLISH: Refused %s, no secret given", cb.IP)

		return false
	}

	public := strings.EqualFold(values["public"], "true")

	result := a.store.Publish(secret, cb.App, cb.Stream, cb.IP, public)
	a.metrics.publishes.WithLabelValues(result.String()).Inc()

	logf(cfg, "PUBLISH: %s from %s (app=%s, stream=%s, public=%t)", result, cb.IP, cb.App, cb.Stream, public)

	// A resumed push may switch public mode by carrying the parameter again.
	if _, given := values["public"]; given && result == access.PublishResumed {
		if err := a.store.SetPublicMode(public); err != nil {
			logf(cfg, "PUBLISH: Unable to set public mode for %s: %v", cb.IP, err)
		}
	}

	return result != access.PublishRefused
}

func onPlay(cfg *Config, a *app, cb callback) bool {
	token := sessionParam(parseParam(cb.Param))
	if token == "" {
		return false
	}

	authorized, err := a.store.MarkPlayback(cb.IP, token, true)
	if err != nil || !authorized {
		a.metrics.plays.WithLabelValues("refused").Inc()
		logf(cfg, "VIEWER: Refused playback for (%s, %s)", cb.IP, token)

		return false
	}

	a.metrics.plays.WithLabelValues("started").Inc()

	return true
}

func onStop(cfg *Config, a *app, cb callback) bool {
	token := sessionParam(parseParam(cb.Param))
	if token == "" {
		return true
	}

	if ok, _ := a.store.MarkPlayback(cb.IP, token, false); ok {
		a.metrics.plays.WithLabelValues("stopped").Inc()
		logf(cfg, "VIEWER: (%s, %s) stopped playback", cb.IP, token)
	}

	return true
}

func onUnpublish(cfg *Config, a *app, cb callback) bool {
	if a.store.Interrupt() {
		a.metrics.publishes.WithLabelValues("interrupted").Inc()
		logf(cfg, "PUBLISH: %s stopped pushing, awaiting resume", cb.IP)
	}

	return true
}

var callbacks = map[string]func(*Config, *app, callback) bool{
	"on_publish":   onPublish,
	"on_unpublish": onUnpublish,
	"on_play":      onPlay,
	"on_stop":      onStop,
}

func serveCallback(cfg *Config, a *app, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		allowed := false

		var cb callback
		if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&cb); err == nil {
			if handle, ok := callbacks[cb.Action]; ok {
				allowed = handle(cfg, a, cb)
			} else {
				logf(cfg, "SERVE: Unknown callback %q from %s", cb.Action, cb.IP)
			}
		}

		status, body := http.StatusOK, callbackAllowed
		if !allowed {
			status, body = http.StatusForbidden, callbackRefused
		}

		if _, err := writeText(cfg, w, status, body); err != nil {
			errs <- err
		}
	}
}

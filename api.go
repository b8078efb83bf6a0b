/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/livequiz/access"
	"github.com/julienschmidt/httprouter"
)

// Answers with this prefix are publisher secrets, not quiz answers.
const secretPrefix = "secret_"

type apiResponse struct {
	StreamName   string `json:"stream_name,omitempty"`
	VideoURI     string `json:"video_uri,omitempty"`
	Question     string `json:"question,omitempty"`
	IsPublisher  bool   `json:"is_publisher,omitempty"`
	StreamStatus string `json:"stream_status,omitempty"`
}

func (r *apiResponse) grant(g access.Grant) {
	r.Question = g.Question
	r.VideoURI = g.Locator
	r.IsPublisher = g.Publisher
}

type apiError struct {
	Error string `json:"error"`
}

func answerResult(g access.Grant, publisher bool) string {
	switch {
	case g.Authorized && publisher:
		return "publisher"
	case g.Authorized:
		return "correct"
	case publisher:
		return "bad_secret"
	default:
		return "wrong"
	}
}

func serveAPI(cfg *Config, a *app, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		q := r.URL.Query()
		identity := clientIP(r)
		token := q.Get("session_id")

		forbid := func() {
			if _, err := writeForbidden(cfg, w, apiForbidden); err != nil {
				errs <- err
			}
		}

		if token == "" {
			forbid()

			return
		}

		var resp apiResponse
		if label, ok := a.store.CurrentLabel(); ok {
			resp.StreamName = label
		}

		switch {
		case q.Get("action") == "connect":
			g := a.store.Connect(identity, token)
			if g.Issued {
				a.metrics.challenges.Inc()
				logf(cfg, "VIEWER: Issued challenge to (%s, %s)", identity, token)
			}
			resp.grant(g)

		case q.Has("answer"):
			answer := q.Get("answer")
			publisher := strings.HasPrefix(answer, secretPrefix)

			var g access.Grant
			var err error
			if publisher {
				g, err = a.store.VerifyPublisher(identity, token, answer)
			} else {
				g, err = a.store.SubmitAnswer(identity, token, answer)
			}

			switch {
			case errors.Is(err, access.ErrNotFound):
				forbid()

				return
			case errors.Is(err, access.ErrInvalidState):
				if _, err := writeJSON(cfg, w, apiError{Error: "Not in pending state"}); err != nil {
					errs <- err
				}

				return
			case err != nil:
				errs <- err
				forbid()

				return
			}

			result := answerResult(g, publisher)
			a.metrics.answers.WithLabelValues(result).Inc()
			logf(cfg, "VIEWER: (%s, %s) answered: %s", identity, token, result)

			resp.grant(g)

		case q.Get("end") == "true":
			if err := a.store.End(token); err != nil {
				logf(cfg, "PUBLISH: Refused end request from (%s, %s)", identity, token)
				forbid()

				return
			}

			a.metrics.publishes.WithLabelValues("ended").Inc()
			logf(cfg, "PUBLISH: (%s, %s) ended the broadcast", identity, token)

			if _, err := writeText(cfg, w, http.StatusOK, `"ok"`); err != nil {
				errs <- err
			}

			return

		case q.Has("status"):
			resp.StreamStatus = string(a.store.StreamStatus(identity, token))

		default:
			forbid()

			return
		}

		written, err := writeJSON(cfg, w, resp)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: API response (%s) to %s in %s",
			humanReadableSize(written),
			identity,
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/Seednode/livequiz/access"
)

func TestAPIForbidden(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{
		"/api",
		"/api?action=connect",
		"/api?session_id=tok",
		"/api?session_id=tok&answer=a1",
		"/api?session_id=tok&answer=" + testSecret,
		"/api?session_id=tok&end=true",
	} {
		rec := h.get(target)
		if rec.Code != http.StatusForbidden || rec.Body.String() != apiForbidden {
			t.Errorf("%s = %d %q, want 403 %q", target, rec.Code, rec.Body.String(), apiForbidden)
		}
	}
}

func TestAPIConnectIsStable(t *testing.T) {
	h := newHarness(t)

	first := decodeAPI(t, h.get("/api?session_id=tok&action=connect"))
	again := decodeAPI(t, h.get("/api?session_id=tok&action=connect"))

	if first.Question != "q1" || again.Question != "q1" {
		t.Fatalf("questions = %q, %q", first.Question, again.Question)
	}
	if first.VideoURI != "" || first.IsPublisher {
		t.Fatalf("pending response leaked a grant: %+v", first)
	}
}

func TestAPIAnswerFlow(t *testing.T) {
	h := newHarness(t)
	h.publish(t, "?secret="+testSecret)

	decodeAPI(t, h.get("/api?session_id=good&action=connect"))
	resp := decodeAPI(t, h.get("/api?session_id=good&answer=a1"))
	if resp.VideoURI != "app=live&stream=main" {
		t.Fatalf("correct answer = %+v", resp)
	}

	rec := h.get("/api?session_id=good&answer=a1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Not in pending state") {
		t.Fatalf("second answer = %d %q", rec.Code, rec.Body.String())
	}

	decodeAPI(t, h.get("/api?session_id=bad&action=connect"))
	resp = decodeAPI(t, h.get("/api?session_id=bad&answer=nope"))
	if resp.VideoURI != access.WrongAnswerLocator {
		t.Fatalf("wrong answer = %+v", resp)
	}

	resp = decodeAPI(t, h.get("/api?session_id=bad&action=connect"))
	if resp.VideoURI != access.DeniedLocator || resp.Question != "" {
		t.Fatalf("denied reconnect = %+v", resp)
	}
}

func TestAPIStatus(t *testing.T) {
	h := newHarness(t)

	status := func(token string) string {
		return decodeAPI(t, h.get("/api?session_id="+token+"&status=1")).StreamStatus
	}

	if got := status("tok"); got != "unregistered" {
		t.Fatalf("status = %q", got)
	}

	h.publish(t, "?secret="+testSecret)
	h.authorize(t, "tok")
	if got := status("tok"); got != "live" {
		t.Fatalf("status = %q", got)
	}

	h.callback("on_unpublish", "10.0.0.9", "")
	if got := status("tok"); got != "paused" {
		t.Fatalf("status = %q", got)
	}
}

func TestAPIPublisherLifecycle(t *testing.T) {
	h := newHarness(t)
	h.publish(t, "?secret="+testSecret)

	h.authorize(t, "viewer")
	decodeAPI(t, h.get("/api?session_id=streamer&action=connect"))

	resp := decodeAPI(t, h.get("/api?session_id=streamer&answer="+testSecret))
	if !resp.IsPublisher || resp.VideoURI != "app=live&stream=main" {
		t.Fatalf("publisher verify = %+v", resp)
	}

	resp = decodeAPI(t, h.get("/api?session_id=streamer&action=connect"))
	if !resp.IsPublisher {
		t.Fatalf("publisher reconnect = %+v", resp)
	}

	if rec := h.get("/api?session_id=viewer&end=true"); rec.Code != http.StatusForbidden {
		t.Fatalf("viewer end = %d", rec.Code)
	}

	rec := h.get("/api?session_id=streamer&end=true")
	if rec.Code != http.StatusOK || rec.Body.String() != `"ok"` {
		t.Fatalf("end = %d %q", rec.Code, rec.Body.String())
	}

	if h.app.store.IsBroadcastLive() || h.app.store.Len() != 0 {
		t.Fatal("end did not reset the store")
	}
}

func TestAPIWrongSecretDenies(t *testing.T) {
	h := newHarness(t)
	h.publish(t, "?secret="+testSecret)

	decodeAPI(t, h.get("/api?session_id=tok&action=connect"))

	resp := decodeAPI(t, h.get("/api?session_id=tok&answer=secret_wrong"))
	if resp.IsPublisher || resp.VideoURI != access.WrongAnswerLocator {
		t.Fatalf("wrong secret = %+v", resp)
	}
}

func TestAPIStreamName(t *testing.T) {
	h := newHarness(t)
	h.publish(t, "?secret="+testSecret)

	decodeAPI(t, h.get("/api?session_id=streamer&action=connect"))
	decodeAPI(t, h.get("/api?session_id=streamer&answer="+testSecret))

	if rec := h.post("streamer", `{"action":"setlivename","name":"Friday"}`); !strings.Contains(rec.Body.String(), `"Okay"`) {
		t.Fatalf("setlivename = %q", rec.Body.String())
	}

	resp := decodeAPI(t, h.get("/api?session_id=other&action=connect"))
	if resp.StreamName != "Friday" {
		t.Fatalf("stream name = %q", resp.StreamName)
	}
}

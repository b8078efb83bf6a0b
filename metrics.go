/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"

	"github.com/Seednode/livequiz/access"
	"github.com/Seednode/livequiz/chatlog"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livequiz"

type metrics struct {
	registry *prometheus.Registry

	challenges prometheus.Counter
	answers    *prometheus.CounterVec
	publishes  *prometheus.CounterVec
	plays      *prometheus.CounterVec
	chats      prometheus.Counter
	evictions  prometheus.Counter
	resets     prometheus.Counter
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func newMetrics(store *access.Store, chat *chatlog.Log, f *feed, aud *audience) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	m := &metrics{
		registry: reg,
		challenges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Number of quiz challenges handed to new sessions",
		}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Number of answers and publisher secrets submitted, by result",
		}, []string{"result"}),
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publisher_events_total",
			Help:      "Number of publisher slot events, by kind",
		}, []string{"event"}),
		plays: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_events_total",
			Help:      "Number of playback callbacks, by outcome",
		}, []string{"event"}),
		chats: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Number of chat messages posted",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_evictions_total",
			Help:      "Number of viewer sessions removed for inactivity",
		}),
		resets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_resets_total",
			Help:      "Number of times an expired publisher slot reset the store",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "viewer_sessions",
		Help:      "Current number of viewer sessions",
	}, func() float64 { return float64(store.Len()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcast_live",
		Help:      "Whether a broadcast is live or awaiting resume (1) or idle (0)",
	}, func() float64 { return boolGauge(store.IsBroadcastLive()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chat_clients",
		Help:      "Distinct clients in the current chat log",
	}, func() float64 { return float64(chat.Size()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chat_feed_clients",
		Help:      "Open chat websocket connections",
	}, func() float64 { return float64(f.len()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audience",
		Help:      "Players reported by the media server, -1 when unknown",
	}, func() float64 { return float64(aud.Current()) })

	return m
}

func (m *metrics) observeSweep(r access.SweepResult) {
	m.evictions.Add(float64(r.Evicted))
	if r.Reset {
		m.resets.Inc()
	}
}

func serveMetrics(m *metrics) httprouter.Handle {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}

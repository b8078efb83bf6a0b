/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/livequiz/access"
	"github.com/Seednode/livequiz/chatlog"
	"github.com/Seednode/livequiz/quiz"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

// app bundles the shared state every listener works against.
type app struct {
	store    *access.Store
	chat     *chatlog.Log
	feed     *feed
	audience *audience
	metrics  *metrics
}

func newApp(cfg *Config, challenges access.ChallengeSource, verifier access.Verifier, opts ...access.Option) *app {
	opts = append([]access.Option{access.WithLogger(func(format string, args ...any) {
		logf(cfg, format, args...)
	})}, opts...)

	store := access.New(challenges, verifier, opts...)
	chat := chatlog.New()
	aud := newAudience(cfg.srsAPI)

	a := &app{
		store:    store,
		chat:     chat,
		feed:     newFeed(cfg, store.IsSessionAuthorized),
		audience: aud,
	}
	a.metrics = newMetrics(store, chat, a.feed, aud)

	store.OnReset(func() {
		chat.Reset()
		a.feed.closeAll()
		logf(cfg, "CHAT: Cleared chat log")
	})

	return a
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

// clientIP returns the address a session is keyed by: the proxy-reported
// client address when present, else the peer address, without a port.
func clientIP(r *http.Request) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(header)); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		written, err := writeText(cfg, w, http.StatusOK, "livequiz v"+releaseVersion+"\n")
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(written),
			clientIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func newRouter(cfg *Config) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		fmt.Printf("%s | ERROR: panic serving %s: %v\n", time.Now().Format(logDate), r.URL.Path, i)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	return mux
}

func newServer(cfg *Config, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(port)),
		Handler:           handler,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}
}

func apiRouter(cfg *Config, a *app, errs chan<- error) *httprouter.Router {
	mux := newRouter(cfg)

	mux.GET(cfg.prefix+"/api", serveAPI(cfg, a, errs))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))
	mux.GET(cfg.prefix+"/metrics", serveMetrics(a.metrics))
	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	if cfg.staticDir != "" {
		registerStatic(cfg, mux, errs)
	}

	return mux
}

func chatRouter(cfg *Config, a *app, errs chan<- error) *httprouter.Router {
	mux := newRouter(cfg)

	mux.POST(cfg.prefix+"/chat", serveChat(cfg, a, errs))
	mux.GET(cfg.prefix+"/chat/ws", serveFeed(cfg, a, errs))

	return mux
}

func callbackRouter(cfg *Config, a *app, errs chan<- error) *httprouter.Router {
	mux := newRouter(cfg)

	mux.POST("/", serveCallback(cfg, a, errs))

	return mux
}

type listener struct {
	name string
	srv  *http.Server
	tls  bool
}

func (l listener) serve(cfg *Config) error {
	var err error

	if l.tls {
		logf(cfg, "SERVE: Listening for %s on https://%s%s/", l.name, l.srv.Addr, cfg.prefix)
		err = l.srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
	} else {
		logf(cfg, "SERVE: Listening for %s on http://%s%s/", l.name, l.srv.Addr, cfg.prefix)
		err = l.srv.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", l.name, err)
	}

	return nil
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: livequiz v%s", releaseVersion)

	if err := bootstrap(cfg); err != nil {
		return err
	}

	gen, err := quiz.NewFromFile(cfg.banners)
	if err != nil {
		return fmt.Errorf("load banners: %w", err)
	}

	logf(cfg, "START: Loaded %d banners from %s", gen.Len(), cfg.banners)

	a := newApp(cfg, gen, access.NewSecretFile(cfg.secrets))

	errs := make(chan error, 64)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	tls := cfg.scheme() == "https"

	listeners := []listener{
		{"api", newServer(cfg, cfg.apiPort, apiRouter(cfg, a, errs)), tls},
		{"chat", newServer(cfg, cfg.chatPort, chatRouter(cfg, a, errs)), tls},
		{"callbacks", newServer(cfg, cfg.callbackPort, callbackRouter(cfg, a, errs)), false},
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		g.Go(func() error {
			return l.serve(cfg)
		})
	}

	g.Go(func() error {
		a.store.Run(ctx, cfg.sweepInterval, func(r access.SweepResult) {
			a.metrics.observeSweep(r)
		})

		return nil
	})

	g.Go(func() error {
		a.feed.run(ctx)

		return nil
	})

	if cfg.srsAPI != "" {
		g.Go(func() error {
			a.audience.run(ctx, cfg, cfg.audienceInterval)

			return nil
		})
	}

	g.Go(func() error {
		drainErrors(ctx, errs)

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, l := range listeners {
			_ = l.srv.Shutdown(shutdownCtx)
		}

		logf(cfg, "SERVE: Shut down")

		return nil
	})

	return g.Wait()
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const robots = `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

func humanReadableSize(bytes int) string {
	const unit = 1000

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "kMGTPE"[exp])
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		_, err := writeText(cfg, w, http.StatusOK, "Ok\n")
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(robots)))

		_, err := writeText(cfg, w, http.StatusOK, robots)
		if err != nil {
			errs <- err

			return
		}
	}
}

// staticName maps a request path onto a file under the static directory.
// Directory requests resolve to their index.html.
func staticName(prefix, urlPath string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(urlPath, prefix)), "/")
	if name == "" || strings.HasSuffix(urlPath, "/") {
		name = path.Join(name, "index.html")
	}

	return name, fs.ValidPath(name)
}

func serveStatic(cfg *Config, root fs.FS, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		name, ok := staticName(cfg.prefix, r.URL.Path)
		if !ok || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			http.NotFound(w, r)

			return
		}

		data, err := fs.ReadFile(root, name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs <- err
			}
			http.NotFound(w, r)

			return
		}

		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Type", contentType)
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Static file %s (%s) to %s in %s",
			name,
			humanReadableSize(written),
			clientIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// registerStatic serves the player page and its assets for any path no other
// route claims.
func registerStatic(cfg *Config, mux *httprouter.Router, errs chan<- error) {
	mux.NotFound = serveStatic(cfg, os.DirFS(cfg.staticDir), errs)
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// audience tracks how many players the media server reports. -1 means the
// count is unknown.
type audience struct {
	endpoint string
	client   *http.Client
	current  atomic.Int64
}

type clientsReply struct {
	Clients []json.RawMessage `json:"clients"`
}

func newAudience(srsAPI string) *audience {
	a := &audience{
		client: &http.Client{Timeout: timeout},
	}
	if srsAPI != "" {
		a.endpoint = strings.TrimSuffix(srsAPI, "/") + "/api/v1/clients/"
	}
	a.current.Store(-1)

	return a
}

func (a *audience) Current() int {
	return int(a.current.Load())
}

func (a *audience) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return -1, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return -1, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return -1, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var reply clientsReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return -1, err
	}

	// The publisher is a client too.
	return max(len(reply.Clients)-1, 0), nil
}

func (a *audience) poll(ctx context.Context, cfg *Config) {
	n, err := a.fetch(ctx)
	if err != nil {
		logf(cfg, "CHAT: Unable to fetch audience: %v", err)
	}

	a.current.Store(int64(n))
}

func (a *audience) run(ctx context.Context, cfg *Config, interval time.Duration) {
	if a.endpoint == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.poll(ctx, cfg)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll(ctx, cfg)
		}
	}
}

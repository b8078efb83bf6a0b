/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotDate = "2006-01-02_15-04-05"

type record struct {
	UID     uint32  `json:"uid"`
	Name    *string `json:"name"`
	IP      string  `json:"ip"`
	Content string  `json:"content"`
	Date    string  `json:"date"`
}

type snapshot struct {
	Names   map[uint32]string             `json:"umap"`
	Clients map[string]map[string]*client `json:"cmap"`
	Records []record                      `json:"records"`
}

// Snapshot writes the whole log, including the client tables, to
// dir/live-<time>.dump and returns the file's path.
func (l *Log) Snapshot(dir string) (string, error) {
	l.mu.RLock()

	snap := snapshot{
		Names:   l.names,
		Clients: l.clients,
		Records: make([]record, 0, len(l.entries)),
	}
	for _, e := range l.entries {
		r := record{
			UID:     e.UID,
			IP:      l.ips[e.UID],
			Content: e.Content,
			Date:    time.Unix(int64(e.Stamp), 0).UTC().Format(time.RFC3339),
		}
		if name, ok := l.names[e.UID]; ok {
			r.Name = &name
		}
		snap.Records = append(snap.Records, r)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	taken := l.now().UTC()

	l.mu.RUnlock()

	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("live-%s.dump", taken.Format(snapshotDate)))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	return path, nil
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type ticker struct {
	t time.Time
}

// Now advances by one second per call so every entry gets a distinct stamp.
func (c *ticker) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestLog() *Log {
	clock := &ticker{t: time.Unix(1_700_000_000, 0)}
	return New(WithClock(clock.Now), WithUIDBase(func() uint32 { return 200000 }))
}

func contents(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestAppendRendersAuthor(t *testing.T) {
	l := newTestLog()

	m := l.Append("10.0.0.1", "tok", "hello", false)
	if m.IP != "10.0.0.1" || m.Name != "" || m.Content != "hello" {
		t.Fatalf("anonymous message = %+v", m)
	}

	if !l.SetName("10.0.0.1", "tok", "alice") {
		t.Fatal("SetName failed")
	}

	msgs := l.From(-1, false)
	if len(msgs) != 1 || msgs[0].Name != "alice" || msgs[0].IP != "" {
		t.Fatalf("named history = %+v", msgs)
	}

	m = l.Append("10.0.0.1", "tok", "again", true)
	if m.Name != "alice" || !m.Publisher {
		t.Fatalf("second message = %+v", m)
	}
}

func TestSetName(t *testing.T) {
	l := newTestLog()

	if !l.SetName("10.0.0.1", "a", "alice") {
		t.Fatal("first name rejected")
	}
	if l.SetName("10.0.0.1", "a", "alicia") {
		t.Fatal("name changed twice")
	}
	if l.SetName("10.0.0.2", "b", "alice") {
		t.Fatal("duplicate name accepted")
	}
	if l.SetName("10.0.0.2", "b", "") {
		t.Fatal("empty name accepted")
	}

	if name, ok := l.Name("10.0.0.1", "a"); !ok || name != "alice" {
		t.Fatalf("Name = %q, %v", name, ok)
	}
	if _, ok := l.Name("10.0.0.2", "b"); ok {
		t.Fatal("rejected client has a name")
	}

	if l.Size() != 1 {
		t.Fatalf("Size = %d, want 1", l.Size())
	}
}

func TestStableUIDPerClient(t *testing.T) {
	l := newTestLog()

	l.Append("10.0.0.1", "a", "one", false)
	l.Append("10.0.0.1", "a", "two", false)
	l.Append("10.0.0.1", "b", "three", false)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.entries[0].UID != l.entries[1].UID {
		t.Error("same client got two uids")
	}
	if l.entries[0].UID == l.entries[2].UID {
		t.Error("distinct tokens share a uid")
	}
	if l.entries[0].UID != 200001 {
		t.Errorf("first uid = %d, want base+1", l.entries[0].UID)
	}
}

func TestFrom(t *testing.T) {
	l := newTestLog()

	var stamps []float64
	for i := range 15 {
		stamps = append(stamps, l.Append("10.0.0.1", "tok", fmt.Sprint(i), false).Stamp)
	}

	tests := []struct {
		name  string
		stamp float64
		prev  bool
		want  string
	}{
		{"latest", -1, false, "5 6 7 8 9 10 11 12 13 14"},
		{"next after third", stamps[2], false, "3 4 5 6 7 8 9 10 11 12 13 14"},
		{"next after last", stamps[14], false, ""},
		{"next before first", stamps[0] - 1, false, "0 1 2 3 4 5 6 7 8 9 10 11 12 13 14"},
		{"prev up to twelfth", stamps[11], true, "2 3 4 5 6 7 8 9 10 11"},
		{"prev short", stamps[2], true, "0 1 2"},
		{"prev before first", stamps[0] - 1, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(contents(l.From(tt.stamp, tt.prev)), " ")
			if got != tt.want {
				t.Errorf("From(%v, %v) = %q, want %q", tt.stamp, tt.prev, got, tt.want)
			}
		})
	}
}

func TestEntriesStaySorted(t *testing.T) {
	times := []time.Time{
		time.Unix(100, 0),
		time.Unix(300, 0),
		time.Unix(200, 0),
	}
	i := 0
	l := New(WithClock(func() time.Time {
		now := times[i]
		i++
		return now
	}))

	l.Append("a", "1", "first", false)
	l.Append("b", "2", "third", false)
	l.Append("c", "3", "second", false)

	got := strings.Join(contents(l.From(-1, false)), " ")
	if got != "first second third" {
		t.Fatalf("order = %q", got)
	}
}

func TestUIDBaseRange(t *testing.T) {
	for range 1000 {
		b := randomBase()
		if b < uidFloor || b >= uidCeiling {
			t.Fatalf("base %d outside [%d, %d)", b, uidFloor, uidCeiling)
		}
	}
}

func TestReset(t *testing.T) {
	l := newTestLog()

	l.SetName("10.0.0.1", "tok", "alice")
	l.Append("10.0.0.1", "tok", "hello", false)

	l.Reset()

	if l.Len() != 0 || l.Size() != 0 {
		t.Fatalf("Len = %d, Size = %d after reset", l.Len(), l.Size())
	}
	if _, ok := l.Name("10.0.0.1", "tok"); ok {
		t.Fatal("name survived reset")
	}
	if !l.SetName("10.0.0.2", "other", "alice") {
		t.Fatal("name still reserved after reset")
	}
}

func TestSnapshot(t *testing.T) {
	l := newTestLog()

	l.SetName("10.0.0.1", "a", "alice")
	l.Append("10.0.0.1", "a", "hi", true)
	l.Append("10.0.0.2", "b", "yo", false)

	dir := filepath.Join(t.TempDir(), "dumps")
	path, err := l.Snapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "live-") || filepath.Ext(path) != ".dump" {
		t.Fatalf("snapshot path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got struct {
		Umap    map[string]string `json:"umap"`
		Cmap    map[string]map[string]struct {
			UID  uint32  `json:"uid"`
			Name *string `json:"name"`
		} `json:"cmap"`
		Records []struct {
			UID     uint32  `json:"uid"`
			Name    *string `json:"name"`
			IP      string  `json:"ip"`
			Content string  `json:"content"`
		} `json:"records"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got.Umap["200001"] != "alice" {
		t.Errorf("umap = %v", got.Umap)
	}
	if c := got.Cmap["10.0.0.2"]["b"]; c.UID != 200002 || c.Name != nil {
		t.Errorf("cmap entry = %+v", c)
	}
	if len(got.Records) != 2 {
		t.Fatalf("records = %+v", got.Records)
	}
	if r := got.Records[0]; r.Name == nil || *r.Name != "alice" || r.Content != "hi" {
		t.Errorf("first record = %+v", r)
	}
	if r := got.Records[1]; r.Name != nil || r.IP != "10.0.0.2" {
		t.Errorf("second record = %+v", r)
	}
}

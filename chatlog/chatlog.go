/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package chatlog keeps the chat history of the current broadcast, along
// with the numeric ids and display names of the clients that posted to it.
package chatlog

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// HistorySize is how many entries a client gets on first contact or when
// paging backwards.
const HistorySize = 10

const (
	uidFloor   = 114514
	uidCeiling = 1919810
)

// Entry is a stored chat message.
type Entry struct {
	UID       uint32
	Content   string
	Stamp     float64 // unix seconds, millisecond precision
	Publisher bool
}

// Message is an entry as shown to clients: the author's name when one was
// chosen, otherwise their address.
type Message struct {
	Content   string  `json:"content"`
	Stamp     float64 `json:"stamp"`
	Publisher bool    `json:"pub"`
	Name      string  `json:"name,omitempty"`
	IP        string  `json:"ip,omitempty"`
}

type client struct {
	UID  uint32  `json:"uid"`
	Name *string `json:"name"`
}

type Log struct {
	mu sync.RWMutex

	entries []Entry
	taken   map[string]struct{}
	names   map[uint32]string
	clients map[string]map[string]*client
	ips     map[uint32]string
	lastUID uint32

	now  func() time.Time
	base func() uint32
}

type Option func(*Log)

func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithUIDBase replaces the random choice of the first uid after each reset.
func WithUIDBase(base func() uint32) Option {
	return func(l *Log) {
		l.base = base
	}
}

func randomBase() uint32 {
	return uidFloor + rand.Uint32N(uidCeiling-uidFloor)
}

func New(opts ...Option) *Log {
	l := &Log{
		now:  time.Now,
		base: randomBase,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.resetLocked()

	return l
}

func (l *Log) resetLocked() {
	l.entries = nil
	l.taken = make(map[string]struct{})
	l.names = make(map[uint32]string)
	l.clients = make(map[string]map[string]*client)
	l.ips = make(map[uint32]string)
	l.lastUID = l.base()
}

// Reset drops every entry and client and picks a new uid base.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked()
}

func (l *Log) clientLocked(identity, token string) *client {
	return l.clients[identity][token]
}

func (l *Log) registerLocked(identity, token string) *client {
	l.lastUID++

	c := &client{UID: l.lastUID}

	bucket, ok := l.clients[identity]
	if !ok {
		bucket = make(map[string]*client)
		l.clients[identity] = bucket
	}
	bucket[token] = c
	l.ips[c.UID] = identity

	return c
}

func (l *Log) stamp() float64 {
	return float64(l.now().UnixMilli()) / 1000
}

// Append stores a message, registering its author on first post, and returns
// it as clients will see it.
func (l *Log) Append(identity, token, content string, publisher bool) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.clientLocked(identity, token)
	if c == nil {
		c = l.registerLocked(identity, token)
	}

	e := Entry{UID: c.UID, Content: content, Stamp: l.stamp(), Publisher: publisher}

	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Stamp > e.Stamp
	})
	l.entries = append(l.entries, Entry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = e

	return l.renderLocked(e)
}

// SetName gives the client a display name. It fails when the name is empty or
// already taken, or when the client already has one.
func (l *Log) SetName(identity, token, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if name == "" {
		return false
	}
	if _, taken := l.taken[name]; taken {
		return false
	}

	c := l.clientLocked(identity, token)
	switch {
	case c == nil:
		c = l.registerLocked(identity, token)
	case c.Name != nil:
		return false
	}

	c.Name = &name
	l.taken[name] = struct{}{}
	l.names[c.UID] = name

	return true
}

// Name returns the client's display name, if set.
func (l *Log) Name(identity, token string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := l.clientLocked(identity, token)
	if c == nil || c.Name == nil {
		return "", false
	}
	return *c.Name, true
}

func (l *Log) renderLocked(e Entry) Message {
	m := Message{Content: e.Content, Stamp: e.Stamp, Publisher: e.Publisher}
	if name, ok := l.names[e.UID]; ok {
		m.Name = name
	} else {
		m.IP = l.ips[e.UID]
	}
	return m
}

// From pages through the log. A negative stamp returns the latest entries;
// prev returns up to HistorySize entries at or before stamp; otherwise every
// entry after stamp is returned.
func (l *Log) From(stamp float64, prev bool) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var window []Entry

	switch {
	case stamp < 0:
		window = l.entries[max(0, len(l.entries)-HistorySize):]
	default:
		i := sort.Search(len(l.entries), func(i int) bool {
			return l.entries[i].Stamp > stamp
		})
		if prev {
			window = l.entries[max(0, i-HistorySize):i]
		} else {
			window = l.entries[i:]
		}
	}

	msgs := make([]Message, 0, len(window))
	for _, e := range window {
		msgs = append(msgs, l.renderLocked(e))
	}

	return msgs
}

// Size reports how many distinct clients have posted or picked a name.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.ips)
}

// Len reports the number of stored entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

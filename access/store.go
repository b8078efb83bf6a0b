/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package access owns the viewer and publisher state machines that gate the
// stream and chat, together with the sweep that enforces their TTLs.
package access

import (
	"fmt"
	"sync"
	"time"

	"github.com/Seednode/livequiz/quiz"
)

const (
	// DeniedLocator is handed to denied sessions instead of a new challenge.
	DeniedLocator = "app=genshin&straem=impact"

	// WrongAnswerLocator is handed out in response to a failed answer.
	WrongAnswerLocator = "app=ehviewer&straem=lolicon"
)

// ChallengeSource supplies challenges for new viewer sessions.
type ChallengeSource interface {
	Next() quiz.Challenge
}

// Viewer is the state kept for one (identity, token) pair.
type Viewer struct {
	Identity     string
	Token        string
	Status       ViewerStatus
	Question     string
	Answer       string
	DisplayName  string
	Publisher    bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// Grant is the result of a viewer-facing operation.
type Grant struct {
	Question   string // set while the session still owes an answer
	Locator    string // real locator when Authorized, otherwise a decoy
	Authorized bool
	Publisher  bool
	Issued     bool // a new challenge was drawn for this call
}

// Store is the single owner of viewer sessions, the publisher slot and the
// public mode flag. All transitions happen under one write lock.
type Store struct {
	mu        sync.RWMutex
	viewers   map[string]map[string]*Viewer
	byToken   map[string]map[string]struct{} // token -> identities holding it
	publisher Publisher
	public    bool

	challenges ChallengeSource
	verifier   Verifier
	now        func() time.Time
	logf       func(format string, args ...any)

	hooksMu sync.Mutex
	onReset []func()
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logf func(format string, args ...any)) Option {
	return func(s *Store) {
		s.logf = logf
	}
}

func New(challenges ChallengeSource, verifier Verifier, opts ...Option) *Store {
	s := &Store{
		viewers:    make(map[string]map[string]*Viewer),
		byToken:    make(map[string]map[string]struct{}),
		challenges: challenges,
		verifier:   verifier,
		now:        time.Now,
		logf:       func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.publisher = newPublisher(s.now())

	return s
}

// OnReset registers fn to run after every full reset, outside the store lock.
func (s *Store) OnReset(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	s.onReset = append(s.onReset, fn)
}

func (s *Store) runResetHooks() {
	s.hooksMu.Lock()
	hooks := append([]func(){}, s.onReset...)
	s.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// resetLocked clears every table. Callers hold the write lock and must run
// the reset hooks once they release it.
func (s *Store) resetLocked() {
	clear(s.viewers)
	clear(s.byToken)
	s.publisher = newPublisher(s.now())
	s.public = false
}

// Reset clears all viewer sessions and the publisher slot and disables
// public mode.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.runResetHooks()
}

func (s *Store) viewerLocked(identity, token string) *Viewer {
	return s.viewers[identity][token]
}

func (s *Store) insertLocked(v *Viewer) {
	bucket, ok := s.viewers[v.Identity]
	if !ok {
		bucket = make(map[string]*Viewer)
		s.viewers[v.Identity] = bucket
	}
	bucket[v.Token] = v

	holders, ok := s.byToken[v.Token]
	if !ok {
		holders = make(map[string]struct{})
		s.byToken[v.Token] = holders
	}
	holders[v.Identity] = struct{}{}
}

func (s *Store) removeLocked(identity, token string) {
	if bucket, ok := s.viewers[identity]; ok {
		delete(bucket, token)
		if len(bucket) == 0 {
			delete(s.viewers, identity)
		}
	}

	if holders, ok := s.byToken[token]; ok {
		delete(holders, identity)
		if len(holders) == 0 {
			delete(s.byToken, token)
		}
	}
}

func (s *Store) touch(v *Viewer, status ViewerStatus) {
	v.Status = status
	v.LastActivity = s.now()
}

func renderPublic(ch quiz.Challenge) string {
	return fmt.Sprintf("%s(answer=%q)", ch.Question, ch.Answer)
}

// grantLocked describes an existing session to its owner.
func (s *Store) grantLocked(v *Viewer) Grant {
	switch {
	case v.Status.Authorized():
		return Grant{Locator: s.publisher.Locator, Authorized: true, Publisher: v.Publisher}
	case v.Status == StatusDenied:
		return Grant{Locator: DeniedLocator}
	default:
		return Grant{Question: v.Question}
	}
}

// Connect returns the session's existing challenge or grant, creating the
// session with a fresh challenge on first contact.
func (s *Store) Connect(identity, token string) Grant {
	s.mu.RLock()
	if v := s.viewerLocked(identity, token); v != nil {
		g := s.grantLocked(v)
		s.mu.RUnlock()
		return g
	}
	s.mu.RUnlock()

	ch := s.challenges.Next()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have created the session while we drew.
	if v := s.viewerLocked(identity, token); v != nil {
		return s.grantLocked(v)
	}

	question := ch.Question
	if s.public {
		question = renderPublic(ch)
	}

	now := s.now()
	s.insertLocked(&Viewer{
		Identity:     identity,
		Token:        token,
		Status:       StatusPending,
		Question:     question,
		Answer:       ch.Answer,
		CreatedAt:    now,
		LastActivity: now,
	})

	return Grant{Question: question, Issued: true}
}

// SubmitAnswer resolves a pending challenge. The comparison is exact.
func (s *Store) SubmitAnswer(identity, token, answer string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.viewerLocked(identity, token)
	if v == nil {
		return Grant{}, ErrNotFound
	}
	if v.Status != StatusPending {
		return Grant{}, ErrNotPending
	}

	if answer != v.Answer {
		s.touch(v, StatusDenied)
		return Grant{Locator: WrongAnswerLocator}, nil
	}

	s.touch(v, StatusAuthorized)

	return Grant{Locator: s.publisher.Locator, Authorized: true}, nil
}

// VerifyPublisher binds an existing session to the live publisher when it
// presents the secret the publisher registered with. A wrong secret denies
// the session.
func (s *Store) VerifyPublisher(identity, token, secret string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.viewerLocked(identity, token)
	if v == nil {
		return Grant{}, ErrNotFound
	}
	if v.Status == StatusDenied {
		return Grant{}, ErrInvalidState
	}

	if s.publisher.Secret == "" || secret != s.publisher.Secret {
		s.touch(v, StatusDenied)
		return Grant{Locator: WrongAnswerLocator}, nil
	}

	if !v.Status.Authorized() {
		s.touch(v, StatusAuthorized)
	} else {
		v.LastActivity = s.now()
	}
	v.Publisher = true
	s.publisher.Token = token

	return Grant{Locator: s.publisher.Locator, Authorized: true, Publisher: true}, nil
}

// findLocked looks the session up under identity, then by token alone, since
// the media server may report a different address than the viewer API saw.
func (s *Store) findLocked(identity, token string) *Viewer {
	if v := s.viewerLocked(identity, token); v != nil {
		return v
	}
	for holder := range s.byToken[token] {
		return s.viewerLocked(holder, token)
	}
	return nil
}

// MarkPlayback records that a player started or stopped pulling the stream.
// It reports whether the session is authorized; events for Pending or Denied
// sessions change nothing.
func (s *Store) MarkPlayback(identity, token string, started bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.findLocked(identity, token)
	if v == nil {
		return false, ErrNotFound
	}
	if !v.Status.Authorized() {
		return false, nil
	}

	if started {
		s.touch(v, StatusActive)
	} else {
		s.touch(v, StatusDormant)
	}

	return true, nil
}

// SetDisplayName records the session's chosen name. It can be set once.
func (s *Store) SetDisplayName(identity, token, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.viewerLocked(identity, token)
	if v == nil {
		return ErrNotFound
	}
	if v.DisplayName != "" {
		return ErrInvalidState
	}

	v.DisplayName = name

	return nil
}

// Lookup returns a copy of the session.
func (s *Store) Lookup(identity, token string) (Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.viewerLocked(identity, token)
	if v == nil {
		return Viewer{}, false
	}
	return *v, true
}

// Len reports the number of viewer sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, bucket := range s.viewers {
		n += len(bucket)
	}
	return n
}

func (s *Store) IsSessionAuthorized(identity, token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.viewerLocked(identity, token)
	return v != nil && v.Status.Authorized()
}

func (s *Store) IsPublisher(identity, token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.viewerLocked(identity, token)
	return v != nil && v.Publisher
}

// StreamStatus summarises what a viewer should currently be shown.
func (s *Store) StreamStatus(identity, token string) StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.viewerLocked(identity, token)
	switch {
	case v == nil:
		return StateUnregistered
	case v.Status == StatusDenied:
		return StateBanned
	case v.Status == StatusPending:
		return StatePending
	case s.publisher.Status == PublisherIdle:
		return StateEnded
	case s.publisher.Status == PublisherInterrupted:
		return StatePaused
	default:
		return StateLive
	}
}
